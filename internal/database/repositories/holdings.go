package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/domain"
)

// HoldingRepository is the persistence adapter for real and staged
// holdings. It satisfies tradeservice.HoldingRepository (Get),
// staging.Repository (the staged-holdings operations), and
// writer.Repository's ApplyStagedHoldings/ClearStaging.
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository builds a HoldingRepository over db.
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{db: db, log: log.With().Str("repo", "holding").Logger()}
}

// Get returns a fund's real holding of a ticker, or nil if the fund holds
// none.
func (r *HoldingRepository) Get(ctx context.Context, fundID int64, ticker string) (*domain.Holding, error) {
	row := r.db.QueryRowContext(ctx, `SELECT holding_id, fund_id, ticker, shares, created_at, updated_at
		FROM holdings WHERE fund_id = ? AND ticker = ?`, fundID, ticker)
	var h domain.Holding
	if err := row.Scan(&h.HoldingID, &h.FundID, &h.Ticker, &h.Shares, &h.CreatedAt, &h.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repositories: get holding fund %d ticker %s: %w", fundID, ticker, err)
	}
	return &h, nil
}

// HoldingsForFund returns every real holding of a fund; satisfies
// staging.Repository.
func (r *HoldingRepository) HoldingsForFund(ctx context.Context, fundID int64) ([]domain.Holding, error) {
	rows, err := txOrDB(ctx, r.db).QueryContext(ctx, `SELECT holding_id, fund_id, ticker, shares, created_at, updated_at
		FROM holdings WHERE fund_id = ?`, fundID)
	if err != nil {
		return nil, fmt.Errorf("repositories: holdings for fund %d: %w", fundID, err)
	}
	defer rows.Close()

	var out []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.HoldingID, &h.FundID, &h.Ticker, &h.Shares, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repositories: scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ClearStaging deletes every staged row for a (fund, trade) scope.
func (r *HoldingRepository) ClearStaging(ctx context.Context, fundID, tradeID int64) error {
	_, err := txOrDB(ctx, r.db).ExecContext(ctx, `DELETE FROM holdings_staging WHERE fund_id = ? AND trade_id = ?`, fundID, tradeID)
	if err != nil {
		return fmt.Errorf("repositories: clear staging fund %d trade %d: %w", fundID, tradeID, err)
	}
	return nil
}

// InsertStaged inserts one staged holding row.
func (r *HoldingRepository) InsertStaged(ctx context.Context, row domain.StagedHolding) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO holdings_staging (fund_id, ticker, trade_id, shares) VALUES (?, ?, ?, ?)`,
		row.FundID, row.Ticker, row.TradeID, row.Shares)
	if err != nil {
		return fmt.Errorf("repositories: insert staged %s: %w", row.Ticker, err)
	}
	return nil
}

// StagedForTrade returns every staged row for a (fund, trade) scope.
func (r *HoldingRepository) StagedForTrade(ctx context.Context, fundID, tradeID int64) ([]domain.StagedHolding, error) {
	rows, err := txOrDB(ctx, r.db).QueryContext(ctx, `SELECT staging_id, fund_id, ticker, trade_id, shares, created_at
		FROM holdings_staging WHERE fund_id = ? AND trade_id = ?`, fundID, tradeID)
	if err != nil {
		return nil, fmt.Errorf("repositories: staged for trade fund %d trade %d: %w", fundID, tradeID, err)
	}
	defer rows.Close()

	var out []domain.StagedHolding
	for rows.Next() {
		var s domain.StagedHolding
		if err := rows.Scan(&s.StagingID, &s.FundID, &s.Ticker, &s.TradeID, &s.Shares, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("repositories: scan staged holding: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteStagedRow removes one staged row by (fund, trade, ticker).
func (r *HoldingRepository) DeleteStagedRow(ctx context.Context, fundID, tradeID int64, ticker string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM holdings_staging WHERE fund_id = ? AND trade_id = ? AND ticker = ?`,
		fundID, tradeID, ticker)
	if err != nil {
		return fmt.Errorf("repositories: delete staged row %s: %w", ticker, err)
	}
	return nil
}

// UpsertStagedShares sets the share count of one staged row.
func (r *HoldingRepository) UpsertStagedShares(ctx context.Context, fundID, tradeID int64, ticker string, shares int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO holdings_staging (fund_id, ticker, trade_id, shares) VALUES (?, ?, ?, ?)
		ON CONFLICT(fund_id, trade_id, ticker) DO UPDATE SET shares = excluded.shares`,
		fundID, ticker, tradeID, shares)
	if err != nil {
		return fmt.Errorf("repositories: upsert staged shares %s: %w", ticker, err)
	}
	return nil
}

// ApplyStagedHoldings replaces a fund's real holdings with the staged
// snapshot of one trade: real holdings whose ticker is absent from the
// snapshot are deleted, and every staged row is upserted.
// Satisfies writer.Repository; must run inside the Writer's transaction.
func (r *HoldingRepository) ApplyStagedHoldings(ctx context.Context, fundID, tradeID int64) error {
	staged, err := r.StagedForTrade(ctx, fundID, tradeID)
	if err != nil {
		return err
	}

	tickers := make([]string, 0, len(staged))
	for _, s := range staged {
		tickers = append(tickers, s.Ticker)
	}
	if err := r.deleteHoldingsNotIn(ctx, fundID, tickers); err != nil {
		return err
	}

	for _, s := range staged {
		_, err := txOrDB(ctx, r.db).ExecContext(ctx, `INSERT INTO holdings (fund_id, ticker, shares) VALUES (?, ?, ?)
			ON CONFLICT(fund_id, ticker) DO UPDATE SET shares = excluded.shares, updated_at = CURRENT_TIMESTAMP`,
			fundID, s.Ticker, s.Shares)
		if err != nil {
			return fmt.Errorf("repositories: apply staged holding %s: %w", s.Ticker, err)
		}
	}
	return nil
}

// deleteHoldingsNotIn removes real holdings rows for a fund whose ticker is
// absent from the staged snapshot — the case of a SELL that fully
// liquidated a position (staging.Projector deletes the staged row rather
// than keeping a zero-share one).
func (r *HoldingRepository) deleteHoldingsNotIn(ctx context.Context, fundID int64, keep []string) error {
	current, err := r.HoldingsForFund(ctx, fundID)
	if err != nil {
		return err
	}
	keepSet := make(map[string]bool, len(keep))
	for _, t := range keep {
		keepSet[t] = true
	}
	for _, h := range current {
		if keepSet[h.Ticker] {
			continue
		}
		if _, err := txOrDB(ctx, r.db).ExecContext(ctx, `DELETE FROM holdings WHERE fund_id = ? AND ticker = ?`, fundID, h.Ticker); err != nil {
			return fmt.Errorf("repositories: delete liquidated holding %s: %w", h.Ticker, err)
		}
	}
	return nil
}
