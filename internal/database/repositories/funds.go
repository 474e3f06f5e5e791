package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/domain"
)

// FundRepository is the persistence adapter for funds, satisfying
// tradeservice.FundRepository and writer.Repository's AdjustFundCash
// (ruleengine.Repository's trade-scoped FundCash is served by
// RuleEngineRepository).
type FundRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewFundRepository builds a FundRepository over db.
func NewFundRepository(db *sql.DB, log zerolog.Logger) *FundRepository {
	return &FundRepository{db: db, log: log.With().Str("repo", "fund").Logger()}
}

// Get returns a fund by id, or nil if not found.
func (r *FundRepository) Get(ctx context.Context, fundID int64) (*domain.Fund, error) {
	row := r.db.QueryRowContext(ctx, `SELECT fund_id, fund_name, cash, created_at, updated_at FROM funds WHERE fund_id = ?`, fundID)
	var f domain.Fund
	var cash string
	if err := row.Scan(&f.FundID, &f.FundName, &cash, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repositories: get fund %d: %w", fundID, err)
	}
	parsed, err := parseDecimal(cash)
	if err != nil {
		return nil, err
	}
	f.Cash = parsed
	return &f, nil
}

// List returns every fund, ordered by id.
func (r *FundRepository) List(ctx context.Context) ([]domain.Fund, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT fund_id, fund_name, cash, created_at, updated_at FROM funds ORDER BY fund_id`)
	if err != nil {
		return nil, fmt.Errorf("repositories: list funds: %w", err)
	}
	defer rows.Close()

	var out []domain.Fund
	for rows.Next() {
		var f domain.Fund
		var cash string
		if err := rows.Scan(&f.FundID, &f.FundName, &cash, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repositories: scan fund: %w", err)
		}
		parsed, err := parseDecimal(cash)
		if err != nil {
			return nil, err
		}
		f.Cash = parsed
		out = append(out, f)
	}
	return out, rows.Err()
}

// Create inserts a new fund.
func (r *FundRepository) Create(ctx context.Context, f domain.Fund) (domain.Fund, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO funds (fund_name, cash) VALUES (?, ?)`, f.FundName, decimalToText(f.Cash))
	if err != nil {
		return domain.Fund{}, fmt.Errorf("repositories: create fund: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Fund{}, fmt.Errorf("repositories: fund id: %w", err)
	}
	f.FundID = id
	r.log.Info().Int64("fund_id", id).Str("fund_name", f.FundName).Msg("fund created")
	return f, nil
}

// FundCash returns the fund's current cash balance, as stored (no netting
// of pending trades).
func (r *FundRepository) FundCash(ctx context.Context, fundID int64) (decimal.Decimal, error) {
	var cash string
	err := txOrDB(ctx, r.db).QueryRowContext(ctx, `SELECT cash FROM funds WHERE fund_id = ?`, fundID).Scan(&cash)
	if err != nil {
		return decimal.Zero, fmt.Errorf("repositories: fund cash %d: %w", fundID, err)
	}
	return parseDecimal(cash)
}

// AdjustFundCash applies a signed delta to the fund's cash balance. Reads
// and writes through txOrDB so a call made from inside writer.Writer.Commit
// participates in that same transaction rather than racing it.
func (r *FundRepository) AdjustFundCash(ctx context.Context, fundID int64, delta decimal.Decimal) error {
	current, err := r.FundCash(ctx, fundID)
	if err != nil {
		return err
	}
	updated := current.Add(delta).RoundBank(2)
	_, err = txOrDB(ctx, r.db).ExecContext(ctx, `UPDATE funds SET cash = ?, updated_at = CURRENT_TIMESTAMP WHERE fund_id = ?`, decimalToText(updated), fundID)
	if err != nil {
		return fmt.Errorf("repositories: adjust fund cash %d: %w", fundID, err)
	}
	return nil
}
