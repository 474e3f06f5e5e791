package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/domain"
)

// TradeRepository is the persistence adapter for trades, satisfying
// tradeservice.TradeRepository and writer.Repository's SetTradeStatus.
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository builds a TradeRepository over db.
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{db: db, log: log.With().Str("repo", "trade").Logger()}
}

const tradeColumns = `trade_id, fund_id, ticker, direction, shares, price, total_value, status, created_at, updated_at`

func scanTrade(scan func(dest ...any) error) (domain.Trade, error) {
	var t domain.Trade
	var price, totalValue sql.NullString
	if err := scan(&t.TradeID, &t.FundID, &t.Ticker, &t.Direction, &t.Shares, &price, &totalValue, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Trade{}, err
	}
	p, err := scanNullDecimal(price)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Price = p
	tv, err := scanNullDecimal(totalValue)
	if err != nil {
		return domain.Trade{}, err
	}
	t.TotalValue = tv
	return t, nil
}

// Create inserts a new trade in SUBMITTED status.
func (r *TradeRepository) Create(ctx context.Context, t domain.Trade) (domain.Trade, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO trades (fund_id, ticker, direction, shares, status) VALUES (?, ?, ?, ?, ?)`,
		t.FundID, t.Ticker, t.Direction, t.Shares, t.Status)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("repositories: create trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Trade{}, fmt.Errorf("repositories: trade id: %w", err)
	}
	t.TradeID = id
	r.log.Info().Int64("trade_id", id).Int64("fund_id", t.FundID).Str("ticker", t.Ticker).Str("direction", string(t.Direction)).Msg("trade submitted")
	return t, nil
}

// Get returns a trade by id, or nil if not found.
func (r *TradeRepository) Get(ctx context.Context, tradeID int64) (*domain.Trade, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	t, err := scanTrade(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repositories: get trade %d: %w", tradeID, err)
	}
	return &t, nil
}

// ListByFund returns every trade for a fund, most recent first.
func (r *TradeRepository) ListByFund(ctx context.Context, fundID int64) ([]domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE fund_id = ? ORDER BY trade_id DESC`, fundID)
	if err != nil {
		return nil, fmt.Errorf("repositories: list trades fund %d: %w", fundID, err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("repositories: scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a trade to a new status. Runs through txOrDB so a
// call made from inside writer.Writer.Commit lands in that transaction.
func (r *TradeRepository) UpdateStatus(ctx context.Context, tradeID int64, status domain.TradeStatus) error {
	_, err := txOrDB(ctx, r.db).ExecContext(ctx, `UPDATE trades SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE trade_id = ?`, status, tradeID)
	if err != nil {
		return fmt.Errorf("repositories: update trade %d status: %w", tradeID, err)
	}
	return nil
}

// SetTradeStatus is an alias of UpdateStatus satisfying writer.Repository's
// narrower method name.
func (r *TradeRepository) SetTradeStatus(ctx context.Context, tradeID int64, status domain.TradeStatus) error {
	return r.UpdateStatus(ctx, tradeID, status)
}

// SetPricing records the snapshot price and total value computed during
// validation.
func (r *TradeRepository) SetPricing(ctx context.Context, tradeID int64, price, totalValue decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `UPDATE trades SET price = ?, total_value = ?, updated_at = CURRENT_TIMESTAMP WHERE trade_id = ?`,
		decimalToText(price), decimalToText(totalValue), tradeID)
	if err != nil {
		return fmt.Errorf("repositories: set pricing trade %d: %w", tradeID, err)
	}
	return nil
}
