// Package writer implements the single transactional boundary that
// persists a committed trade: applies the staging diff to real Holdings,
// adjusts Fund cash, drains staging, and transitions the Trade to
// PROCESSED. Grounded in the teacher's internal/database.WithTransaction
// panic-safe helper and the Python holdings_service.apply_staging_to_holdings.
package writer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/domain"
)

// TxRunner executes fn inside one database transaction, committing on nil
// error and rolling back (even on panic) otherwise — the adapted shape of
// the teacher's database.WithTransaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repository is the persistence boundary for the commit. All methods must
// be called from within the same transaction scope established by TxRunner
// for atomicity to hold.
type Repository interface {
	ApplyStagedHoldings(ctx context.Context, fundID, tradeID int64) error
	AdjustFundCash(ctx context.Context, fundID int64, delta decimal.Decimal) error
	ClearStaging(ctx context.Context, fundID, tradeID int64) error
	SetTradeStatus(ctx context.Context, tradeID int64, status domain.TradeStatus) error
}

// Writer is the Writer component.
type Writer struct {
	tx   TxRunner
	repo Repository
}

// New builds a Writer over the given transaction runner and repository.
func New(tx TxRunner, repo Repository) *Writer {
	return &Writer{tx: tx, repo: repo}
}

// Commit applies the staging diff to Holdings, adjusts cash (BUY subtracts,
// SELL adds the snapshot total value), drains staging, and sets the trade
// to PROCESSED — all within one transaction, so either all four mutations
// persist or none do.
func (w *Writer) Commit(ctx context.Context, trade domain.Trade) error {
	if trade.Price == nil || trade.TotalValue == nil {
		return fmt.Errorf("writer: trade %d has no snapshot price/value", trade.TradeID)
	}

	delta := *trade.TotalValue
	if trade.IsBuy() {
		delta = delta.Neg()
	}

	return w.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := w.repo.ApplyStagedHoldings(ctx, trade.FundID, trade.TradeID); err != nil {
			return fmt.Errorf("writer: apply staged holdings: %w", err)
		}
		if err := w.repo.AdjustFundCash(ctx, trade.FundID, delta); err != nil {
			return fmt.Errorf("writer: adjust cash: %w", err)
		}
		if err := w.repo.ClearStaging(ctx, trade.FundID, trade.TradeID); err != nil {
			return fmt.Errorf("writer: drain staging: %w", err)
		}
		if err := w.repo.SetTradeStatus(ctx, trade.TradeID, domain.TradeProcessed); err != nil {
			return fmt.Errorf("writer: set trade processed: %w", err)
		}
		return nil
	})
}
