package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/domain"
)

// WriterRepository composes the three narrow repositories the Writer
// commits against into the single Repository shape writer.Writer expects,
// so each repository keeps its own single-entity interface rather than
// growing a catch-all method set.
type WriterRepository struct {
	Holdings *HoldingRepository
	Funds    *FundRepository
	Trades   *TradeRepository
}

// NewWriterRepository builds a WriterRepository over the three underlying
// repositories.
func NewWriterRepository(holdings *HoldingRepository, funds *FundRepository, trades *TradeRepository) *WriterRepository {
	return &WriterRepository{Holdings: holdings, Funds: funds, Trades: trades}
}

func (w *WriterRepository) ApplyStagedHoldings(ctx context.Context, fundID, tradeID int64) error {
	return w.Holdings.ApplyStagedHoldings(ctx, fundID, tradeID)
}

func (w *WriterRepository) AdjustFundCash(ctx context.Context, fundID int64, delta decimal.Decimal) error {
	return w.Funds.AdjustFundCash(ctx, fundID, delta)
}

func (w *WriterRepository) ClearStaging(ctx context.Context, fundID, tradeID int64) error {
	return w.Holdings.ClearStaging(ctx, fundID, tradeID)
}

func (w *WriterRepository) SetTradeStatus(ctx context.Context, tradeID int64, status domain.TradeStatus) error {
	return w.Trades.SetTradeStatus(ctx, tradeID, status)
}
