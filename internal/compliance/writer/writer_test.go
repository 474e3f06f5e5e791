package writer

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundops/compliance-engine/internal/domain"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingRepo struct {
	appliedFundID, appliedTradeID int64
	applyErr                      error
	cashDelta                     decimal.Decimal
	adjustCashErr                 error
	clearedFundID, clearedTradeID int64
	clearErr                      error
	statusTradeID                 int64
	status                        domain.TradeStatus
	setStatusErr                  error
}

func (r *recordingRepo) ApplyStagedHoldings(ctx context.Context, fundID, tradeID int64) error {
	r.appliedFundID, r.appliedTradeID = fundID, tradeID
	return r.applyErr
}

func (r *recordingRepo) AdjustFundCash(ctx context.Context, fundID int64, delta decimal.Decimal) error {
	r.cashDelta = delta
	return r.adjustCashErr
}

func (r *recordingRepo) ClearStaging(ctx context.Context, fundID, tradeID int64) error {
	r.clearedFundID, r.clearedTradeID = fundID, tradeID
	return r.clearErr
}

func (r *recordingRepo) SetTradeStatus(ctx context.Context, tradeID int64, status domain.TradeStatus) error {
	r.statusTradeID, r.status = tradeID, status
	return r.setStatusErr
}

func tradeWithValue(direction domain.TradeDirection, value float64) domain.Trade {
	price := decimal.NewFromFloat(150.00)
	total := decimal.NewFromFloat(value)
	return domain.Trade{TradeID: 7, FundID: 1, Direction: direction, Price: &price, TotalValue: &total}
}

func TestWriter_CommitBuySubtractsCashAndSetsProcessed(t *testing.T) {
	repo := &recordingRepo{}
	w := New(fakeTxRunner{}, repo)

	err := w.Commit(context.Background(), tradeWithValue(domain.DirectionBuy, 15000.00))
	require.NoError(t, err)

	assert.True(t, decimal.NewFromFloat(-15000.00).Equal(repo.cashDelta))
	assert.Equal(t, int64(1), repo.appliedFundID)
	assert.Equal(t, int64(7), repo.appliedTradeID)
	assert.Equal(t, int64(1), repo.clearedFundID)
	assert.Equal(t, domain.TradeProcessed, repo.status)
}

func TestWriter_CommitSellAddsCash(t *testing.T) {
	repo := &recordingRepo{}
	w := New(fakeTxRunner{}, repo)

	err := w.Commit(context.Background(), tradeWithValue(domain.DirectionSell, 5000.00))
	require.NoError(t, err)

	assert.True(t, decimal.NewFromFloat(5000.00).Equal(repo.cashDelta))
}

func TestWriter_CommitRejectsTradeWithoutSnapshotPrice(t *testing.T) {
	repo := &recordingRepo{}
	w := New(fakeTxRunner{}, repo)

	trade := domain.Trade{TradeID: 7, FundID: 1, Direction: domain.DirectionBuy}
	err := w.Commit(context.Background(), trade)
	require.Error(t, err)
}

func TestWriter_CommitPropagatesApplyHoldingsFailure(t *testing.T) {
	repo := &recordingRepo{applyErr: errors.New("constraint violation")}
	w := New(fakeTxRunner{}, repo)

	err := w.Commit(context.Background(), tradeWithValue(domain.DirectionBuy, 1000.00))
	require.Error(t, err)
	assert.Equal(t, domain.TradeStatus(""), repo.status, "trade must not be marked processed when an earlier step fails")
}

func TestWriter_CommitPropagatesSetStatusFailure(t *testing.T) {
	repo := &recordingRepo{setStatusErr: errors.New("db gone")}
	w := New(fakeTxRunner{}, repo)

	err := w.Commit(context.Background(), tradeWithValue(domain.DirectionBuy, 1000.00))
	require.Error(t, err)
}
