package staging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundops/compliance-engine/internal/domain"
)

type stagedKey struct {
	fundID  int64
	tradeID int64
	ticker  string
}

type fakeRepo struct {
	holdings map[int64][]domain.Holding
	staged   map[stagedKey]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{holdings: map[int64][]domain.Holding{}, staged: map[stagedKey]int64{}}
}

func (f *fakeRepo) HoldingsForFund(ctx context.Context, fundID int64) ([]domain.Holding, error) {
	return f.holdings[fundID], nil
}

func (f *fakeRepo) ClearStaging(ctx context.Context, fundID, tradeID int64) error {
	for k := range f.staged {
		if k.fundID == fundID && k.tradeID == tradeID {
			delete(f.staged, k)
		}
	}
	return nil
}

func (f *fakeRepo) InsertStaged(ctx context.Context, row domain.StagedHolding) error {
	f.staged[stagedKey{row.FundID, row.TradeID, row.Ticker}] = row.Shares
	return nil
}

func (f *fakeRepo) StagedForTrade(ctx context.Context, fundID, tradeID int64) ([]domain.StagedHolding, error) {
	var out []domain.StagedHolding
	for k, shares := range f.staged {
		if k.fundID == fundID && k.tradeID == tradeID {
			out = append(out, domain.StagedHolding{FundID: fundID, TradeID: tradeID, Ticker: k.ticker, Shares: shares})
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteStagedRow(ctx context.Context, fundID, tradeID int64, ticker string) error {
	delete(f.staged, stagedKey{fundID, tradeID, ticker})
	return nil
}

func (f *fakeRepo) UpsertStagedShares(ctx context.Context, fundID, tradeID int64, ticker string, shares int64) error {
	f.staged[stagedKey{fundID, tradeID, ticker}] = shares
	return nil
}

func (f *fakeRepo) sharesOf(fundID, tradeID int64, ticker string) (int64, bool) {
	v, ok := f.staged[stagedKey{fundID, tradeID, ticker}]
	return v, ok
}

func TestProjector_ProjectBuyOfExistingHoldingIncreasesShares(t *testing.T) {
	repo := newFakeRepo()
	repo.holdings[1] = []domain.Holding{{FundID: 1, Ticker: "AAPL", Shares: 1000}}
	p := New(repo)

	rows, err := p.Project(context.Background(), TradeDelta{TradeID: 5, FundID: 1, Ticker: "AAPL", Direction: domain.DirectionBuy, Shares: 100})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1100), rows[0].Shares)
}

func TestProjector_ProjectBuyOfNewTickerInsertsRow(t *testing.T) {
	repo := newFakeRepo()
	repo.holdings[1] = []domain.Holding{{FundID: 1, Ticker: "MSFT", Shares: 500}}
	p := New(repo)

	rows, err := p.Project(context.Background(), TradeDelta{TradeID: 5, FundID: 1, Ticker: "AAPL", Direction: domain.DirectionBuy, Shares: 100})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	shares, ok := repo.sharesOf(1, 5, "AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(100), shares)
}

func TestProjector_ProjectSellReducesShares(t *testing.T) {
	repo := newFakeRepo()
	repo.holdings[1] = []domain.Holding{{FundID: 1, Ticker: "AAPL", Shares: 1000}}
	p := New(repo)

	_, err := p.Project(context.Background(), TradeDelta{TradeID: 5, FundID: 1, Ticker: "AAPL", Direction: domain.DirectionSell, Shares: 400})
	require.NoError(t, err)

	shares, ok := repo.sharesOf(1, 5, "AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(600), shares)
}

func TestProjector_ProjectSellOfAllSharesDeletesRow(t *testing.T) {
	repo := newFakeRepo()
	repo.holdings[1] = []domain.Holding{{FundID: 1, Ticker: "AAPL", Shares: 100}}
	p := New(repo)

	_, err := p.Project(context.Background(), TradeDelta{TradeID: 5, FundID: 1, Ticker: "AAPL", Direction: domain.DirectionSell, Shares: 100})
	require.NoError(t, err)

	_, ok := repo.sharesOf(1, 5, "AAPL")
	assert.False(t, ok)
}

func TestProjector_ProjectSellWithNoStagedHoldingErrors(t *testing.T) {
	repo := newFakeRepo()
	p := New(repo)

	_, err := p.Project(context.Background(), TradeDelta{TradeID: 5, FundID: 1, Ticker: "ZZZZ", Direction: domain.DirectionSell, Shares: 1})
	require.Error(t, err)
}

func TestProjector_ProjectWithZeroSharesIsPureCopy(t *testing.T) {
	repo := newFakeRepo()
	repo.holdings[1] = []domain.Holding{
		{FundID: 1, Ticker: "AAPL", Shares: 1000},
		{FundID: 1, Ticker: "MSFT", Shares: 500},
	}
	p := New(repo)

	rows, err := p.Project(context.Background(), TradeDelta{TradeID: 0, FundID: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestProjector_ProjectClearsPriorStagingScopeBeforeCopy(t *testing.T) {
	repo := newFakeRepo()
	repo.holdings[1] = []domain.Holding{{FundID: 1, Ticker: "AAPL", Shares: 1000}}
	p := New(repo)

	_, err := p.Project(context.Background(), TradeDelta{TradeID: 5, FundID: 1})
	require.NoError(t, err)

	// Shrink the fund's real holdings and re-project into the same scope;
	// the stale AAPL row from the first run must not survive.
	repo.holdings[1] = []domain.Holding{{FundID: 1, Ticker: "MSFT", Shares: 10}}
	rows, err := p.Project(context.Background(), TradeDelta{TradeID: 5, FundID: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "MSFT", rows[0].Ticker)
}

func TestProjector_DrainClearsStagingScope(t *testing.T) {
	repo := newFakeRepo()
	repo.holdings[1] = []domain.Holding{{FundID: 1, Ticker: "AAPL", Shares: 1000}}
	p := New(repo)

	_, err := p.Project(context.Background(), TradeDelta{TradeID: 5, FundID: 1})
	require.NoError(t, err)

	require.NoError(t, p.Drain(context.Background(), 1, 5))

	rows, err := repo.StagedForTrade(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
