package valuator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundops/compliance-engine/internal/domain"
)

func TestMarketValue_MultipliesSharesByPrice(t *testing.T) {
	h := HoldingValue{Ticker: "AAPL", Shares: 1100, Price: decimal.NewFromFloat(150.00), HasPrice: true}
	assert.True(t, decimal.NewFromFloat(165000.00).Equal(MarketValue(h)))
}

func TestAggregate_SumsPricedHoldingsPlusCash(t *testing.T) {
	holdings := []HoldingValue{
		{Ticker: "MSFT", Shares: 500, Price: decimal.NewFromFloat(300.00), HasPrice: true},
		{Ticker: "AAPL", Shares: 1100, Price: decimal.NewFromFloat(150.00), HasPrice: true},
	}
	totals := Aggregate(decimal.NewFromFloat(85000.00), holdings)

	assert.True(t, decimal.NewFromFloat(315000.00).Equal(totals.TotalAssetsExCash))
	assert.True(t, decimal.NewFromFloat(400000.00).Equal(totals.TotalAssets))
	assert.Empty(t, totals.UnpricedTickers)
}

func TestAggregate_ExcludesAndFlagsUnpricedHoldings(t *testing.T) {
	holdings := []HoldingValue{
		{Ticker: "AAPL", Shares: 100, Price: decimal.NewFromFloat(150.00), HasPrice: true},
		{Ticker: "ZZZZ", Shares: 50, HasPrice: false},
	}
	totals := Aggregate(decimal.Zero, holdings)

	assert.True(t, decimal.NewFromFloat(15000.00).Equal(totals.TotalAssetsExCash))
	assert.Equal(t, []string{"ZZZZ"}, totals.UnpricedTickers)
}

func TestAggregate_RoundsHalfEvenToTwoDecimalPlaces(t *testing.T) {
	holdings := []HoldingValue{
		{Ticker: "AAPL", Shares: 3, Price: decimal.NewFromFloat(0.125), HasPrice: true},
	}
	totals := Aggregate(decimal.Zero, holdings)
	// 3 * 0.125 = 0.375 -> banker's rounding to 2dp rounds to 0.38 (round
	// half to even on the discarded 5 with an odd preceding digit rounds up).
	assert.True(t, decimal.NewFromFloat(0.38).Equal(totals.TotalAssetsExCash))
}

func TestDenominator_ResolvesTotalAssetsAndNetAssetsToTotalAssets(t *testing.T) {
	totals := Totals{TotalAssets: decimal.NewFromFloat(400000.00), TotalAssetsExCash: decimal.NewFromFloat(315000.00)}

	d, err := Denominator(domain.DenominatorTotalAssets, totals)
	require.NoError(t, err)
	assert.True(t, totals.TotalAssets.Equal(d))

	d, err = Denominator(domain.DenominatorNetAssets, totals)
	require.NoError(t, err)
	assert.True(t, totals.TotalAssets.Equal(d))
}

func TestDenominator_ResolvesTotalAssetsExCash(t *testing.T) {
	totals := Totals{TotalAssets: decimal.NewFromFloat(400000.00), TotalAssetsExCash: decimal.NewFromFloat(315000.00)}

	d, err := Denominator(domain.DenominatorTotalAssetsExCash, totals)
	require.NoError(t, err)
	assert.True(t, totals.TotalAssetsExCash.Equal(d))
}

func TestDenominator_RejectsProhibitAndForEachKinds(t *testing.T) {
	totals := Totals{TotalAssets: decimal.NewFromFloat(400000.00)}

	_, err := Denominator(domain.DenominatorProhibit, totals)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEvaluation))

	_, err = Denominator(domain.DenominatorSharesOutstandingFE, totals)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEvaluation))
}

func TestPercentage_ComputesRatioScaledToHundred(t *testing.T) {
	// scenario 2: numerator 315000, denominator 400000 -> 78.75%
	p := Percentage(decimal.NewFromFloat(315000.00), decimal.NewFromFloat(400000.00))
	assert.True(t, decimal.NewFromFloat(78.75).Equal(p))
}

func TestPercentage_ComputesForEachOwnershipRatio(t *testing.T) {
	// scenario 5: 200,000,000 / 2,500,000,000 -> 8%
	p := Percentage(decimal.NewFromInt(200_000_000), decimal.NewFromInt(2_500_000_000))
	assert.True(t, decimal.NewFromFloat(8.0).Equal(p))
}
