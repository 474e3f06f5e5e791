// Package valuator computes market values and fund-level denominators
// (total assets, net assets, total assets ex-cash) used by the Rule Engine.
//
// All arithmetic is fixed-point: integer shares times a 3dp price yields a
// 3dp intermediate, aggregated into 2dp totals by half-even (banker's)
// rounding, grounded in the Python Fund.calculate_total_assets family.
package valuator

import (
	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/domain"
)

// HoldingValue is one priced holding row: shares plus its latest price, or
// an unknown-price flag when no price point exists for the ticker.
type HoldingValue struct {
	Ticker   string
	Shares   int64
	Price    decimal.Decimal
	HasPrice bool
}

// MarketValue returns shares * price for a priced holding. Unpriced
// holdings have no market value; callers must check HasPrice first.
func MarketValue(h HoldingValue) decimal.Decimal {
	return decimal.NewFromInt(h.Shares).Mul(h.Price)
}

// Totals is the result of aggregating a holdings set plus a cash scalar.
type Totals struct {
	TotalAssets       decimal.Decimal
	TotalAssetsExCash decimal.Decimal
	// UnpricedTickers lists holdings excluded from the sum because no
	// latest price exists for them. A non-empty list means any rule
	// depending on this denominator must abort as an evaluation error
	// rather than silently using an incomplete total.
	UnpricedTickers []string
}

// Aggregate sums market value across a holdings set plus cash, per spec:
// total_assets = cash + sum(shares*price); holdings with no price are
// excluded from the sum and flagged.
func Aggregate(cash decimal.Decimal, holdings []HoldingValue) Totals {
	sum := decimal.Zero
	var unpriced []string
	for _, h := range holdings {
		if !h.HasPrice {
			unpriced = append(unpriced, h.Ticker)
			continue
		}
		sum = sum.Add(MarketValue(h))
	}
	sum = sum.RoundBank(2)
	total := sum.Add(cash).RoundBank(2)
	return Totals{
		TotalAssets:       total,
		TotalAssetsExCash: sum,
		UnpricedTickers:   unpriced,
	}
}

// Denominator resolves the scalar divisor for a given kind. Prohibit and
// for-each rules have no true ratio denominator; the Rule Engine never
// calls this for those kinds (dispatch happens before denominator lookup).
func Denominator(kind domain.DenominatorType, totals Totals) (decimal.Decimal, error) {
	switch kind {
	case domain.DenominatorTotalAssets, domain.DenominatorNetAssets:
		return totals.TotalAssets, nil
	case domain.DenominatorTotalAssetsExCash:
		return totals.TotalAssetsExCash, nil
	default:
		return decimal.Zero, domain.NewEvaluationError(0, "denominator %q has no scalar value", kind)
	}
}

// Percentage computes numerator/denominator * 100 with at least 4dp
// precision before comparison and display, per spec's ratio requirement.
func Percentage(numerator, denominator decimal.Decimal) decimal.Decimal {
	return numerator.DivRound(denominator, 8).Mul(decimal.NewFromInt(100)).Round(4)
}
