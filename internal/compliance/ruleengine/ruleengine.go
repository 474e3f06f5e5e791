// Package ruleengine drives one rule's evaluation end-to-end: selects
// matching staged rows using the Rule Predicate Evaluator, calls the
// Valuator with the correct denominator, compares to threshold, and emits
// a decision (alert / pass) plus the rows that contributed.
//
// Grounded in the Python compliance_engine.py's execute_rule dispatch
// (_execute_prohibit_rule / _execute_fe_rule / _execute_standard_rule).
package ruleengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/compliance/ruleexpr"
	"github.com/fundops/compliance-engine/internal/compliance/valuator"
	"github.com/fundops/compliance-engine/internal/domain"
)

// Repository is the read model the engine is layered over: joined staged
// holdings (for the rule's filter and numerator) plus the fund's cash
// scalar (for the denominator). FundCash takes the same (fundID, tradeID)
// scope as JoinedStagedRows: for a real trade (tradeID != 0) it must
// return cash net of that trade's own pending value, so a cash-sensitive
// denominator stays consistent with the staged (post-trade) holdings it's
// paired with — both sides of the total-assets sum need to describe the
// same hypothetical post-trade portfolio, or the total stops being
// invariant around the trade. Portfolio-compliance calls (tradeID == 0)
// get the fund's actual, undiscounted cash.
type Repository interface {
	JoinedStagedRows(ctx context.Context, fundID, tradeID int64) ([]domain.JoinedHoldingRow, error)
	FundCash(ctx context.Context, fundID, tradeID int64) (decimal.Decimal, error)
}

// Engine is the Rule Engine component.
type Engine struct {
	repo Repository
}

// New builds an Engine over the given repository.
func New(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// Result is what a single rule execution emits, per spec.md §4.5:
// {ruleId, ruleName, alerted, calculatedPercentage, triggeringHoldings,
// errorReason?}.
type Result struct {
	RuleID               int64
	RuleName             string
	Alerted              bool
	CalculatedPercentage *decimal.Decimal
	TriggeringHoldings   []domain.TriggeringHolding
	ErrorReason          string
}

// Evaluate runs one rule against the staged holdings for (fund, tradeID).
func (e *Engine) Evaluate(ctx context.Context, fundID, tradeID int64, rule domain.Rule) (Result, error) {
	res := Result{RuleID: rule.RuleID, RuleName: rule.RuleName}

	compiled, err := ruleexpr.Compile(rule.Logic)
	if err != nil {
		res.ErrorReason = err.Error()
		return res, nil
	}

	rows, err := e.repo.JoinedStagedRows(ctx, fundID, tradeID)
	if err != nil {
		return Result{}, fmt.Errorf("ruleengine: load staged rows: %w", err)
	}

	matched, err := filterRows(rows, compiled)
	if err != nil {
		res.ErrorReason = err.Error()
		return res, nil
	}

	switch rule.Denominator {
	case domain.DenominatorProhibit:
		return e.evalProhibit(res, matched), nil
	case domain.DenominatorSharesOutstandingFE:
		return e.evalForEach(res, matched, rule), nil
	default:
		return e.evalStandard(ctx, res, fundID, tradeID, rows, matched, rule)
	}
}

func filterRows(rows []domain.JoinedHoldingRow, compiled *ruleexpr.Compiled) ([]domain.JoinedHoldingRow, error) {
	var out []domain.JoinedHoldingRow
	for _, r := range rows {
		ok, err := compiled.Eval(ruleexpr.RowFromJoined(r))
		if err != nil {
			return nil, fmt.Errorf("rule filter evaluation failed: %w", err)
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// evalProhibit: non-empty match set alerts with null percentage; empty
// passes.
func (e *Engine) evalProhibit(res Result, matched []domain.JoinedHoldingRow) Result {
	if len(matched) == 0 {
		res.Alerted = false
		return res
	}
	res.Alerted = true
	res.TriggeringHoldings = toTriggeringHoldings(matched, nil)
	return res
}

// evalForEach: filter first (the resolved open question), then compute
// shares/shares_outstanding*100 per holding; skip null/zero outstanding as
// an error row; compare each qualifying percentage against the threshold.
func (e *Engine) evalForEach(res Result, matched []domain.JoinedHoldingRow, rule domain.Rule) Result {
	var triggering []domain.TriggeringHolding
	var errorTickers []string

	for _, row := range matched {
		if row.SecuritiesSharesOutstanding == nil || *row.SecuritiesSharesOutstanding == 0 {
			errorTickers = append(errorTickers, row.SecuritiesTicker)
			continue
		}
		pct := decimal.NewFromInt(row.HoldingsShares).
			DivRound(decimal.NewFromInt(*row.SecuritiesSharesOutstanding), 8).
			Mul(decimal.NewFromInt(100)).Round(4)

		if rule.AlertIf == nil || rule.AlertLevel == nil {
			continue
		}
		if thresholdTriggers(pct, *rule.AlertIf, *rule.AlertLevel) {
			pctCopy := pct
			triggering = append(triggering, domain.TriggeringHolding{
				Ticker:      row.SecuritiesTicker,
				Shares:      row.HoldingsShares,
				SecurityName: row.SecuritiesName,
				IssuerName:   row.IssuersName,
				GICSSector:   row.IssuersGICSSector,
				Percentage:  &pctCopy,
			})
		}
	}

	if len(errorTickers) > 0 {
		res.ErrorReason = fmt.Sprintf("null or zero shares_outstanding for: %v", errorTickers)
	}
	sort.Slice(triggering, func(i, j int) bool { return triggering[i].Ticker < triggering[j].Ticker })
	res.TriggeringHoldings = triggering
	res.Alerted = len(triggering) > 0
	return res
}

// evalStandard handles total_assets / net_assets / total_assets_ex_cash:
// numerator = sum of market values of filter-matching rows; denominator =
// the corresponding valuator output over all staged rows.
func (e *Engine) evalStandard(ctx context.Context, res Result, fundID, tradeID int64, allRows, matched []domain.JoinedHoldingRow, rule domain.Rule) (Result, error) {
	cash, err := e.repo.FundCash(ctx, fundID, tradeID)
	if err != nil {
		return Result{}, fmt.Errorf("ruleengine: load fund cash: %w", err)
	}

	var holdingValues []valuator.HoldingValue
	for _, r := range allRows {
		holdingValues = append(holdingValues, valuator.HoldingValue{
			Ticker: r.SecuritiesTicker, Shares: r.HoldingsShares, Price: r.Price, HasPrice: r.HasPrice,
		})
	}
	totals := valuator.Aggregate(cash, holdingValues)

	if len(totals.UnpricedTickers) > 0 {
		res.ErrorReason = fmt.Sprintf("missing price for holdings: %v", totals.UnpricedTickers)
		return res, nil
	}

	denom, err := valuator.Denominator(rule.Denominator, totals)
	if err != nil {
		res.ErrorReason = err.Error()
		return res, nil
	}
	if denom.IsZero() {
		res.ErrorReason = "denominator evaluated to zero"
		return res, nil
	}

	var unpriced []string
	numerator := decimal.Zero
	for _, r := range matched {
		if !r.HasPrice {
			unpriced = append(unpriced, r.SecuritiesTicker)
			continue
		}
		numerator = numerator.Add(decimal.NewFromInt(r.HoldingsShares).Mul(r.Price))
	}
	if len(unpriced) > 0 {
		res.ErrorReason = fmt.Sprintf("missing price for holdings: %v", unpriced)
		return res, nil
	}

	pct := valuator.Percentage(numerator, denom)
	res.CalculatedPercentage = &pct

	if rule.AlertIf == nil || rule.AlertLevel == nil {
		return res, nil
	}
	if thresholdTriggers(pct, *rule.AlertIf, *rule.AlertLevel) {
		res.Alerted = true
		res.TriggeringHoldings = toTriggeringHoldings(matched, nil)
	}
	return res, nil
}

// thresholdTriggers implements the inclusive-boundary comparison of
// spec.md §4.5: above triggers iff pct >= threshold, below iff pct <= threshold.
func thresholdTriggers(pct decimal.Decimal, dir domain.AlertIf, threshold decimal.Decimal) bool {
	switch dir {
	case domain.AlertIfAbove:
		return pct.GreaterThanOrEqual(threshold)
	case domain.AlertIfBelow:
		return pct.LessThanOrEqual(threshold)
	default:
		return false
	}
}

func toTriggeringHoldings(rows []domain.JoinedHoldingRow, pct *decimal.Decimal) []domain.TriggeringHolding {
	out := make([]domain.TriggeringHolding, 0, len(rows))
	for _, r := range rows {
		th := domain.TriggeringHolding{
			Ticker:       r.SecuritiesTicker,
			Shares:       r.HoldingsShares,
			SecurityName: r.SecuritiesName,
			IssuerName:   r.IssuersName,
			GICSSector:   r.IssuersGICSSector,
		}
		if r.HasPrice {
			price := r.Price
			mv := r.MarketValue
			th.Price = &price
			th.MarketValue = &mv
		}
		out = append(out, th)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
