package ruleengine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundops/compliance-engine/internal/domain"
)

type fakeRepo struct {
	rows []domain.JoinedHoldingRow
	cash decimal.Decimal
}

func (f *fakeRepo) JoinedStagedRows(ctx context.Context, fundID, tradeID int64) ([]domain.JoinedHoldingRow, error) {
	return f.rows, nil
}

func (f *fakeRepo) FundCash(ctx context.Context, fundID, tradeID int64) (decimal.Decimal, error) {
	return f.cash, nil
}

func alertIfPtr(v domain.AlertIf) *domain.AlertIf { return &v }
func decPtr(v float64) *decimal.Decimal           { d := decimal.NewFromFloat(v); return &d }
func intPtr(v int64) *int64                       { return &v }

// TestEvaluate_SectorCapAlertScenario grounds spec.md scenario 2.
func TestEvaluate_SectorCapAlertScenario(t *testing.T) {
	repo := &fakeRepo{
		cash: decimal.NewFromFloat(85000.00),
		rows: []domain.JoinedHoldingRow{
			{SecuritiesTicker: "MSFT", HoldingsShares: 500, Price: decimal.NewFromFloat(300.00), HasPrice: true, IssuersGICSSector: "Information Technology"},
			{SecuritiesTicker: "AAPL", HoldingsShares: 1100, Price: decimal.NewFromFloat(150.00), HasPrice: true, IssuersGICSSector: "Information Technology"},
		},
	}
	e := New(repo)
	rule := domain.Rule{
		RuleID: 1, RuleName: "IT sector cap", Logic: "issuers.gics_sector = 'Information Technology'",
		Denominator: domain.DenominatorTotalAssets, AlertIf: alertIfPtr(domain.AlertIfAbove), AlertLevel: decPtr(30),
	}

	res, err := e.Evaluate(context.Background(), 1, 7, rule)
	require.NoError(t, err)
	require.True(t, res.Alerted)
	require.NotNil(t, res.CalculatedPercentage)
	assert.True(t, decimal.NewFromFloat(78.75).Equal(*res.CalculatedPercentage))
	require.Len(t, res.TriggeringHoldings, 2)
	assert.Equal(t, "AAPL", res.TriggeringHoldings[0].Ticker)
	assert.Equal(t, "MSFT", res.TriggeringHoldings[1].Ticker)
}

// TestEvaluate_ProhibitRulePassesOnZeroMatches grounds spec.md scenario 3.
func TestEvaluate_ProhibitRulePassesOnZeroMatches(t *testing.T) {
	repo := &fakeRepo{
		rows: []domain.JoinedHoldingRow{
			{SecuritiesTicker: "AAPL", HoldingsShares: 10, IssuersCountryIncorpCode: "US"},
		},
	}
	e := New(repo)
	rule := domain.Rule{RuleID: 2, RuleName: "sanctioned countries", Logic: "issuers.country_incorporation_code IN ('PRK', 'MMR', 'TKM')", Denominator: domain.DenominatorProhibit}

	res, err := e.Evaluate(context.Background(), 1, 7, rule)
	require.NoError(t, err)
	assert.False(t, res.Alerted)
	assert.Empty(t, res.TriggeringHoldings)
}

func TestEvaluate_ProhibitRuleAlertsOnAnyMatch(t *testing.T) {
	repo := &fakeRepo{
		rows: []domain.JoinedHoldingRow{
			{SecuritiesTicker: "NKOR", HoldingsShares: 10, IssuersCountryIncorpCode: "PRK"},
		},
	}
	e := New(repo)
	rule := domain.Rule{RuleID: 2, Logic: "issuers.country_incorporation_code IN ('PRK', 'MMR', 'TKM')", Denominator: domain.DenominatorProhibit}

	res, err := e.Evaluate(context.Background(), 1, 7, rule)
	require.NoError(t, err)
	assert.True(t, res.Alerted)
	assert.Nil(t, res.CalculatedPercentage)
	require.Len(t, res.TriggeringHoldings, 1)
}

// TestEvaluate_ForEachOwnershipLimitScenario grounds spec.md scenario 5.
func TestEvaluate_ForEachOwnershipLimitScenario(t *testing.T) {
	repo := &fakeRepo{
		rows: []domain.JoinedHoldingRow{
			{SecuritiesTicker: "NVDA", HoldingsShares: 200_000_000, SecuritiesSharesOutstanding: intPtr(2_500_000_000)},
		},
	}
	e := New(repo)
	rule := domain.Rule{
		RuleID: 3, Logic: "", Denominator: domain.DenominatorSharesOutstandingFE,
		AlertIf: alertIfPtr(domain.AlertIfAbove), AlertLevel: decPtr(5),
	}

	res, err := e.Evaluate(context.Background(), 1, 0, rule)
	require.NoError(t, err)
	assert.True(t, res.Alerted)
	assert.Nil(t, res.CalculatedPercentage, "for-each results carry a null fund-level percentage")
	require.Len(t, res.TriggeringHoldings, 1)
	assert.Equal(t, "NVDA", res.TriggeringHoldings[0].Ticker)
	require.NotNil(t, res.TriggeringHoldings[0].Percentage)
	assert.True(t, decimal.NewFromFloat(8.0).Equal(*res.TriggeringHoldings[0].Percentage))
}

func TestEvaluate_ForEachNullSharesOutstandingEmitsErrorReasonNotSilentPass(t *testing.T) {
	repo := &fakeRepo{
		rows: []domain.JoinedHoldingRow{
			{SecuritiesTicker: "MYST", HoldingsShares: 100, SecuritiesSharesOutstanding: nil},
		},
	}
	e := New(repo)
	rule := domain.Rule{RuleID: 3, Denominator: domain.DenominatorSharesOutstandingFE, AlertIf: alertIfPtr(domain.AlertIfAbove), AlertLevel: decPtr(5)}

	res, err := e.Evaluate(context.Background(), 1, 0, rule)
	require.NoError(t, err)
	assert.False(t, res.Alerted)
	assert.Contains(t, res.ErrorReason, "MYST")
}

func TestEvaluate_StandardRuleMissingPriceIsEvaluationErrorNotZero(t *testing.T) {
	repo := &fakeRepo{
		cash: decimal.Zero,
		rows: []domain.JoinedHoldingRow{
			{SecuritiesTicker: "AAPL", HoldingsShares: 100, HasPrice: false},
		},
	}
	e := New(repo)
	rule := domain.Rule{Logic: "1=1", Denominator: domain.DenominatorTotalAssets, AlertIf: alertIfPtr(domain.AlertIfAbove), AlertLevel: decPtr(1)}

	res, err := e.Evaluate(context.Background(), 1, 0, rule)
	require.NoError(t, err)
	assert.False(t, res.Alerted)
	assert.Contains(t, res.ErrorReason, "AAPL")
}

func TestEvaluate_StandardRuleZeroDenominatorIsEvaluationError(t *testing.T) {
	repo := &fakeRepo{cash: decimal.Zero, rows: nil}
	e := New(repo)
	rule := domain.Rule{Logic: "1=1", Denominator: domain.DenominatorTotalAssets, AlertIf: alertIfPtr(domain.AlertIfAbove), AlertLevel: decPtr(1)}

	res, err := e.Evaluate(context.Background(), 1, 0, rule)
	require.NoError(t, err)
	assert.False(t, res.Alerted)
	assert.Contains(t, res.ErrorReason, "zero")
}

func TestEvaluate_InvalidLogicIsReportedAsErrorReasonNotAnError(t *testing.T) {
	repo := &fakeRepo{}
	e := New(repo)
	rule := domain.Rule{Logic: "DROP TABLE rules", Denominator: domain.DenominatorProhibit}

	res, err := e.Evaluate(context.Background(), 1, 0, rule)
	require.NoError(t, err)
	assert.False(t, res.Alerted)
	assert.NotEmpty(t, res.ErrorReason)
}

func TestEvaluate_BoundaryThresholdInclusive(t *testing.T) {
	repo := &fakeRepo{
		cash: decimal.Zero,
		rows: []domain.JoinedHoldingRow{
			{SecuritiesTicker: "AAPL", HoldingsShares: 30, Price: decimal.NewFromFloat(1.00), HasPrice: true},
		},
	}
	e := New(repo)
	rule := domain.Rule{Logic: "1=1", Denominator: domain.DenominatorTotalAssets, AlertIf: alertIfPtr(domain.AlertIfAbove), AlertLevel: decPtr(100)}

	res, err := e.Evaluate(context.Background(), 1, 0, rule)
	require.NoError(t, err)
	assert.True(t, res.Alerted, "percentage exactly equal to an 'above' threshold must fire")
}

func TestValidateRule_RequiresNameAndMessage(t *testing.T) {
	err := ValidateRule(context.Background(), domain.Rule{Denominator: domain.DenominatorTotalAssets, Logic: "1=1"}, nil)
	require.Error(t, err)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	var fields []string
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "rule_name")
	assert.Contains(t, fields, "alert_message")
}

func TestValidateRule_RejectsUnknownDenominator(t *testing.T) {
	err := ValidateRule(context.Background(), domain.Rule{RuleName: "x", AlertMessage: "y", Denominator: "bogus", Logic: "1=1"}, nil)
	require.Error(t, err)
}

func TestValidateRule_RejectsDuplicateName(t *testing.T) {
	nameExists := func(ctx context.Context, name string, excludeRuleID int64) (bool, error) { return true, nil }
	err := ValidateRule(context.Background(), domain.Rule{RuleName: "dup", AlertMessage: "y", Denominator: domain.DenominatorTotalAssets, Logic: "1=1"}, nameExists)
	require.Error(t, err)
}

func TestValidateRule_RejectsNegativeAlertLevel(t *testing.T) {
	neg := decimal.NewFromFloat(-1)
	rule := domain.Rule{RuleName: "x", AlertMessage: "y", Denominator: domain.DenominatorTotalAssets, Logic: "1=1", AlertLevel: &neg}
	err := ValidateRule(context.Background(), rule, nil)
	require.Error(t, err)
}

func TestValidateRule_RejectsInvalidLogic(t *testing.T) {
	rule := domain.Rule{RuleName: "x", AlertMessage: "y", Denominator: domain.DenominatorTotalAssets, Logic: "holdings.shares >"}
	err := ValidateRule(context.Background(), rule, nil)
	require.Error(t, err)
}

func TestValidateRule_PassesOnWellFormedRule(t *testing.T) {
	rule := domain.Rule{RuleName: "x", AlertMessage: "y", Denominator: domain.DenominatorTotalAssets, Logic: "1=1", AlertIf: alertIfPtr(domain.AlertIfAbove), AlertLevel: decPtr(30)}
	err := ValidateRule(context.Background(), rule, func(ctx context.Context, name string, excludeRuleID int64) (bool, error) { return false, nil })
	require.NoError(t, err)
}
