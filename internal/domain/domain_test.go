package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeStatus_IsPendingStatus(t *testing.T) {
	pending := []TradeStatus{TradeSubmitted, TradeValidating, TradeCompliance, TradeAlert}
	terminal := []TradeStatus{TradeInvalid, TradeCancelled, TradeProcessed}

	for _, s := range pending {
		assert.True(t, s.IsPendingStatus(), string(s))
	}
	for _, s := range terminal {
		assert.False(t, s.IsPendingStatus(), string(s))
	}
}

func TestDenominatorType_IsForEach(t *testing.T) {
	assert.True(t, DenominatorSharesOutstandingFE.IsForEach())
	for _, d := range []DenominatorType{DenominatorTotalAssets, DenominatorNetAssets, DenominatorTotalAssetsExCash, DenominatorProhibit} {
		assert.False(t, d.IsForEach(), string(d))
	}
}

func TestEastern_IsFixedUTCMinus5(t *testing.T) {
	_, offset := time.Now().In(Eastern()).Zone()
	assert.Equal(t, -5*60*60, offset)
}

func TestNow_IsInEasternLocation(t *testing.T) {
	n := Now()
	assert.Equal(t, Eastern().String(), n.Location().String())
}

func TestRule_IsProhibit(t *testing.T) {
	prohibit := Rule{Denominator: DenominatorProhibit}
	assert.True(t, prohibit.IsProhibit())

	capped := Rule{Denominator: DenominatorTotalAssets}
	assert.False(t, capped.IsProhibit())
}

func TestTrade_DirectionHelpers(t *testing.T) {
	buy := Trade{Direction: DirectionBuy}
	assert.True(t, buy.IsBuy())
	assert.False(t, buy.IsSell())

	sell := Trade{Direction: DirectionSell}
	assert.True(t, sell.IsSell())
	assert.False(t, sell.IsBuy())
}

func TestTrade_IsTerminal(t *testing.T) {
	terminal := []TradeStatus{TradeProcessed, TradeInvalid, TradeCancelled}
	pending := []TradeStatus{TradeSubmitted, TradeValidating, TradeCompliance, TradeAlert}

	for _, s := range terminal {
		assert.True(t, Trade{Status: s}.IsTerminal(), string(s))
	}
	for _, s := range pending {
		assert.False(t, Trade{Status: s}.IsTerminal(), string(s))
	}
}

func TestAlert_StatusHelpers(t *testing.T) {
	assert.True(t, Alert{Status: AlertPending}.IsPending())
	assert.True(t, Alert{Status: AlertOverridden}.IsOverridden())
	assert.True(t, Alert{Status: AlertCancelled}.IsCancelled())
	assert.False(t, Alert{Status: AlertPending}.IsOverridden())
}

func TestValidationError_WrapsErrValidation(t *testing.T) {
	err := NewValidationError("bad input")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "bad input", err.Error())

	fieldErr := NewFieldValidationError("bad input", FieldError{Field: "shares", Reason: "must be positive"})
	var ve *ValidationError
	require.True(t, errors.As(fieldErr, &ve))
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "shares", ve.Fields[0].Field)
}

func TestAvailabilityError_WrapsErrAvailabilityAndFormats(t *testing.T) {
	err := NewAvailabilityError("shortfall of $%d, max %d shares", 5000, 66)
	assert.True(t, errors.Is(err, ErrAvailability))
	assert.Contains(t, err.Error(), "shortfall of $5000")
	assert.Contains(t, err.Error(), "66 shares")
}

func TestEvaluationError_WrapsErrEvaluationAndCarriesRuleID(t *testing.T) {
	err := NewEvaluationError(42, "missing price for %s", "NVDA")
	assert.True(t, errors.Is(err, ErrEvaluation))

	var ee *EvaluationError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, int64(42), ee.RuleID)
	assert.Contains(t, err.Error(), "rule 42")
	assert.Contains(t, err.Error(), "missing price for NVDA")
}

func TestConflictError_WrapsErrConflict(t *testing.T) {
	err := NewConflictError("alert %d already overridden", 7)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "7")
}

func TestNotFoundError_WrapsErrNotFoundAndFormats(t *testing.T) {
	err := NewNotFoundError("fund", int64(9))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "fund 9 not found", err.Error())
}
