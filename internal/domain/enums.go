package domain

// TradeStatus is the trade lifecycle state machine position.
type TradeStatus string

const (
	TradeSubmitted  TradeStatus = "submitted"
	TradeValidating TradeStatus = "validating"
	TradeInvalid    TradeStatus = "invalid"
	TradeCompliance TradeStatus = "compliance"
	TradeAlert      TradeStatus = "alert"
	TradeCancelled  TradeStatus = "cancelled"
	TradeProcessed  TradeStatus = "processed"
)

// IsPendingStatus reports whether a trade in this status is still awaiting
// resolution (SUBMITTED, VALIDATING, COMPLIANCE, ALERT).
func (s TradeStatus) IsPendingStatus() bool {
	switch s {
	case TradeSubmitted, TradeValidating, TradeCompliance, TradeAlert:
		return true
	default:
		return false
	}
}

// TradeDirection is BUY or SELL.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "BUY"
	DirectionSell TradeDirection = "SELL"
)

// AlertStatus is the operator-facing resolution state of an Alert.
type AlertStatus string

const (
	AlertPending    AlertStatus = "pending"
	AlertOverridden AlertStatus = "overridden"
	AlertCancelled  AlertStatus = "cancelled"
)

// AlertIf is the comparison direction for a threshold rule.
type AlertIf string

const (
	AlertIfAbove AlertIf = "above"
	AlertIfBelow AlertIf = "below"
)

// DenominatorType selects the scalar divisor a rule's numerator is measured
// against.
type DenominatorType string

const (
	DenominatorTotalAssets       DenominatorType = "total_assets"
	DenominatorNetAssets         DenominatorType = "net_assets"
	DenominatorTotalAssetsExCash DenominatorType = "total_assets_ex_cash"
	DenominatorProhibit          DenominatorType = "prohibit"
	DenominatorSharesOutstandingFE DenominatorType = "shares_outstanding_fe"
)

// IsForEach reports whether this denominator kind is evaluated per-holding
// ("for-each" rules) rather than as a single fund-level ratio.
func (d DenominatorType) IsForEach() bool {
	return d == DenominatorSharesOutstandingFE
}
