// Package domain provides the core entities of the compliance engine:
// funds, issuers, securities, price points, holdings (real and staged),
// rules, rule attachments, trades and alerts.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Eastern returns the fixed UTC-5 offset used for all persisted timestamps.
// The domain has no DST-sensitive behavior, so a fixed offset is used
// instead of a tz-database location lookup.
func Eastern() *time.Location {
	return time.FixedZone("EST", -5*60*60)
}

// Now returns the current time in the domain's persisted timezone.
func Now() time.Time {
	return time.Now().In(Eastern())
}

// Fund is an investment fund: a cash balance plus a set of Holdings.
type Fund struct {
	FundID    int64           `json:"fund_id" db:"fund_id"`
	FundName  string          `json:"fund_name" db:"fund_name"`
	Cash      decimal.Decimal `json:"cash" db:"cash"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Issuer is a company that issues Securities. Immutable from the engine's
// perspective.
type Issuer struct {
	IssuerID                  int64     `json:"issr_id" db:"issr_id"`
	Name                      string    `json:"name" db:"name"`
	GICSSector                string    `json:"gics_sector" db:"gics_sector"`
	GICSIndustryGroup         string    `json:"gics_industry_grp" db:"gics_industry_grp"`
	GICSIndustry              string    `json:"gics_industry" db:"gics_industry"`
	GICSSubIndustry           string    `json:"gics_sub_industry" db:"gics_sub_industry"`
	CountryDomicile           string    `json:"country_domicile" db:"country_domicile"`
	CountryIncorporation      string    `json:"country_incorporation" db:"country_incorporation"`
	CountryDomicileCode       string    `json:"country_domicile_code" db:"country_domicile_code"`
	CountryIncorporationCode  string    `json:"country_incorporation_code" db:"country_incorporation_code"`
	CreatedAt                 time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at" db:"updated_at"`
}

// Security is identified by its ticker (canonical uppercase string).
// Owned exclusively by one Issuer; lookup only.
type Security struct {
	Ticker            string    `json:"ticker" db:"ticker"`
	Name              string    `json:"name" db:"name"`
	Type              string    `json:"type" db:"type"`
	SharesOutstanding *int64    `json:"shares_outstanding" db:"shares_outstanding"`
	MarketCap         *int64    `json:"market_cap" db:"market_cap"`
	IssuerID          int64     `json:"issr_id" db:"issr_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// PricePoint is a (ticker, date) -> price fact. One price per ticker per
// date; most recent by date is "current".
type PricePoint struct {
	Ticker    string          `json:"ticker" db:"ticker"`
	PriceDate time.Time       `json:"price_date" db:"price_date"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Holding is a (fund, ticker) -> shares position. At most one Holding per
// (fund, ticker); shares >= 1 when present.
type Holding struct {
	HoldingID int64     `json:"holding_id" db:"holding_id"`
	FundID    int64     `json:"fund_id" db:"fund_id"`
	Ticker    string    `json:"ticker" db:"ticker"`
	Shares    int64     `json:"shares" db:"shares"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StagedHolding is a (fund, ticker, trade-id) -> shares projection. Lives
// only for the span of a compliance check. TradeID 0 denotes portfolio
// compliance (no-op trade).
type StagedHolding struct {
	StagingID int64     `json:"staging_id" db:"staging_id"`
	FundID    int64     `json:"fund_id" db:"fund_id"`
	Ticker    string    `json:"ticker" db:"ticker"`
	TradeID   int64     `json:"trade_id" db:"trade_id"`
	Shares    int64     `json:"shares" db:"shares"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// JoinedHoldingRow is the stable, closed schema that the Rule Predicate
// Evaluator evaluates expressions against: a staged holding joined with its
// security and issuer attributes.
type JoinedHoldingRow struct {
	HoldingsTicker               string
	HoldingsShares               int64
	HoldingsFundID               int64
	SecuritiesTicker             string
	SecuritiesName               string
	SecuritiesType               string
	SecuritiesSharesOutstanding  *int64
	IssuersName                  string
	IssuersGICSSector            string
	IssuersGICSIndustryGrp       string
	IssuersGICSIndustry          string
	IssuersGICSSubIndustry       string
	IssuersCountryDomicile       string
	IssuersCountryIncorporation  string
	IssuersCountryDomicileCode   string
	IssuersCountryIncorpCode     string

	// Price and market value are not part of the closed evaluator schema
	// but travel with the row so the Rule Engine can sum numerators
	// without a second lookup.
	Price       decimal.Decimal
	MarketValue decimal.Decimal
	HasPrice    bool
}

// Rule is a configurable compliance rule.
type Rule struct {
	RuleID                   int64           `json:"rule_id" db:"rule_id"`
	RuleName                 string          `json:"rule_name" db:"rule_name"`
	AlertMessage             string          `json:"alert_message" db:"alert_message"`
	TradeComplianceMode      bool            `json:"trade_compliance_mode" db:"trade_compliance_mode"`
	PortfolioComplianceMode  bool            `json:"portfolio_compliance_mode" db:"portfolio_compliance_mode"`
	Logic                    string          `json:"logic" db:"logic"`
	Denominator              DenominatorType `json:"denominator" db:"denominator"`
	AlertIf                  *AlertIf        `json:"alert_if" db:"alert_if"`
	AlertLevel               *decimal.Decimal `json:"alert_level" db:"alert_level"`
	Active                   bool            `json:"active" db:"active"`
	CreatedAt                time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at" db:"updated_at"`
}

// IsProhibit reports whether this rule has no threshold (presence of any
// matching row is the violation).
func (r Rule) IsProhibit() bool {
	return r.Denominator == DenominatorProhibit
}

// RuleAttachment links a Rule to a Fund. Uniqueness on (rule, fund);
// inactive attachments behave as absent.
type RuleAttachment struct {
	AttachmentID int64     `json:"attachment_id" db:"attachment_id"`
	RuleID       int64     `json:"rule_id" db:"rule_id"`
	FundID       int64     `json:"fund_id" db:"fund_id"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Trade is a fund transaction, BUY or SELL.
type Trade struct {
	TradeID    int64            `json:"trade_id" db:"trade_id"`
	FundID     int64            `json:"fund_id" db:"fund_id"`
	Ticker     string           `json:"ticker" db:"ticker"`
	Direction  TradeDirection   `json:"direction" db:"direction"`
	Shares     int64            `json:"shares" db:"shares"`
	Price      *decimal.Decimal `json:"price" db:"price"`
	TotalValue *decimal.Decimal `json:"total_value" db:"total_value"`
	Status     TradeStatus      `json:"status" db:"status"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}

// IsBuy reports whether this is a BUY trade.
func (t Trade) IsBuy() bool { return t.Direction == DirectionBuy }

// IsSell reports whether this is a SELL trade.
func (t Trade) IsSell() bool { return t.Direction == DirectionSell }

// IsTerminal reports whether the trade is in one of the three terminal
// states: PROCESSED, INVALID, CANCELLED.
func (t Trade) IsTerminal() bool {
	switch t.Status {
	case TradeProcessed, TradeInvalid, TradeCancelled:
		return true
	default:
		return false
	}
}

// Alert is a persisted record that a Rule fired for a Fund, optionally tied
// to a Trade.
type Alert struct {
	AlertID               int64            `json:"alert_id" db:"alert_id"`
	RuleID                int64            `json:"rule_id" db:"rule_id"`
	FundID                int64            `json:"fund_id" db:"fund_id"`
	TradeID               *int64           `json:"trade_id" db:"trade_id"`
	CalculatedPercentage  *decimal.Decimal `json:"calculated_percentage" db:"calculated_percentage"`
	HoldingsTriggered     string           `json:"holdings_triggered" db:"holdings_triggered"`
	Status                AlertStatus      `json:"status" db:"status"`
	OverrideReason        *string          `json:"override_reason" db:"override_reason"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at" db:"updated_at"`
}

// IsPending reports whether the alert is still awaiting operator action.
func (a Alert) IsPending() bool { return a.Status == AlertPending }

// IsOverridden reports whether the alert has been overridden.
func (a Alert) IsOverridden() bool { return a.Status == AlertOverridden }

// IsCancelled reports whether the alert has been cancelled.
func (a Alert) IsCancelled() bool { return a.Status == AlertCancelled }

// TriggeringHolding is one row of the serialised holdings_triggered list.
type TriggeringHolding struct {
	Ticker      string           `json:"ticker"`
	Shares      int64            `json:"shares"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	MarketValue *decimal.Decimal `json:"market_value,omitempty"`
	SecurityName string          `json:"security_name,omitempty"`
	IssuerName   string          `json:"issuer_name,omitempty"`
	GICSSector   string          `json:"gics_sector,omitempty"`
	// Percentage is populated only for shares_outstanding_fe
	// ("for-each") rule results.
	Percentage  *decimal.Decimal `json:"percentage,omitempty"`
}
