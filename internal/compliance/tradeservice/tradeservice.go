// Package tradeservice is the Trade Orchestrator: it drives a trade through
// its full lifecycle (SUBMITTED -> VALIDATING -> {INVALID|COMPLIANCE} ->
// {ALERT|PROCESSED}, with ALERT resolved by override-all or cancel) by
// sequencing the other compliance components in order.
//
// Grounded in the teacher's internal/modules/trading service shape (a
// struct of narrow repository dependencies plus an events bus) and the
// Python trade_service.py / trade_validator.py / trade_compliance.py
// control flow.
package tradeservice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/compliance/alertregistry"
	"github.com/fundops/compliance-engine/internal/compliance/priceoracle"
	"github.com/fundops/compliance-engine/internal/compliance/ruleengine"
	"github.com/fundops/compliance-engine/internal/compliance/staging"
	"github.com/fundops/compliance-engine/internal/compliance/writer"
	"github.com/fundops/compliance-engine/internal/domain"
	"github.com/fundops/compliance-engine/internal/events"
)

// FundRepository is the read boundary onto Fund rows.
type FundRepository interface {
	Get(ctx context.Context, fundID int64) (*domain.Fund, error)
}

// SecurityRepository is the read boundary onto Security rows.
type SecurityRepository interface {
	Get(ctx context.Context, ticker string) (*domain.Security, error)
}

// HoldingRepository is the read boundary onto real (non-staged) Holdings.
type HoldingRepository interface {
	Get(ctx context.Context, fundID int64, ticker string) (*domain.Holding, error)
}

// TradeRepository is the persistence boundary for Trade rows.
type TradeRepository interface {
	Create(ctx context.Context, trade domain.Trade) (domain.Trade, error)
	Get(ctx context.Context, tradeID int64) (*domain.Trade, error)
	UpdateStatus(ctx context.Context, tradeID int64, status domain.TradeStatus) error
	SetPricing(ctx context.Context, tradeID int64, price, totalValue decimal.Decimal) error
}

// RuleRepository resolves the rules attached and active for a fund, ordered
// by attachment id ascending (the Python engine's evaluation order),
// filtered to either trade-compliance or portfolio-compliance mode.
type RuleRepository interface {
	AttachedRules(ctx context.Context, fundID int64, tradeCompliance bool) ([]domain.Rule, error)
}

// Service is the Trade Orchestrator component.
type Service struct {
	funds      FundRepository
	securities SecurityRepository
	holdings   HoldingRepository
	trades     TradeRepository
	rules      RuleRepository

	oracle   *priceoracle.Oracle
	projector *staging.Projector
	engine    *ruleengine.Engine
	alerts    *alertregistry.Registry
	writer    *writer.Writer
	bus       *events.Manager
	log       zerolog.Logger

	locks *fundLocker
}

// New wires the Trade Orchestrator over its dependencies.
func New(
	funds FundRepository,
	securities SecurityRepository,
	holdings HoldingRepository,
	trades TradeRepository,
	rules RuleRepository,
	oracle *priceoracle.Oracle,
	projector *staging.Projector,
	engine *ruleengine.Engine,
	alerts *alertregistry.Registry,
	w *writer.Writer,
	bus *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		funds: funds, securities: securities, holdings: holdings, trades: trades, rules: rules,
		oracle: oracle, projector: projector, engine: engine, alerts: alerts, writer: w, bus: bus,
		log:   log.With().Str("component", "tradeservice").Logger(),
		locks: newFundLocker(),
	}
}

// SubmitInput is the caller-supplied shape of a new trade.
type SubmitInput struct {
	FundID    int64
	Ticker    string
	Direction domain.TradeDirection
	Shares    int64
}

// SubmitTrade drives one trade through validation, availability, staging,
// and rule evaluation, committing it immediately if it clears every
// attached trade-compliance rule, or leaving it in ALERT for operator
// resolution otherwise.
func (s *Service) SubmitTrade(ctx context.Context, in SubmitInput) (domain.Trade, []ruleengine.Result, error) {
	if in.Direction != domain.DirectionBuy && in.Direction != domain.DirectionSell {
		return domain.Trade{}, nil, domain.NewFieldValidationError("trade rejected",
			domain.FieldError{Field: "direction", Reason: fmt.Sprintf("invalid direction %q", in.Direction)})
	}
	if in.Shares <= 0 {
		return domain.Trade{}, nil, domain.NewFieldValidationError("trade rejected",
			domain.FieldError{Field: "shares", Reason: "must be a positive integer"})
	}

	fund, err := s.funds.Get(ctx, in.FundID)
	if err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: load fund: %w", err)
	}
	if fund == nil {
		return domain.Trade{}, nil, domain.NewNotFoundError("fund", in.FundID)
	}
	security, err := s.securities.Get(ctx, in.Ticker)
	if err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: load security: %w", err)
	}
	if security == nil {
		return domain.Trade{}, nil, domain.NewFieldValidationError("trade rejected",
			domain.FieldError{Field: "ticker", Reason: fmt.Sprintf("unknown ticker %q", in.Ticker)})
	}

	trade, err := s.trades.Create(ctx, domain.Trade{
		FundID: in.FundID, Ticker: in.Ticker, Direction: in.Direction, Shares: in.Shares,
		Status: domain.TradeSubmitted,
	})
	if err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: create trade: %w", err)
	}

	unlock := s.locks.Lock(in.FundID)
	defer unlock()

	return s.runPricingAndCompliance(ctx, trade, fund, security)
}

func (s *Service) runPricingAndCompliance(ctx context.Context, trade domain.Trade, fund *domain.Fund, security *domain.Security) (domain.Trade, []ruleengine.Result, error) {
	if err := s.trades.UpdateStatus(ctx, trade.TradeID, domain.TradeValidating); err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: mark validating: %w", err)
	}
	trade.Status = domain.TradeValidating

	price, err := s.oracle.LatestPrice(ctx, trade.Ticker)
	if err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: price lookup: %w", err)
	}
	if price == nil {
		return s.invalidate(ctx, trade, fmt.Sprintf("no price available for %s", trade.Ticker))
	}
	totalValue := price.Mul(decimal.NewFromInt(trade.Shares)).RoundBank(2)

	// fund was loaded before the per-fund lock in SubmitTrade; re-read it now
	// that the lock is held so a trade queued behind a just-committed one
	// checks availability against the post-commit cash balance, not a stale
	// snapshot. Without this a second concurrent BUY against the same fund
	// could pass the cash check twice against the same starting balance.
	current, err := s.funds.Get(ctx, trade.FundID)
	if err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: reload fund: %w", err)
	}
	if current == nil {
		return domain.Trade{}, nil, domain.NewNotFoundError("fund", trade.FundID)
	}
	fund = current

	if err := s.checkAvailability(ctx, trade, fund, *price, totalValue); err != nil {
		return s.invalidate(ctx, trade, err.Error())
	}

	if err := s.trades.SetPricing(ctx, trade.TradeID, *price, totalValue); err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: set pricing: %w", err)
	}
	trade.Price, trade.TotalValue = price, &totalValue

	if err := s.trades.UpdateStatus(ctx, trade.TradeID, domain.TradeCompliance); err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: mark compliance: %w", err)
	}
	trade.Status = domain.TradeCompliance

	return s.runCompliance(ctx, trade)
}

// checkAvailability enforces BUY cash-sufficiency and SELL share-sufficiency,
// with the remedial wording spec.md §4.6 requires (shortfall / max
// affordable shares for BUY, held quantity for SELL).
func (s *Service) checkAvailability(ctx context.Context, trade domain.Trade, fund *domain.Fund, price, totalValue decimal.Decimal) error {
	switch trade.Direction {
	case domain.DirectionBuy:
		if fund.Cash.LessThan(totalValue) {
			shortfall := totalValue.Sub(fund.Cash)
			maxShares := fund.Cash.Div(price).Floor()
			return domain.NewAvailabilityError(
				"insufficient cash: need %s more to buy %d shares of %s at %s (max affordable: %s shares)",
				shortfall.StringFixed(2), trade.Shares, trade.Ticker, price.StringFixed(3), maxShares.String(),
			)
		}
	case domain.DirectionSell:
		holding, err := s.holdings.Get(ctx, trade.FundID, trade.Ticker)
		if err != nil {
			return fmt.Errorf("tradeservice: load holding: %w", err)
		}
		held := int64(0)
		if holding != nil {
			held = holding.Shares
		}
		if held < trade.Shares {
			return domain.NewAvailabilityError(
				"insufficient shares: fund holds %d shares of %s, cannot sell %d",
				held, trade.Ticker, trade.Shares,
			)
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, trade domain.Trade, reason string) (domain.Trade, []ruleengine.Result, error) {
	if err := s.trades.UpdateStatus(ctx, trade.TradeID, domain.TradeInvalid); err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: mark invalid: %w", err)
	}
	trade.Status = domain.TradeInvalid
	return trade, nil, domain.NewAvailabilityError("%s", reason)
}

// runCompliance projects the trade into staging, evaluates every attached
// trade-compliance rule, and either commits the trade or parks it in ALERT.
func (s *Service) runCompliance(ctx context.Context, trade domain.Trade) (domain.Trade, []ruleengine.Result, error) {
	_, err := s.projector.Project(ctx, staging.TradeDelta{
		TradeID: trade.TradeID, FundID: trade.FundID, Ticker: trade.Ticker,
		Direction: trade.Direction, Shares: trade.Shares,
	})
	if err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: project staging: %w", err)
	}

	rules, err := s.rules.AttachedRules(ctx, trade.FundID, true)
	if err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: load attached rules: %w", err)
	}

	results := make([]ruleengine.Result, 0, len(rules))
	alerted := false
	for _, rule := range rules {
		res, err := s.engine.Evaluate(ctx, trade.FundID, trade.TradeID, rule)
		if err != nil {
			return domain.Trade{}, nil, fmt.Errorf("tradeservice: evaluate rule %d: %w", rule.RuleID, err)
		}
		results = append(results, res)
		if res.Alerted {
			alerted = true
			tradeID := trade.TradeID
			triggered, err := formatTriggered(res.TriggeringHoldings)
			if err != nil {
				return domain.Trade{}, nil, fmt.Errorf("tradeservice: format alert for rule %d: %w", rule.RuleID, err)
			}
			if _, err := s.alerts.Create(ctx, domain.Alert{
				RuleID: rule.RuleID, FundID: trade.FundID, TradeID: &tradeID,
				CalculatedPercentage: res.CalculatedPercentage,
				HoldingsTriggered:    triggered,
			}); err != nil {
				return domain.Trade{}, nil, fmt.Errorf("tradeservice: create alert for rule %d: %w", rule.RuleID, err)
			}
			s.bus.Emit(events.AlertEventData{RuleID: rule.RuleID, FundID: trade.FundID, TradeID: &tradeID})
		}
	}

	if alerted {
		if err := s.trades.UpdateStatus(ctx, trade.TradeID, domain.TradeAlert); err != nil {
			return domain.Trade{}, nil, fmt.Errorf("tradeservice: mark alert: %w", err)
		}
		trade.Status = domain.TradeAlert
		s.log.Warn().Int64("trade_id", trade.TradeID).Int64("fund_id", trade.FundID).Str("ticker", trade.Ticker).Msg("trade parked in ALERT")
		s.bus.Emit(events.TradeEventData{TradeID: trade.TradeID, FundID: trade.FundID, Ticker: trade.Ticker, Status: trade.Status})
		return trade, results, nil
	}

	if err := s.writer.Commit(ctx, trade); err != nil {
		return domain.Trade{}, nil, fmt.Errorf("tradeservice: commit: %w", err)
	}
	trade.Status = domain.TradeProcessed
	s.log.Info().Int64("trade_id", trade.TradeID).Int64("fund_id", trade.FundID).Str("ticker", trade.Ticker).Msg("trade committed")
	s.bus.Emit(events.TradeEventData{TradeID: trade.TradeID, FundID: trade.FundID, Ticker: trade.Ticker, Status: trade.Status})
	return trade, results, nil
}

// Override resolves a trade's pending alerts. Every pending alert must be
// given a reason; a partial set leaves the trade in ALERT and reports
// which alert ids are still unresolved, per spec.md §8's partial-coverage
// rule.
func (s *Service) Override(ctx context.Context, tradeID int64, reasons map[int64]string) (domain.Trade, error) {
	trade, err := s.trades.Get(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("tradeservice: load trade: %w", err)
	}
	if trade == nil {
		return domain.Trade{}, domain.NewNotFoundError("trade", tradeID)
	}
	if trade.Status != domain.TradeAlert {
		return domain.Trade{}, domain.NewConflictError("trade %d is not in ALERT status", tradeID)
	}

	pending, err := s.alerts.PendingForTrade(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("tradeservice: load pending alerts: %w", err)
	}

	unlock := s.locks.Lock(trade.FundID)
	defer unlock()

	var missing []int64
	for _, a := range pending {
		if _, ok := reasons[a.AlertID]; !ok {
			missing = append(missing, a.AlertID)
		}
	}
	if len(missing) > 0 {
		return domain.Trade{}, domain.NewConflictError("alerts %v still require an override reason", missing)
	}

	for _, a := range pending {
		if err := s.alerts.Override(ctx, a.AlertID, reasons[a.AlertID]); err != nil {
			return domain.Trade{}, fmt.Errorf("tradeservice: override alert %d: %w", a.AlertID, err)
		}
		s.bus.Emit(events.AlertEventData{AlertID: a.AlertID, RuleID: a.RuleID, FundID: a.FundID, TradeID: a.TradeID})
	}

	if err := s.trades.UpdateStatus(ctx, tradeID, domain.TradeCompliance); err != nil {
		return domain.Trade{}, fmt.Errorf("tradeservice: mark compliance: %w", err)
	}
	trade.Status = domain.TradeCompliance

	if err := s.writer.Commit(ctx, *trade); err != nil {
		return domain.Trade{}, fmt.Errorf("tradeservice: commit after override: %w", err)
	}
	trade.Status = domain.TradeProcessed
	s.bus.Emit(events.TradeEventData{TradeID: trade.TradeID, FundID: trade.FundID, Ticker: trade.Ticker, Status: trade.Status})
	return *trade, nil
}

// Cancel abandons a trade in ALERT: its pending alerts are cancelled, its
// staged holdings are drained, and it moves to the terminal CANCELLED
// status without ever touching real Holdings or Fund cash.
func (s *Service) Cancel(ctx context.Context, tradeID int64) (domain.Trade, error) {
	trade, err := s.trades.Get(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("tradeservice: load trade: %w", err)
	}
	if trade == nil {
		return domain.Trade{}, domain.NewNotFoundError("trade", tradeID)
	}
	if trade.Status != domain.TradeAlert {
		return domain.Trade{}, domain.NewConflictError("trade %d is not in ALERT status", tradeID)
	}

	unlock := s.locks.Lock(trade.FundID)
	defer unlock()

	pending, err := s.alerts.PendingForTrade(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("tradeservice: load pending alerts: %w", err)
	}
	for _, a := range pending {
		if err := s.alerts.Cancel(ctx, a.AlertID); err != nil {
			return domain.Trade{}, fmt.Errorf("tradeservice: cancel alert %d: %w", a.AlertID, err)
		}
	}

	if err := s.projector.Drain(ctx, trade.FundID, tradeID); err != nil {
		return domain.Trade{}, fmt.Errorf("tradeservice: drain staging: %w", err)
	}
	if err := s.trades.UpdateStatus(ctx, tradeID, domain.TradeCancelled); err != nil {
		return domain.Trade{}, fmt.Errorf("tradeservice: mark cancelled: %w", err)
	}
	trade.Status = domain.TradeCancelled
	s.bus.Emit(events.TradeEventData{TradeID: trade.TradeID, FundID: trade.FundID, Ticker: trade.Ticker, Status: trade.Status})
	return *trade, nil
}

// RunPortfolioCompliance evaluates every portfolio-compliance rule attached
// to a fund against its current holdings (a zero-share no-op trade staged
// under trade-id 0), raising standalone alerts not tied to any trade.
func (s *Service) RunPortfolioCompliance(ctx context.Context, fundID int64) ([]ruleengine.Result, error) {
	unlock := s.locks.Lock(fundID)
	defer unlock()

	const portfolioTradeID = 0
	_, err := s.projector.Project(ctx, staging.TradeDelta{TradeID: portfolioTradeID, FundID: fundID})
	if err != nil {
		return nil, fmt.Errorf("tradeservice: project portfolio staging: %w", err)
	}
	defer s.projector.Drain(ctx, fundID, portfolioTradeID)

	rules, err := s.rules.AttachedRules(ctx, fundID, false)
	if err != nil {
		return nil, fmt.Errorf("tradeservice: load portfolio rules: %w", err)
	}

	results := make([]ruleengine.Result, 0, len(rules))
	for _, rule := range rules {
		res, err := s.engine.Evaluate(ctx, fundID, portfolioTradeID, rule)
		if err != nil {
			return nil, fmt.Errorf("tradeservice: evaluate rule %d: %w", rule.RuleID, err)
		}
		results = append(results, res)
		if res.Alerted {
			triggered, err := formatTriggered(res.TriggeringHoldings)
			if err != nil {
				return nil, fmt.Errorf("tradeservice: format portfolio alert for rule %d: %w", rule.RuleID, err)
			}
			if _, err := s.alerts.Create(ctx, domain.Alert{
				RuleID: rule.RuleID, FundID: fundID,
				CalculatedPercentage: res.CalculatedPercentage,
				HoldingsTriggered:    triggered,
			}); err != nil {
				return nil, fmt.Errorf("tradeservice: create portfolio alert for rule %d: %w", rule.RuleID, err)
			}
			s.bus.Emit(events.AlertEventData{RuleID: rule.RuleID, FundID: fundID})
		}
	}
	alertsRaised := 0
	for _, r := range results {
		if r.Alerted {
			alertsRaised++
		}
	}
	s.bus.Emit(events.PortfolioEventData{FundID: fundID, AlertsRaised: alertsRaised})
	return results, nil
}

// formatTriggered serialises the full per-holding detail (shares, price,
// market value, percentage) the rule engine computed, not just the tickers
// — GET /api/alerts/{id} returns this string verbatim, and a for-each
// result's per-holding percentage only exists on this side of the wire.
func formatTriggered(holdings []domain.TriggeringHolding) (string, error) {
	if len(holdings) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(holdings)
	if err != nil {
		return "", fmt.Errorf("tradeservice: marshal triggering holdings: %w", err)
	}
	return string(b), nil
}
