// Package alertregistry stores alerts and exposes query/override/cancel
// operations, enforcing that a trade cannot settle until every alert it
// produced is either overridden (with a reason) or the trade is cancelled.
//
// Grounded in the Python alert.py model and trade_compliance.py's
// override_trade_alerts/cancel_trade_alerts.
package alertregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/fundops/compliance-engine/internal/domain"
)

// Repository is the persistence boundary for alerts.
type Repository interface {
	Create(ctx context.Context, alert domain.Alert) (domain.Alert, error)
	Get(ctx context.Context, alertID int64) (*domain.Alert, error)
	SetStatus(ctx context.Context, alertID int64, status domain.AlertStatus, overrideReason *string) error
	ListByFilter(ctx context.Context, f Filter) ([]domain.Alert, error)
	PendingForTrade(ctx context.Context, tradeID int64) ([]domain.Alert, error)
}

// Filter selects alerts by fund, rule, trade, status and/or a date window.
type Filter struct {
	FundID  *int64
	RuleID  *int64
	TradeID *int64
	Status  *domain.AlertStatus
	From    *time.Time
	To      *time.Time
}

// Registry is the Alert Registry component.
type Registry struct {
	repo Repository
}

// New builds a Registry over the given repository.
func New(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// Create persists a new pending alert.
func (r *Registry) Create(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	alert.Status = domain.AlertPending
	return r.repo.Create(ctx, alert)
}

// Get returns a single alert by id, or a NotFoundError.
func (r *Registry) Get(ctx context.Context, alertID int64) (domain.Alert, error) {
	a, err := r.repo.Get(ctx, alertID)
	if err != nil {
		return domain.Alert{}, err
	}
	if a == nil {
		return domain.Alert{}, domain.NewNotFoundError("alert", alertID)
	}
	return *a, nil
}

// List returns alerts matching the filter.
func (r *Registry) List(ctx context.Context, f Filter) ([]domain.Alert, error) {
	return r.repo.ListByFilter(ctx, f)
}

// PendingForTrade returns the still-pending alerts for a trade.
func (r *Registry) PendingForTrade(ctx context.Context, tradeID int64) ([]domain.Alert, error) {
	return r.repo.PendingForTrade(ctx, tradeID)
}

// Override records a reason and moves a pending alert to overridden. An
// alert that is already overridden or cancelled is reported as a conflict,
// so the first reason is preserved.
func (r *Registry) Override(ctx context.Context, alertID int64, reason string) error {
	if reason == "" {
		return domain.NewValidationError("override reason must not be empty")
	}
	a, err := r.Get(ctx, alertID)
	if err != nil {
		return err
	}
	if a.IsOverridden() {
		return domain.NewConflictError("alert %d already overridden", alertID)
	}
	if a.IsCancelled() {
		return domain.NewConflictError("alert %d already cancelled", alertID)
	}
	return r.repo.SetStatus(ctx, alertID, domain.AlertOverridden, &reason)
}

// Cancel moves a pending alert to cancelled. Idempotent: cancelling an
// already-cancelled alert is a no-op success.
func (r *Registry) Cancel(ctx context.Context, alertID int64) error {
	a, err := r.Get(ctx, alertID)
	if err != nil {
		return err
	}
	if a.IsCancelled() {
		return nil
	}
	if a.IsOverridden() {
		return domain.NewConflictError("alert %d already overridden, cannot cancel", alertID)
	}
	return r.repo.SetStatus(ctx, alertID, domain.AlertCancelled, nil)
}

// Summary is the set of summary counters spec.md §4.7 requires, plus a
// rolling 24h count. Mean/stddev of calculated percentages is computed by
// the caller (internal/server) using gonum/stat over the list this package
// hands back, keeping this package free of a numerics dependency.
type Summary struct {
	Pending      int
	Overridden   int
	Cancelled    int
	Last24Hours  int
	Percentages  []float64
}

// Summarize aggregates the counters for a fund (or all funds if fundID is
// nil).
func (r *Registry) Summarize(ctx context.Context, fundID *int64) (Summary, error) {
	all, err := r.repo.ListByFilter(ctx, Filter{FundID: fundID})
	if err != nil {
		return Summary{}, fmt.Errorf("alertregistry: summarize: %w", err)
	}
	var s Summary
	cutoff := domain.Now().Add(-24 * time.Hour)
	for _, a := range all {
		switch a.Status {
		case domain.AlertPending:
			s.Pending++
		case domain.AlertOverridden:
			s.Overridden++
		case domain.AlertCancelled:
			s.Cancelled++
		}
		if a.CreatedAt.After(cutoff) {
			s.Last24Hours++
			if a.CalculatedPercentage != nil {
				f, _ := a.CalculatedPercentage.Float64()
				s.Percentages = append(s.Percentages, f)
			}
		}
	}
	return s, nil
}
