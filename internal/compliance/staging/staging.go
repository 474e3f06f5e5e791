// Package staging implements the Staging Projector: it produces the
// in-memory (and durably persisted) post-trade holdings set for a trade,
// starting from current holdings and applying the trade delta. Used by
// both trade-compliance and portfolio-compliance (the latter with a
// zero-shares no-op trade).
//
// Grounded in the Python holdings_service.py
// (copy_holdings_to_staging/apply_trade_to_staging/apply_staging_to_holdings).
package staging

import (
	"context"
	"fmt"

	"github.com/fundops/compliance-engine/internal/domain"
)

// Repository is the persistence boundary for staged holdings and real
// holdings, kept separate from the compliance package itself so the
// Projector has no direct database dependency.
type Repository interface {
	HoldingsForFund(ctx context.Context, fundID int64) ([]domain.Holding, error)
	ClearStaging(ctx context.Context, fundID, tradeID int64) error
	InsertStaged(ctx context.Context, row domain.StagedHolding) error
	StagedForTrade(ctx context.Context, fundID, tradeID int64) ([]domain.StagedHolding, error)
	DeleteStagedRow(ctx context.Context, fundID, tradeID int64, ticker string) error
	UpsertStagedShares(ctx context.Context, fundID, tradeID int64, ticker string, shares int64) error
}

// Projector is the Staging Projector component.
type Projector struct {
	repo Repository
}

// New builds a Projector over the given repository.
func New(repo Repository) *Projector {
	return &Projector{repo: repo}
}

// TradeDelta is the minimal shape the projector needs from a Trade: for
// portfolio compliance, callers pass Shares=0 (a pure copy, trade-id 0).
type TradeDelta struct {
	TradeID   int64
	FundID    int64
	Ticker    string
	Direction domain.TradeDirection
	Shares    int64
}

// Project copies current Holdings of the fund into the staging scope keyed
// by (fund, trade-id), then applies the trade delta. Returns the resulting
// staged rows.
func (p *Projector) Project(ctx context.Context, delta TradeDelta) ([]domain.StagedHolding, error) {
	if err := p.repo.ClearStaging(ctx, delta.FundID, delta.TradeID); err != nil {
		return nil, fmt.Errorf("staging: clear before copy: %w", err)
	}

	current, err := p.repo.HoldingsForFund(ctx, delta.FundID)
	if err != nil {
		return nil, fmt.Errorf("staging: load current holdings: %w", err)
	}
	for _, h := range current {
		row := domain.StagedHolding{
			FundID:  delta.FundID,
			Ticker:  h.Ticker,
			TradeID: delta.TradeID,
			Shares:  h.Shares,
		}
		if err := p.repo.InsertStaged(ctx, row); err != nil {
			return nil, fmt.Errorf("staging: copy holding %s: %w", h.Ticker, err)
		}
	}

	if delta.Shares != 0 {
		if err := p.applyDelta(ctx, delta); err != nil {
			return nil, err
		}
	}

	return p.repo.StagedForTrade(ctx, delta.FundID, delta.TradeID)
}

// applyDelta applies one trade's effect onto the just-copied staging scope.
func (p *Projector) applyDelta(ctx context.Context, delta TradeDelta) error {
	staged, err := p.repo.StagedForTrade(ctx, delta.FundID, delta.TradeID)
	if err != nil {
		return fmt.Errorf("staging: reload for delta: %w", err)
	}
	var existing *domain.StagedHolding
	for i := range staged {
		if staged[i].Ticker == delta.Ticker {
			existing = &staged[i]
			break
		}
	}

	switch delta.Direction {
	case domain.DirectionBuy:
		if existing != nil {
			return p.repo.UpsertStagedShares(ctx, delta.FundID, delta.TradeID, delta.Ticker, existing.Shares+delta.Shares)
		}
		return p.repo.InsertStaged(ctx, domain.StagedHolding{
			FundID:  delta.FundID,
			Ticker:  delta.Ticker,
			TradeID: delta.TradeID,
			Shares:  delta.Shares,
		})
	case domain.DirectionSell:
		if existing == nil {
			// Re-checked after pre-trade share-availability; in practice
			// this branch is defensive, matching spec.md §4.4.
			return fmt.Errorf("staging: sell of %s with no staged holding for fund %d", delta.Ticker, delta.FundID)
		}
		newShares := existing.Shares - delta.Shares
		if newShares <= 0 {
			return p.repo.DeleteStagedRow(ctx, delta.FundID, delta.TradeID, delta.Ticker)
		}
		return p.repo.UpsertStagedShares(ctx, delta.FundID, delta.TradeID, delta.Ticker, newShares)
	default:
		return fmt.Errorf("staging: unknown trade direction %q", delta.Direction)
	}
}

// Drain removes all staged rows for a (fund, trade-id) scope. Called on
// commit and on cancel, per spec.md §4.4/§8.
func (p *Projector) Drain(ctx context.Context, fundID, tradeID int64) error {
	return p.repo.ClearStaging(ctx, fundID, tradeID)
}
