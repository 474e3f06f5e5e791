// Package priceoracle returns the most recent price for a ticker as of a
// given logical time. Pure read, no interpolation.
package priceoracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/domain"
)

// Repository is the read model the oracle is layered over. Grounded in the
// teacher's internal/clients/* interface+struct client pattern: a thin
// interface lets the in-process evaluator and the HTTP layer share one read
// path without depending on a concrete database package.
type Repository interface {
	LatestPrice(ctx context.Context, ticker string) (*domain.PricePoint, error)
	PriceOn(ctx context.Context, ticker string, date time.Time) (*domain.PricePoint, error)
}

// Oracle is the Price Oracle component.
type Oracle struct {
	repo Repository
}

// New builds an Oracle over the given repository.
func New(repo Repository) *Oracle {
	return &Oracle{repo: repo}
}

// LatestPrice returns the price on the highest price_date on record for the
// ticker. Returns (nil, nil) if no row exists — callers must treat this as
// "unknown value", not zero.
func (o *Oracle) LatestPrice(ctx context.Context, ticker string) (*decimal.Decimal, error) {
	pp, err := o.repo.LatestPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if pp == nil {
		return nil, nil
	}
	price := pp.Price
	return &price, nil
}

// PriceOn returns the price for an exact price_date match; no
// nearest-neighbour fallback.
func (o *Oracle) PriceOn(ctx context.Context, ticker string, date time.Time) (*decimal.Decimal, error) {
	pp, err := o.repo.PriceOn(ctx, ticker, date)
	if err != nil {
		return nil, err
	}
	if pp == nil {
		return nil, nil
	}
	price := pp.Price
	return &price, nil
}
