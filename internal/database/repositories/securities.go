package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/domain"
)

// SecurityRepository is the persistence adapter for securities, issuers,
// and price points — satisfying tradeservice.SecurityRepository and
// priceoracle.Repository.
type SecurityRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSecurityRepository builds a SecurityRepository over db.
func NewSecurityRepository(db *sql.DB, log zerolog.Logger) *SecurityRepository {
	return &SecurityRepository{db: db, log: log.With().Str("repo", "security").Logger()}
}

// Get returns a security by ticker, or nil if unknown.
func (r *SecurityRepository) Get(ctx context.Context, ticker string) (*domain.Security, error) {
	row := r.db.QueryRowContext(ctx, `SELECT ticker, name, type, shares_outstanding, market_cap, issr_id, created_at, updated_at
		FROM securities WHERE ticker = ?`, ticker)
	var s domain.Security
	var sharesOutstanding, marketCap sql.NullInt64
	if err := row.Scan(&s.Ticker, &s.Name, &s.Type, &sharesOutstanding, &marketCap, &s.IssuerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repositories: get security %s: %w", ticker, err)
	}
	s.SharesOutstanding = scanNullInt64(sharesOutstanding)
	s.MarketCap = scanNullInt64(marketCap)
	return &s, nil
}

// Search returns securities whose ticker or name matches the query
// (case-insensitive substring), ordered by ticker; an empty query returns
// every security.
func (r *SecurityRepository) Search(ctx context.Context, query string) ([]domain.Security, error) {
	like := "%" + strings.ToLower(query) + "%"
	rows, err := r.db.QueryContext(ctx, `SELECT ticker, name, type, shares_outstanding, market_cap, issr_id, created_at, updated_at
		FROM securities
		WHERE LOWER(ticker) LIKE ? OR LOWER(name) LIKE ?
		ORDER BY ticker`, like, like)
	if err != nil {
		return nil, fmt.Errorf("repositories: search securities %q: %w", query, err)
	}
	defer rows.Close()

	var out []domain.Security
	for rows.Next() {
		var s domain.Security
		var sharesOutstanding, marketCap sql.NullInt64
		if err := rows.Scan(&s.Ticker, &s.Name, &s.Type, &sharesOutstanding, &marketCap, &s.IssuerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repositories: scan security: %w", err)
		}
		s.SharesOutstanding = scanNullInt64(sharesOutstanding)
		s.MarketCap = scanNullInt64(marketCap)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetIssuer returns an issuer by id.
func (r *SecurityRepository) GetIssuer(ctx context.Context, issuerID int64) (*domain.Issuer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT issr_id, name, gics_sector, gics_industry_grp, gics_industry, gics_sub_industry,
		country_domicile, country_incorporation, country_domicile_code, country_incorporation_code, created_at, updated_at
		FROM issuers WHERE issr_id = ?`, issuerID)
	var i domain.Issuer
	if err := row.Scan(&i.IssuerID, &i.Name, &i.GICSSector, &i.GICSIndustryGroup, &i.GICSIndustry, &i.GICSSubIndustry,
		&i.CountryDomicile, &i.CountryIncorporation, &i.CountryDomicileCode, &i.CountryIncorporationCode, &i.CreatedAt, &i.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repositories: get issuer %d: %w", issuerID, err)
	}
	return &i, nil
}

// LatestPrice returns the most recent price point for a ticker; satisfies
// priceoracle.Repository.
func (r *SecurityRepository) LatestPrice(ctx context.Context, ticker string) (*domain.PricePoint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT ticker, price_date, price, created_at, updated_at
		FROM securities_price WHERE ticker = ? ORDER BY price_date DESC LIMIT 1`, ticker)
	return scanPricePoint(row)
}

// PriceOn returns the exact-date price point for a ticker, with no
// nearest-neighbour fallback.
func (r *SecurityRepository) PriceOn(ctx context.Context, ticker string, date time.Time) (*domain.PricePoint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT ticker, price_date, price, created_at, updated_at
		FROM securities_price WHERE ticker = ? AND price_date = ?`, ticker, date.Format("2006-01-02"))
	return scanPricePoint(row)
}

func scanPricePoint(row *sql.Row) (*domain.PricePoint, error) {
	var pp domain.PricePoint
	var price string
	if err := row.Scan(&pp.Ticker, &pp.PriceDate, &price, &pp.CreatedAt, &pp.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repositories: scan price point: %w", err)
	}
	parsed, err := parseDecimal(price)
	if err != nil {
		return nil, err
	}
	pp.Price = parsed
	return &pp, nil
}

// RecordPrice upserts today's (or a historical) price for a ticker.
func (r *SecurityRepository) RecordPrice(ctx context.Context, ticker string, date time.Time, price decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO securities_price (ticker, price_date, price)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker, price_date) DO UPDATE SET price = excluded.price, updated_at = CURRENT_TIMESTAMP`,
		ticker, date.Format("2006-01-02"), decimalToText(price))
	if err != nil {
		return fmt.Errorf("repositories: record price for %s: %w", ticker, err)
	}
	return nil
}

// StaleTickers returns tickers whose latest price is older than cutoff —
// backs the scheduled stale-price detector.
func (r *SecurityRepository) StaleTickers(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT s.ticker FROM securities s
		LEFT JOIN (SELECT ticker, MAX(price_date) AS latest FROM securities_price GROUP BY ticker) p ON p.ticker = s.ticker
		WHERE p.latest IS NULL OR p.latest < ?`, cutoff.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("repositories: stale tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("repositories: scan stale ticker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
