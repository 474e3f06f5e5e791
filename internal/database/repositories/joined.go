package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/domain"
)

// RuleEngineRepository joins staged holdings with securities and issuers
// and attaches the latest known price — the read model the Rule Engine
// and Rule Predicate Evaluator run over. Satisfies ruleengine.Repository.
type RuleEngineRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRuleEngineRepository builds a RuleEngineRepository over db.
func NewRuleEngineRepository(db *sql.DB, log zerolog.Logger) *RuleEngineRepository {
	return &RuleEngineRepository{db: db, log: log.With().Str("repo", "ruleengine").Logger()}
}

// JoinedStagedRows returns every staged holding of a (fund, trade) scope
// joined with its security and issuer attributes, plus the latest price if
// one exists.
func (r *RuleEngineRepository) JoinedStagedRows(ctx context.Context, fundID, tradeID int64) ([]domain.JoinedHoldingRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			hs.ticker, hs.shares, hs.fund_id,
			s.ticker, s.name, s.type, s.shares_outstanding,
			i.name, i.gics_sector, i.gics_industry_grp, i.gics_industry, i.gics_sub_industry,
			i.country_domicile, i.country_incorporation, i.country_domicile_code, i.country_incorporation_code,
			p.price
		FROM holdings_staging hs
		JOIN securities s ON s.ticker = hs.ticker
		JOIN issuers i ON i.issr_id = s.issr_id
		LEFT JOIN (
			SELECT ticker, price FROM securities_price sp1
			WHERE price_date = (SELECT MAX(price_date) FROM securities_price sp2 WHERE sp2.ticker = sp1.ticker)
		) p ON p.ticker = s.ticker
		WHERE hs.fund_id = ? AND hs.trade_id = ?`, fundID, tradeID)
	if err != nil {
		return nil, fmt.Errorf("repositories: joined staged rows fund %d trade %d: %w", fundID, tradeID, err)
	}
	defer rows.Close()

	var out []domain.JoinedHoldingRow
	for rows.Next() {
		var row domain.JoinedHoldingRow
		var sharesOutstanding sql.NullInt64
		var price sql.NullString
		if err := rows.Scan(
			&row.HoldingsTicker, &row.HoldingsShares, &row.HoldingsFundID,
			&row.SecuritiesTicker, &row.SecuritiesName, &row.SecuritiesType, &sharesOutstanding,
			&row.IssuersName, &row.IssuersGICSSector, &row.IssuersGICSIndustryGrp, &row.IssuersGICSIndustry, &row.IssuersGICSSubIndustry,
			&row.IssuersCountryDomicile, &row.IssuersCountryIncorporation, &row.IssuersCountryDomicileCode, &row.IssuersCountryIncorpCode,
			&price,
		); err != nil {
			return nil, fmt.Errorf("repositories: scan joined staged row: %w", err)
		}
		row.SecuritiesSharesOutstanding = scanNullInt64(sharesOutstanding)
		if price.Valid {
			p, err := parseDecimal(price.String)
			if err != nil {
				return nil, err
			}
			row.Price = p
			row.MarketValue = decimal.NewFromInt(row.HoldingsShares).Mul(p)
			row.HasPrice = true
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FundCash returns the fund's cash, net of a pending trade's own value when
// tradeID is non-zero. The trade hasn't committed yet at rule-evaluation
// time — its shares already show up in holdings_staging, but its cash
// effect hasn't reached the funds row — so without this adjustment a
// total-assets-style denominator would double-count the trade (staged
// post-trade holdings summed against pre-trade cash). Portfolio-compliance
// runs (tradeID == 0) have no pending trade, so cash passes through as-is.
func (r *RuleEngineRepository) FundCash(ctx context.Context, fundID, tradeID int64) (decimal.Decimal, error) {
	var cash string
	if err := r.db.QueryRowContext(ctx, `SELECT cash FROM funds WHERE fund_id = ?`, fundID).Scan(&cash); err != nil {
		return decimal.Zero, fmt.Errorf("repositories: fund cash %d: %w", fundID, err)
	}
	balance, err := parseDecimal(cash)
	if err != nil {
		return decimal.Zero, err
	}
	if tradeID == 0 {
		return balance, nil
	}

	var direction string
	var totalValue sql.NullString
	err = r.db.QueryRowContext(ctx, `SELECT direction, total_value FROM trades WHERE trade_id = ?`, tradeID).
		Scan(&direction, &totalValue)
	if err == sql.ErrNoRows || !totalValue.Valid {
		return balance, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("repositories: fund cash trade %d: %w", tradeID, err)
	}
	value, err := parseDecimal(totalValue.String)
	if err != nil {
		return decimal.Zero, err
	}
	if direction == string(domain.DirectionBuy) {
		return balance.Sub(value), nil
	}
	return balance.Add(value), nil
}
