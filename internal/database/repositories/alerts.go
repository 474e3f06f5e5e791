package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/compliance/alertregistry"
	"github.com/fundops/compliance-engine/internal/domain"
)

// AlertRepository is the persistence adapter for alerts, satisfying
// alertregistry.Repository.
type AlertRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAlertRepository builds an AlertRepository over db.
func NewAlertRepository(db *sql.DB, log zerolog.Logger) *AlertRepository {
	return &AlertRepository{db: db, log: log.With().Str("repo", "alert").Logger()}
}

const alertColumns = `alert_id, rule_id, fund_id, trade_id, calculated_percentage, holdings_triggered, status, override_reason, created_at, updated_at`

func scanAlert(scan func(dest ...any) error) (domain.Alert, error) {
	var a domain.Alert
	var tradeID sql.NullInt64
	var pct, reason sql.NullString
	if err := scan(&a.AlertID, &a.RuleID, &a.FundID, &tradeID, &pct, &a.HoldingsTriggered, &a.Status, &reason, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Alert{}, err
	}
	a.TradeID = scanNullInt64(tradeID)
	p, err := scanNullDecimal(pct)
	if err != nil {
		return domain.Alert{}, err
	}
	a.CalculatedPercentage = p
	a.OverrideReason = scanNullString(reason)
	return a, nil
}

// Create inserts a new pending alert.
func (r *AlertRepository) Create(ctx context.Context, a domain.Alert) (domain.Alert, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO alerts (rule_id, fund_id, trade_id, calculated_percentage, holdings_triggered, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.RuleID, a.FundID, nullInt64(a.TradeID), nullDecimalText(a.CalculatedPercentage), a.HoldingsTriggered, domain.AlertPending)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("repositories: create alert rule %d: %w", a.RuleID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Alert{}, fmt.Errorf("repositories: alert id: %w", err)
	}
	a.AlertID = id
	a.Status = domain.AlertPending
	r.log.Warn().Int64("alert_id", id).Int64("rule_id", a.RuleID).Int64("fund_id", a.FundID).Msg("alert raised")
	return a, nil
}

// Get returns an alert by id, or nil if not found.
func (r *AlertRepository) Get(ctx context.Context, alertID int64) (*domain.Alert, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE alert_id = ?`, alertID)
	a, err := scanAlert(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repositories: get alert %d: %w", alertID, err)
	}
	return &a, nil
}

// SetStatus transitions an alert's status, recording the override reason
// when present.
func (r *AlertRepository) SetStatus(ctx context.Context, alertID int64, status domain.AlertStatus, overrideReason *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE alerts SET status = ?, override_reason = ?, updated_at = CURRENT_TIMESTAMP WHERE alert_id = ?`,
		status, nullString(overrideReason), alertID)
	if err != nil {
		return fmt.Errorf("repositories: set alert %d status: %w", alertID, err)
	}
	return nil
}

// ListByFilter returns alerts matching the given filter.
func (r *AlertRepository) ListByFilter(ctx context.Context, f alertregistry.Filter) ([]domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	var args []any

	if f.FundID != nil {
		query += ` AND fund_id = ?`
		args = append(args, *f.FundID)
	}
	if f.RuleID != nil {
		query += ` AND rule_id = ?`
		args = append(args, *f.RuleID)
	}
	if f.TradeID != nil {
		query += ` AND trade_id = ?`
		args = append(args, *f.TradeID)
	}
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, *f.Status)
	}
	if f.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, *f.From)
	}
	if f.To != nil {
		query += ` AND created_at <= ?`
		args = append(args, *f.To)
	}
	query += ` ORDER BY alert_id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repositories: list alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("repositories: scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PendingForTrade returns the still-pending alerts raised by a trade.
func (r *AlertRepository) PendingForTrade(ctx context.Context, tradeID int64) ([]domain.Alert, error) {
	status := domain.AlertPending
	tid := tradeID
	return r.ListByFilter(ctx, alertregistry.Filter{TradeID: &tid, Status: &status})
}
