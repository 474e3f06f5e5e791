package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/domain"
)

// RuleRepository is the persistence adapter for rules and their per-fund
// attachments. Satisfies tradeservice.RuleRepository and the rule CRUD/
// validation surface exposed over HTTP.
type RuleRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRuleRepository builds a RuleRepository over db.
func NewRuleRepository(db *sql.DB, log zerolog.Logger) *RuleRepository {
	return &RuleRepository{db: db, log: log.With().Str("repo", "rule").Logger()}
}

func scanRule(scan func(dest ...any) error) (domain.Rule, error) {
	var r domain.Rule
	var alertIf sql.NullString
	var alertLevel sql.NullString
	var tradeMode, portfolioMode, active int
	if err := scan(&r.RuleID, &r.RuleName, &r.AlertMessage, &tradeMode, &portfolioMode, &r.Logic,
		&r.Denominator, &alertIf, &alertLevel, &active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return domain.Rule{}, err
	}
	r.TradeComplianceMode = tradeMode != 0
	r.PortfolioComplianceMode = portfolioMode != 0
	r.Active = active != 0
	if alertIf.Valid {
		v := domain.AlertIf(alertIf.String)
		r.AlertIf = &v
	}
	if alertLevel.Valid {
		d, err := parseDecimal(alertLevel.String)
		if err != nil {
			return domain.Rule{}, err
		}
		r.AlertLevel = &d
	}
	return r, nil
}

const ruleColumns = `rule_id, rule_name, alert_message, trade_compliance_mode, portfolio_compliance_mode,
	logic, denominator, alert_if, alert_level, active, created_at, updated_at`

// Get returns a rule by id, or nil if not found.
func (r *RuleRepository) Get(ctx context.Context, ruleID int64) (*domain.Rule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE rule_id = ?`, ruleID)
	rule, err := scanRule(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repositories: get rule %d: %w", ruleID, err)
	}
	return &rule, nil
}

// List returns every rule.
func (r *RuleRepository) List(ctx context.Context) ([]domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY rule_id`)
	if err != nil {
		return nil, fmt.Errorf("repositories: list rules: %w", err)
	}
	defer rows.Close()

	var out []domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("repositories: scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// NameExists satisfies ruleengine.NameExistsFunc.
func (r *RuleRepository) NameExists(ctx context.Context, name string, excludeRuleID int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules WHERE rule_name = ? AND rule_id != ?`, name, excludeRuleID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("repositories: rule name exists %q: %w", name, err)
	}
	return count > 0, nil
}

// Create inserts a new rule.
func (r *RuleRepository) Create(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	var alertIf sql.NullString
	if rule.AlertIf != nil {
		alertIf = sql.NullString{String: string(*rule.AlertIf), Valid: true}
	}
	var alertLevel sql.NullString
	if rule.AlertLevel != nil {
		alertLevel = sql.NullString{String: rule.AlertLevel.String(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO rules
		(rule_name, alert_message, trade_compliance_mode, portfolio_compliance_mode, logic, denominator, alert_if, alert_level, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.RuleName, rule.AlertMessage, boolToInt(rule.TradeComplianceMode), boolToInt(rule.PortfolioComplianceMode),
		rule.Logic, rule.Denominator, alertIf, alertLevel, boolToInt(rule.Active))
	if err != nil {
		return domain.Rule{}, fmt.Errorf("repositories: create rule %s: %w", rule.RuleName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Rule{}, fmt.Errorf("repositories: rule id: %w", err)
	}
	rule.RuleID = id
	r.log.Info().Int64("rule_id", id).Str("rule_name", rule.RuleName).Msg("rule created")
	return rule, nil
}

// Update overwrites a rule's mutable fields in place. RuleID and
// CreatedAt are not touched.
func (r *RuleRepository) Update(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	var alertIf sql.NullString
	if rule.AlertIf != nil {
		alertIf = sql.NullString{String: string(*rule.AlertIf), Valid: true}
	}
	var alertLevel sql.NullString
	if rule.AlertLevel != nil {
		alertLevel = sql.NullString{String: rule.AlertLevel.String(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `UPDATE rules SET
			rule_name = ?, alert_message = ?, trade_compliance_mode = ?, portfolio_compliance_mode = ?,
			logic = ?, denominator = ?, alert_if = ?, alert_level = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE rule_id = ?`,
		rule.RuleName, rule.AlertMessage, boolToInt(rule.TradeComplianceMode), boolToInt(rule.PortfolioComplianceMode),
		rule.Logic, rule.Denominator, alertIf, alertLevel, boolToInt(rule.Active), rule.RuleID)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("repositories: update rule %d: %w", rule.RuleID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Rule{}, fmt.Errorf("repositories: update rule %d rows affected: %w", rule.RuleID, err)
	}
	if affected == 0 {
		return domain.Rule{}, domain.NewNotFoundError("rule", rule.RuleID)
	}
	r.log.Info().Int64("rule_id", rule.RuleID).Msg("rule updated")
	return rule, nil
}

// Delete removes a rule outright, along with its fund attachments. Alerts
// already raised under the rule keep their rule_id for audit history.
func (r *RuleRepository) Delete(ctx context.Context, ruleID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rules_attachments WHERE rule_id = ?`, ruleID); err != nil {
		return fmt.Errorf("repositories: delete rule %d attachments: %w", ruleID, err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE rule_id = ?`, ruleID)
	if err != nil {
		return fmt.Errorf("repositories: delete rule %d: %w", ruleID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repositories: delete rule %d rows affected: %w", ruleID, err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("rule", ruleID)
	}
	r.log.Info().Int64("rule_id", ruleID).Msg("rule deleted")
	return nil
}

// Attach links a rule to a fund (active by default). Attaching a rule that
// is already actively attached to the fund is a conflict; re-attaching a
// detached pair reactivates its existing row.
func (r *RuleRepository) Attach(ctx context.Context, ruleID, fundID int64) (domain.RuleAttachment, error) {
	var active bool
	err := r.db.QueryRowContext(ctx, `SELECT active FROM rules_attachments WHERE rule_id = ? AND fund_id = ?`,
		ruleID, fundID).Scan(&active)
	if err == nil && active {
		return domain.RuleAttachment{}, domain.NewConflictError("rule %d already attached to fund %d", ruleID, fundID)
	}
	if err != nil && err != sql.ErrNoRows {
		return domain.RuleAttachment{}, fmt.Errorf("repositories: attach rule %d to fund %d: %w", ruleID, fundID, err)
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO rules_attachments (rule_id, fund_id, active) VALUES (?, ?, 1)
		ON CONFLICT(rule_id, fund_id) DO UPDATE SET active = 1, updated_at = CURRENT_TIMESTAMP`, ruleID, fundID)
	if err != nil {
		return domain.RuleAttachment{}, fmt.Errorf("repositories: attach rule %d to fund %d: %w", ruleID, fundID, err)
	}
	id, _ := res.LastInsertId()
	return domain.RuleAttachment{AttachmentID: id, RuleID: ruleID, FundID: fundID, Active: true}, nil
}

// Detach marks a rule attachment inactive (soft delete — attachment history
// is preserved for audit purposes).
func (r *RuleRepository) Detach(ctx context.Context, ruleID, fundID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rules_attachments SET active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE rule_id = ? AND fund_id = ?`, ruleID, fundID)
	if err != nil {
		return fmt.Errorf("repositories: detach rule %d from fund %d: %w", ruleID, fundID, err)
	}
	return nil
}

// AttachedRules returns the active rules attached to a fund, ordered by
// attachment id ascending, filtered to the requested compliance mode.
// Satisfies tradeservice.RuleRepository.
func (r *RuleRepository) AttachedRules(ctx context.Context, fundID int64, tradeCompliance bool) ([]domain.Rule, error) {
	modeColumn := "trade_compliance_mode"
	if !tradeCompliance {
		modeColumn = "portfolio_compliance_mode"
	}
	query := fmt.Sprintf(`SELECT %s FROM rules r
		JOIN rules_attachments a ON a.rule_id = r.rule_id
		WHERE a.fund_id = ? AND a.active = 1 AND r.active = 1 AND r.%s = 1
		ORDER BY a.attachment_id ASC`, prefixed(ruleColumns, "r"), modeColumn)

	rows, err := r.db.QueryContext(ctx, query, fundID)
	if err != nil {
		return nil, fmt.Errorf("repositories: attached rules fund %d: %w", fundID, err)
	}
	defer rows.Close()

	var out []domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("repositories: scan attached rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// prefixed qualifies each comma-separated column name in cols with table,
// avoiding ambiguity when the query joins rules with rules_attachments
// (both carry created_at/updated_at/active columns).
func prefixed(cols, table string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = table + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
