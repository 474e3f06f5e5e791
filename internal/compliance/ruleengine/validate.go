package ruleengine

import (
	"context"
	"fmt"

	"github.com/fundops/compliance-engine/internal/compliance/ruleexpr"
	"github.com/fundops/compliance-engine/internal/domain"
)

// NameExistsFunc reports whether a rule with this name already exists,
// excluding excludeRuleID (used when updating an existing rule). Supplied
// by the caller so this package stays free of a direct database dependency.
type NameExistsFunc func(ctx context.Context, name string, excludeRuleID int64) (bool, error)

// ValidateRule replicates the Python RuleValidator.validate_rule_data cross
// -field checks (required fields, name uniqueness, denominator/alert_if/
// alert_level consistency) plus rule-logic compilation.
func ValidateRule(ctx context.Context, rule domain.Rule, nameExists NameExistsFunc) error {
	var fields []domain.FieldError

	if rule.RuleName == "" {
		fields = append(fields, domain.FieldError{Field: "rule_name", Reason: "is required"})
	}
	if rule.AlertMessage == "" {
		fields = append(fields, domain.FieldError{Field: "alert_message", Reason: "is required"})
	}
	if rule.Denominator == "" {
		fields = append(fields, domain.FieldError{Field: "denominator", Reason: "is required"})
	} else if !validDenominator(rule.Denominator) {
		fields = append(fields, domain.FieldError{Field: "denominator", Reason: fmt.Sprintf("invalid denominator %q", rule.Denominator)})
	}

	if rule.RuleName != "" && nameExists != nil {
		exists, err := nameExists(ctx, rule.RuleName, rule.RuleID)
		if err != nil {
			return fmt.Errorf("ruleengine: name uniqueness check: %w", err)
		}
		if exists {
			fields = append(fields, domain.FieldError{Field: "rule_name", Reason: fmt.Sprintf("rule name %q already exists", rule.RuleName)})
		}
	}

	if rule.Denominator != domain.DenominatorProhibit {
		if rule.AlertIf != nil && *rule.AlertIf != domain.AlertIfAbove && *rule.AlertIf != domain.AlertIfBelow {
			fields = append(fields, domain.FieldError{Field: "alert_if", Reason: fmt.Sprintf("invalid alert_if %q", *rule.AlertIf)})
		}
		if rule.AlertLevel != nil && rule.AlertLevel.IsNegative() {
			fields = append(fields, domain.FieldError{Field: "alert_level", Reason: "alert level must be non-negative"})
		}
	}

	if _, err := ruleexpr.Compile(rule.Logic); err != nil {
		fields = append(fields, domain.FieldError{Field: "logic", Reason: err.Error()})
	}

	if len(fields) > 0 {
		return domain.NewFieldValidationError("rule validation failed", fields...)
	}
	return nil
}

func validDenominator(d domain.DenominatorType) bool {
	switch d {
	case domain.DenominatorTotalAssets, domain.DenominatorNetAssets, domain.DenominatorTotalAssetsExCash,
		domain.DenominatorProhibit, domain.DenominatorSharesOutstandingFE:
		return true
	default:
		return false
	}
}
