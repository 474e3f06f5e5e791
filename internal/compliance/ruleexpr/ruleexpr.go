package ruleexpr

import (
	"fmt"
	"strings"
)

// DefaultLogic is substituted for an empty or all-whitespace rule filter,
// matching the Python DEFAULT_RULE_LOGIC constant.
const DefaultLogic = "1=1"

// blockedKeywords are rejected as a bare token in rule logic before
// parsing, per the Python RuleValidator.validate_rule_logic. This is a
// user-error check, not the safety boundary: the parser's grammar has no
// production that could execute any of these even if the check were
// skipped, since there is no dispatch to a live SQL engine.
var blockedKeywords = []string{"DROP", "INSERT", "ALTER", "UPDATE", "DELETE", "SELECT"}

// Compiled is a parsed, validated filter expression ready for repeated
// evaluation against rows.
type Compiled struct {
	source string
	expr   Expr
}

// Source returns the processed logic string this expression was compiled
// from (WHERE-prefix stripped, defaulted if empty).
func (c *Compiled) Source() string { return c.source }

// Eval evaluates the compiled expression against one joined holding row. An
// empty/default expression is the constant true.
func (c *Compiled) Eval(row Row) (bool, error) {
	if c.expr == nil {
		return true, nil
	}
	return c.expr.eval(row)
}

// Compile validates and parses a rule's filter expression. An optional
// leading "WHERE " is stripped; empty is treated as the constant true.
// Returns a structured error (never panics) on any rejection.
func Compile(logic string) (*Compiled, error) {
	processed := strings.TrimSpace(logic)
	if processed == "" {
		return &Compiled{source: DefaultLogic}, nil
	}

	if strings.HasPrefix(strings.ToUpper(processed), "WHERE") {
		processed = strings.TrimSpace(processed[len("WHERE"):])
	}

	if strings.Contains(processed, ";") {
		return nil, fmt.Errorf("semicolons are not allowed in rule logic")
	}

	upper := strings.ToUpper(processed)
	for _, kw := range blockedKeywords {
		if strings.HasPrefix(upper, kw+" ") || strings.HasSuffix(upper, " "+kw) || strings.Contains(upper, " "+kw+" ") {
			return nil, fmt.Errorf("SQL keyword %q is not allowed in rule logic", kw)
		}
	}

	if processed == DefaultLogic {
		return &Compiled{source: processed}, nil
	}

	expr, err := parseExpr(processed)
	if err != nil {
		return nil, fmt.Errorf("invalid rule logic: %w", err)
	}

	c := &Compiled{source: processed, expr: expr}
	if err := c.probe(); err != nil {
		return nil, err
	}
	return c, nil
}

// probe exercises the compiled expression against a canned single-row
// relation, mirroring the Python RuleValidator._test_sql_execution probe
// but evaluated in-process instead of against a live database.
func (c *Compiled) probe() error {
	probeRow := Row{
		HoldingsTicker:              "TEST",
		HoldingsShares:              100,
		HoldingsFundID:              1,
		SecuritiesTicker:            "TEST",
		SecuritiesName:              "Test Security",
		SecuritiesType:              "Equity Stock",
		SecuritiesSharesOutstanding: nil,
		IssuersName:                 "Test Issuer",
		IssuersGICSSector:           "Technology",
	}
	if _, err := c.Eval(probeRow); err != nil {
		return fmt.Errorf("rule logic failed probe execution: %w", err)
	}
	return nil
}
