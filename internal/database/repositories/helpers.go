// Package repositories implements every Repository interface the
// compliance packages define, against the single SQLite database described
// by internal/database/schemas/compliance_schema.sql.
//
// Grounded in the teacher's internal/modules/portfolio/position_repository.go
// idiom: a *sql.DB field, zerolog logger, database/sql scanning with
// sql.Null* types, fmt.Errorf-wrapped errors.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// decimalToText renders a decimal for storage; TEXT preserves exact
// precision, which float columns cannot.
func decimalToText(d decimal.Decimal) string {
	return d.String()
}

// parseDecimal parses a stored decimal string.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("repositories: invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// nullDecimalText converts an optional decimal into a nullable TEXT bind
// value.
func nullDecimalText(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// scanNullDecimal converts a nullable TEXT column into an optional decimal.
func scanNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := parseDecimal(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func scanNullInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func scanNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
