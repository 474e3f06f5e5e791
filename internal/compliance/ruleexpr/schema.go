package ruleexpr

import (
	"fmt"
	"strings"

	"github.com/fundops/compliance-engine/internal/domain"
)

// Row is the closed schema a filter expression is evaluated against: a
// staged holding joined with its security and issuer attributes, per
// spec.md §4.3.
type Row struct {
	HoldingsTicker              string
	HoldingsShares              int64
	HoldingsFundID              int64
	SecuritiesTicker            string
	SecuritiesName              string
	SecuritiesType              string
	SecuritiesSharesOutstanding *int64
	IssuersName                 string
	IssuersGICSSector           string
	IssuersGICSIndustryGrp      string
	IssuersGICSIndustry         string
	IssuersGICSSubIndustry      string
	IssuersCountryDomicile      string
	IssuersCountryIncorporation string
	IssuersCountryDomicileCode  string
	IssuersCountryIncorpCode    string
}

// RowFromJoined adapts a domain.JoinedHoldingRow into the evaluator's Row.
func RowFromJoined(j domain.JoinedHoldingRow) Row {
	return Row{
		HoldingsTicker:              j.HoldingsTicker,
		HoldingsShares:              j.HoldingsShares,
		HoldingsFundID:              j.HoldingsFundID,
		SecuritiesTicker:            j.SecuritiesTicker,
		SecuritiesName:              j.SecuritiesName,
		SecuritiesType:              j.SecuritiesType,
		SecuritiesSharesOutstanding: j.SecuritiesSharesOutstanding,
		IssuersName:                 j.IssuersName,
		IssuersGICSSector:           j.IssuersGICSSector,
		IssuersGICSIndustryGrp:      j.IssuersGICSIndustryGrp,
		IssuersGICSIndustry:         j.IssuersGICSIndustry,
		IssuersGICSSubIndustry:      j.IssuersGICSSubIndustry,
		IssuersCountryDomicile:      j.IssuersCountryDomicile,
		IssuersCountryIncorporation: j.IssuersCountryIncorporation,
		IssuersCountryDomicileCode:  j.IssuersCountryDomicileCode,
		IssuersCountryIncorpCode:    j.IssuersCountryIncorpCode,
	}
}

type columnKind int

const (
	colString columnKind = iota
	colInt
	colNullableInt
)

// columns is the closed set of column references a rule expression may
// use, mapping the dotted wire name to its kind and a Row accessor.
var columns = map[string]struct {
	kind    columnKind
	strVal  func(Row) string
	intVal  func(Row) int64
	nullInt func(Row) *int64
}{
	"holdings.ticker":  {kind: colString, strVal: func(r Row) string { return r.HoldingsTicker }},
	"holdings.shares":  {kind: colInt, intVal: func(r Row) int64 { return r.HoldingsShares }},
	"holdings.fund_id": {kind: colInt, intVal: func(r Row) int64 { return r.HoldingsFundID }},

	"securities.ticker":             {kind: colString, strVal: func(r Row) string { return r.SecuritiesTicker }},
	"securities.name":               {kind: colString, strVal: func(r Row) string { return r.SecuritiesName }},
	"securities.type":               {kind: colString, strVal: func(r Row) string { return r.SecuritiesType }},
	"securities.shares_outstanding": {kind: colNullableInt, nullInt: func(r Row) *int64 { return r.SecuritiesSharesOutstanding }},

	"issuers.name":                       {kind: colString, strVal: func(r Row) string { return r.IssuersName }},
	"issuers.gics_sector":                {kind: colString, strVal: func(r Row) string { return r.IssuersGICSSector }},
	"issuers.gics_industry_grp":          {kind: colString, strVal: func(r Row) string { return r.IssuersGICSIndustryGrp }},
	"issuers.gics_industry":              {kind: colString, strVal: func(r Row) string { return r.IssuersGICSIndustry }},
	"issuers.gics_sub_industry":          {kind: colString, strVal: func(r Row) string { return r.IssuersGICSSubIndustry }},
	"issuers.country_domicile":           {kind: colString, strVal: func(r Row) string { return r.IssuersCountryDomicile }},
	"issuers.country_incorporation":      {kind: colString, strVal: func(r Row) string { return r.IssuersCountryIncorporation }},
	"issuers.country_domicile_code":      {kind: colString, strVal: func(r Row) string { return r.IssuersCountryDomicileCode }},
	"issuers.country_incorporation_code": {kind: colString, strVal: func(r Row) string { return r.IssuersCountryIncorpCode }},
}

func lookupColumn(name string) (string, bool) {
	key := strings.ToLower(name)
	if _, ok := columns[key]; ok {
		return key, true
	}
	// bare column names (no table prefix) are accepted if unambiguous,
	// matching how rule authors in the original system wrote filters
	// like "shares > 100" without a table qualifier.
	var match string
	count := 0
	for full := range columns {
		if strings.HasSuffix(full, "."+key) {
			match = full
			count++
		}
	}
	if count == 1 {
		return match, true
	}
	return "", false
}

func (c compareExpr) eval(row Row) (bool, error) {
	col, ok := columns[c.column]
	if !ok {
		return false, fmt.Errorf("unknown column %q", c.column)
	}
	switch col.kind {
	case colString:
		lv := col.strVal(row)
		if c.value.kind != litString {
			return false, fmt.Errorf("column %q compared to non-string literal", c.column)
		}
		return compareStrings(lv, c.op, c.value.str), nil
	case colInt:
		lv := col.intVal(row)
		if c.value.kind != litNumber {
			return false, fmt.Errorf("column %q compared to non-numeric literal", c.column)
		}
		return compareFloats(float64(lv), c.op, c.value.number), nil
	case colNullableInt:
		ptr := col.nullInt(row)
		if ptr == nil {
			return false, nil
		}
		if c.value.kind != litNumber {
			return false, fmt.Errorf("column %q compared to non-numeric literal", c.column)
		}
		return compareFloats(float64(*ptr), c.op, c.value.number), nil
	default:
		return false, fmt.Errorf("unsupported column kind for %q", c.column)
	}
}

func (in inExpr) eval(row Row) (bool, error) {
	col, ok := columns[in.column]
	if !ok {
		return false, fmt.Errorf("unknown column %q", in.column)
	}
	found := false
	switch col.kind {
	case colString:
		lv := col.strVal(row)
		for _, v := range in.values {
			if v.kind == litString && v.str == lv {
				found = true
				break
			}
		}
	case colInt, colNullableInt:
		var lv float64
		if col.kind == colInt {
			lv = float64(col.intVal(row))
		} else {
			ptr := col.nullInt(row)
			if ptr == nil {
				return in.negate, nil
			}
			lv = float64(*ptr)
		}
		for _, v := range in.values {
			if v.kind == litNumber && v.number == lv {
				found = true
				break
			}
		}
	}
	if in.negate {
		return !found, nil
	}
	return found, nil
}

func (l likeExpr) eval(row Row) (bool, error) {
	col, ok := columns[l.column]
	if !ok || col.kind != colString {
		return false, fmt.Errorf("LIKE requires a string column, got %q", l.column)
	}
	return matchLike(col.strVal(row), l.pattern), nil
}

func compareStrings(l string, op CompareOp, r string) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNeq:
		return l != r
	case OpLt:
		return l < r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	case OpGe:
		return l >= r
	}
	return false
}

func compareFloats(l float64, op CompareOp, r float64) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNeq:
		return l != r
	case OpLt:
		return l < r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	case OpGe:
		return l >= r
	}
	return false
}

// matchLike implements SQL LIKE with a single wildcard, '%' (any run of
// characters); '_' is treated literally since the sublanguage spec only
// calls out '%'.
func matchLike(s, pattern string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return s == pattern
	}
	idx := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			if !strings.HasPrefix(s[idx:], part) {
				return false
			}
			idx += len(part)
			continue
		}
		if i == len(parts)-1 {
			return strings.HasSuffix(s[idx:], part)
		}
		pos := strings.Index(s[idx:], part)
		if pos < 0 {
			return false
		}
		idx += pos + len(part)
	}
	return true
}
