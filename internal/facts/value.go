// Package facts is the multi-year fact table: loading yearly source files
// and accumulating (iso, indicator) rows with one column group per year.
package facts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Value is a published figure. Invalid means "not published" and must
// survive as null all the way to the exports; it is never zero.
type Value struct {
	Float64 float64
	Valid   bool
}

// Some wraps a published figure.
func Some(f float64) Value { return Value{Float64: f, Valid: true} }

// Null is the "not published" value.
var Null = Value{}

// ParseValue maps a raw cell to a Value. Blank cells and the usual
// spreadsheet placeholders are null.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "-", "na", "n/a", "nan", "null", "#n/a":
		return Null, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Null, fmt.Errorf("value %q: %w", s, err)
	}
	return Some(f), nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float64)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Null
		return nil
	}
	if err := json.Unmarshal(b, &v.Float64); err != nil {
		return err
	}
	v.Valid = true
	return nil
}

func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

// Rank is a competition rank. Invalid means the area was excluded from
// ranking (no data).
type Rank struct {
	N     int
	Valid bool
}

// RankOf wraps an assigned rank.
func RankOf(n int) Rank { return Rank{N: n, Valid: true} }

// NoRank is the null rank.
var NoRank = Rank{}

func (r Rank) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(r.N)), nil
}

func (r *Rank) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = NoRank
		return nil
	}
	if err := json.Unmarshal(b, &r.N); err != nil {
		return err
	}
	r.Valid = true
	return nil
}

func (r Rank) String() string {
	if !r.Valid {
		return ""
	}
	return strconv.Itoa(r.N)
}

// Year is an edition year.
type Year int

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// ParseYear accepts exactly four digits. Four-digit years order the same
// lexically and numerically, which the current-year rule relies on.
func ParseYear(s string) (Year, error) {
	if !yearPattern.MatchString(s) {
		return 0, fmt.Errorf("%q is not a YYYY year", s)
	}
	n, _ := strconv.Atoi(s)
	return Year(n), nil
}

func (y Year) String() string { return strconv.Itoa(int(y)) }

// Scope is the grouping a rank was computed over.
type Scope string

const (
	Global    Scope = "global"
	Regional  Scope = "regional"
	InCountry Scope = "in-country"
)

// Scopes lists every scope in export order.
var Scopes = []Scope{Global, Regional, InCountry}

func (s Scope) index() int {
	switch s {
	case Global:
		return 0
	case Regional:
		return 1
	case InCountry:
		return 2
	}
	panic(fmt.Sprintf("facts: unknown scope %q", string(s)))
}

// ParseScope accepts the scope names plus the short forms used on the
// command line.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global", "g":
		return Global, nil
	case "regional", "region", "r":
		return Regional, nil
	case "in-country", "country", "incountry", "c":
		return InCountry, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Field names a column of a year's column group.
type Field string

const (
	FieldValue         Field = "value"
	FieldGlobalRank    Field = "globalRank"
	FieldRegionalRank  Field = "regionalRank"
	FieldInCountryRank Field = "inCountryRank"
)

// RankField maps a scope to its column.
func RankField(s Scope) Field {
	switch s {
	case Global:
		return FieldGlobalRank
	case Regional:
		return FieldRegionalRank
	default:
		return FieldInCountryRank
	}
}
