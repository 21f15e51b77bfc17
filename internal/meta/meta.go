// Package meta holds the read-only metadata tables of a run: the
// administrative-area hierarchy and the indicator taxonomy.
//
// Identifiers are typed once at load time. Everything downstream keys on
// ISO and IndicatorID and never re-parses raw cells.
package meta

import (
	"fmt"
	"strconv"
	"strings"
)

// ISO identifies an administrative area (country, state or region).
// Always upper case.
type ISO string

// ParseISO normalizes a raw cell into an ISO.
func ParseISO(s string) ISO {
	return ISO(strings.ToUpper(strings.TrimSpace(s)))
}

// Lower returns the lower-case form used in exported file names.
func (i ISO) Lower() string { return strings.ToLower(string(i)) }

func (i ISO) String() string { return string(i) }

// IndicatorID identifies a score, parameter or indicator.
type IndicatorID int

// ParseIndicatorID accepts both "101" and "101.0"; spreadsheets hand out
// either depending on cell formatting.
func ParseIndicatorID(s string) (IndicatorID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty indicator id")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return IndicatorID(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("indicator id %q: %w", s, err)
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("indicator id %q is not integral", s)
	}
	return IndicatorID(int(f)), nil
}

func (id IndicatorID) String() string { return strconv.Itoa(int(id)) }

// AreaType is the level of an administrative area.
type AreaType string

const (
	Country AreaType = "country"
	State   AreaType = "state"
	Region  AreaType = "region"
)

// IndicatorKind is the level of an indicator in the taxonomy.
type IndicatorKind string

const (
	KindScore     IndicatorKind = "score"
	KindParam     IndicatorKind = "param"
	KindIndicator IndicatorKind = "indicator"
)

// Grid tells which grid an area or indicator applies to.
type Grid string

const (
	OnGrid  Grid = "on-grid"
	OffGrid Grid = "off-grid"
	Both    Grid = "both"
)

func parseGrid(s string) (Grid, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both", "all":
		return Both, nil
	case "on-grid", "on", "ongrid":
		return OnGrid, nil
	case "off-grid", "off", "offgrid":
		return OffGrid, nil
	}
	return "", fmt.Errorf("unknown grid %q", s)
}

// Names maps a language code to a label. The empty key holds a
// language-neutral fallback.
type Names map[string]string

// In returns the label for lang, falling back to the neutral label and
// then to English.
func (n Names) In(lang string) string {
	if v := n[lang]; v != "" {
		return v
	}
	if v := n[""]; v != "" {
		return v
	}
	return n["en"]
}

// AdminArea is a row of the admin-area table.
type AdminArea struct {
	ISO           ISO
	Type          AreaType
	ParentCountry ISO // states only
	Region        ISO // countries only
	Grid          Grid
	Name          Names
}

// DisplayName returns the name in lang, or the ISO when the table has none.
func (a AdminArea) DisplayName(lang string) string {
	if n := a.Name.In(lang); n != "" {
		return n
	}
	return string(a.ISO)
}

// Indicator is a row of the indicator taxonomy.
type Indicator struct {
	ID          IndicatorID
	Kind        IndicatorKind
	ParentID    *IndicatorID
	Grid        Grid
	Weight      *float64
	Name        Names
	Description Names
}

// DisplayName returns the name in lang, or the numeric id.
func (ind Indicator) DisplayName(lang string) string {
	if n := ind.Name.In(lang); n != "" {
		return n
	}
	return ind.ID.String()
}
