package facts

import (
	"github.com/developmentseed/climatescope-data/internal/meta"
)

// Filter selects records by any subset of (iso, indicator, year, scope).
// Empty fields match everything. A Scope keeps only records ranked in it.
type Filter struct {
	ISOs       []meta.ISO
	Indicators []meta.IndicatorID
	Years      []Year
	Scope      Scope
}

func (f Filter) matchISO(iso meta.ISO) bool {
	if len(f.ISOs) == 0 {
		return true
	}
	for _, want := range f.ISOs {
		if want == iso {
			return true
		}
	}
	return false
}

func (f Filter) matchIndicator(id meta.IndicatorID) bool {
	if len(f.Indicators) == 0 {
		return true
	}
	for _, want := range f.Indicators {
		if want == id {
			return true
		}
	}
	return false
}

func (f Filter) matchYear(y Year) bool {
	if len(f.Years) == 0 {
		return true
	}
	for _, want := range f.Years {
		if want == y {
			return true
		}
	}
	return false
}

// Record is one (iso, indicator, year) slice of the ranked table.
type Record struct {
	ISO       meta.ISO
	Indicator meta.IndicatorID
	Year      Year
	Value     Value
	// Ranks holds only the scopes that covered this area.
	Ranks map[Scope]Rank
}

// Rank returns the rank for s, null when the scope did not cover the area.
func (r Record) Rank(s Scope) Rank { return r.Ranks[s] }

// Slice returns every matching record, ordered by iso, indicator, year.
// Years in which a row has no data yield a record with a null value.
func (t *Table) Slice(f Filter) []Record {
	var out []Record
	for _, k := range t.Keys() {
		if !f.matchISO(k.ISO) || !f.matchIndicator(k.Indicator) {
			continue
		}
		for _, y := range t.years {
			if !f.matchYear(y) {
				continue
			}
			rec := Record{ISO: k.ISO, Indicator: k.Indicator, Year: y}
			if c, ok := t.rows[k][y]; ok {
				rec.Value = c.Value
				for _, s := range Scopes {
					if r, ok := c.Rank(s); ok {
						if rec.Ranks == nil {
							rec.Ranks = make(map[Scope]Rank, len(Scopes))
						}
						rec.Ranks[s] = r
					}
				}
			}
			if f.Scope != "" {
				if _, ok := rec.Ranks[f.Scope]; !ok {
					continue
				}
			}
			out = append(out, rec)
		}
	}
	return out
}

// PivotRow is one area of a pivot: values in the order of the requested
// indicators.
type PivotRow struct {
	ISO    meta.ISO
	Values []Value
}

// Pivot lays out year y as iso rows × indicator columns. Only areas in
// isos are included, in the given order; areas with no data at all for
// the requested indicators are dropped.
func (t *Table) Pivot(y Year, isos []meta.ISO, ids []meta.IndicatorID) []PivotRow {
	var out []PivotRow
	for _, iso := range isos {
		row := PivotRow{ISO: iso, Values: make([]Value, len(ids))}
		present := false
		for i, id := range ids {
			k := Key{ISO: iso, Indicator: id}
			if t.Has(k) {
				present = true
			}
			row.Values[i] = t.Value(iso, id, y)
		}
		if present {
			out = append(out, row)
		}
	}
	return out
}
