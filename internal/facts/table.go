package facts

import (
	"sort"

	"github.com/developmentseed/climatescope-data/internal/meta"
)

// Key identifies a row of the fact table.
type Key struct {
	ISO       meta.ISO
	Indicator meta.IndicatorID
}

func (k Key) less(o Key) bool {
	if k.ISO != o.ISO {
		return k.ISO < o.ISO
	}
	return k.Indicator < o.Indicator
}

// Fact is one loader row: a value for an area and indicator in the year
// being loaded.
type Fact struct {
	ISO       meta.ISO
	Indicator meta.IndicatorID
	Value     Value
}

// Cell is one year's column group of a row.
type Cell struct {
	Value Value
	ranks [3]Rank
	set   [3]bool
}

// Rank returns the rank for scope and whether that scope wrote one.
// A scope that never covered the area (a country's in-country rank)
// reports false; an excluded area reports a null rank and true.
func (c Cell) Rank(s Scope) (Rank, bool) {
	i := s.index()
	return c.ranks[i], c.set[i]
}

// Table accumulates fact values, and later ranks, across years.
// The zero value is not usable; call NewTable.
type Table struct {
	years []Year
	rows  map[Key]map[Year]*Cell
}

func NewTable() *Table {
	return &Table{rows: make(map[Key]map[Year]*Cell)}
}

// AddYear merges one year's facts as an outer join on (iso, indicator):
// rows absent from this year keep a null column group, rows new in this
// year start with null history. Returns how many facts repeated a key
// already seen for this year (last one wins).
func (t *Table) AddYear(y Year, facts []Fact) int {
	if !t.HasYear(y) {
		t.years = append(t.years, y)
		sort.Slice(t.years, func(i, j int) bool { return t.years[i] < t.years[j] })
	}

	dups := 0
	seen := make(map[Key]bool, len(facts))
	for _, f := range facts {
		k := Key{ISO: f.ISO, Indicator: f.Indicator}
		if seen[k] {
			dups++
		}
		seen[k] = true
		t.cell(k, y).Value = f.Value
	}
	return dups
}

// cell returns the cell for k in y, creating row and cell as needed.
func (t *Table) cell(k Key, y Year) *Cell {
	row, ok := t.rows[k]
	if !ok {
		row = make(map[Year]*Cell)
		t.rows[k] = row
	}
	c, ok := row[y]
	if !ok {
		c = &Cell{}
		row[y] = c
	}
	return c
}

// HasYear reports whether y has been added.
func (t *Table) HasYear(y Year) bool {
	for _, have := range t.years {
		if have == y {
			return true
		}
	}
	return false
}

// Years returns the loaded years in ascending order.
func (t *Table) Years() []Year {
	return append([]Year(nil), t.years...)
}

// CurrentYear is max(years).
func (t *Table) CurrentYear() (Year, bool) {
	if len(t.years) == 0 {
		return 0, false
	}
	return t.years[len(t.years)-1], true
}

// HistoricYears is every year but the current one.
func (t *Table) HistoricYears() []Year {
	if len(t.years) < 2 {
		return nil
	}
	return append([]Year(nil), t.years[:len(t.years)-1]...)
}

// Len is the number of (iso, indicator) rows.
func (t *Table) Len() int { return len(t.rows) }

// Keys returns every row key ordered by iso, then indicator.
func (t *Table) Keys() []Key {
	keys := make([]Key, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Has reports whether a row exists for k.
func (t *Table) Has(k Key) bool {
	_, ok := t.rows[k]
	return ok
}

// Get returns the column group of k in y.
func (t *Table) Get(k Key, y Year) (Cell, bool) {
	c, ok := t.rows[k][y]
	if !ok {
		return Cell{}, false
	}
	return *c, true
}

// Value returns the value of (iso, id) in y, null when absent.
func (t *Table) Value(iso meta.ISO, id meta.IndicatorID, y Year) Value {
	c, _ := t.Get(Key{ISO: iso, Indicator: id}, y)
	return c.Value
}

// MergeRanks writes a scope's ranks for (id, y) with fill-missing
// semantics: a cell whose rank for that scope was already written is left
// alone, so repeated merges are harmless. Areas without a row in the table
// are skipped. Returns the number of ranks written.
func (t *Table) MergeRanks(id meta.IndicatorID, y Year, s Scope, ranks map[meta.ISO]Rank) int {
	i := s.index()
	written := 0
	for iso, r := range ranks {
		k := Key{ISO: iso, Indicator: id}
		if !t.Has(k) {
			continue
		}
		c := t.cell(k, y)
		if c.set[i] {
			continue
		}
		c.ranks[i] = r
		c.set[i] = true
		written++
	}
	return written
}

// ClearRanks drops every rank, keeping the values.
func (t *Table) ClearRanks() {
	for _, row := range t.rows {
		for _, c := range row {
			c.ranks = [3]Rank{}
			c.set = [3]bool{}
		}
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		years: append([]Year(nil), t.years...),
		rows:  make(map[Key]map[Year]*Cell, len(t.rows)),
	}
	for k, row := range t.rows {
		cp := make(map[Year]*Cell, len(row))
		for y, c := range row {
			cc := *c
			cp[y] = &cc
		}
		out.rows[k] = cp
	}
	return out
}
