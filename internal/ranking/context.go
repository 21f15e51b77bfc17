package ranking

import (
	"fmt"

	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
)

// Context carries everything a ranking run reads. It is built once and
// passed explicitly; nothing in this package keeps state between runs.
type Context struct {
	Meta        *meta.Metadata
	Years       []facts.Year
	CurrentYear facts.Year
	Policy      Policy
}

// NewContext derives the years from the loaded table.
func NewContext(m *meta.Metadata, t *facts.Table, policy Policy) (*Context, error) {
	cur, ok := t.CurrentYear()
	if !ok {
		return nil, fmt.Errorf("ranking: %w", facts.ErrNoYears)
	}
	return &Context{
		Meta:        m,
		Years:       t.Years(),
		CurrentYear: cur,
		Policy:      policy,
	}, nil
}

// Scopes is one year and indicator worth of scope results, keyed by the
// group they were computed over (the region or country iso; empty for
// global).
type Scopes struct {
	Global    map[meta.ISO]facts.Rank
	Regional  map[meta.ISO]map[meta.ISO]facts.Rank
	InCountry map[meta.ISO]map[meta.ISO]facts.Rank
}

// ScopesFor ranks indicator id in year y over every scope:
//   - global: all countries against each other
//   - regional: the countries of each region; states never compete here
//   - in-country: the states of each country that has any
//
// Regions without countries and countries without states produce no
// entry at all.
func (c *Context) ScopesFor(t *facts.Table, id meta.IndicatorID, y facts.Year) Scopes {
	s := Scopes{
		Global:    RankScope(c.Meta.Countries(), id, y, t, c.Policy),
		Regional:  make(map[meta.ISO]map[meta.ISO]facts.Rank),
		InCountry: make(map[meta.ISO]map[meta.ISO]facts.Rank),
	}
	for _, region := range c.Meta.Regions() {
		if r := RankScope(c.Meta.CountriesIn(region), id, y, t, c.Policy); r != nil {
			s.Regional[region] = r
		}
	}
	for _, country := range c.Meta.Countries() {
		if r := RankScope(c.Meta.StatesOf(country), id, y, t, c.Policy); r != nil {
			s.InCountry[country] = r
		}
	}
	return s
}

// ComputeAllScopes returns a copy of t with every rank recomputed for
// every loaded year and every ranked indicator (score, params and
// indicators). Ranks already in t are discarded first, so the result
// depends only on the values and the metadata.
func ComputeAllScopes(c *Context, t *facts.Table) *facts.Table {
	out := t.Clone()
	out.ClearRanks()

	for _, y := range c.Years {
		if !out.HasYear(y) {
			continue
		}
		for _, id := range c.Meta.RankedIndicators() {
			s := c.ScopesFor(out, id, y)
			out.MergeRanks(id, y, facts.Global, s.Global)
			for _, r := range s.Regional {
				out.MergeRanks(id, y, facts.Regional, r)
			}
			for _, r := range s.InCountry {
				out.MergeRanks(id, y, facts.InCountry, r)
			}
		}
	}
	return out
}
