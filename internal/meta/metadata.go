package meta

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalid wraps every metadata consistency violation.
var ErrInvalid = errors.New("invalid metadata")

// Metadata is the validated, immutable view over both tables.
// Every list it returns is sorted so runs are deterministic.
type Metadata struct {
	areas      map[ISO]AdminArea
	indicators map[IndicatorID]Indicator

	countries []ISO
	states    []ISO
	regions   []ISO

	countriesIn map[ISO][]ISO
	statesOf    map[ISO][]ISO

	byKind   map[IndicatorKind][]IndicatorID
	children map[IndicatorID][]IndicatorID
}

// New indexes and validates the tables. All violations are reported at
// once, joined under ErrInvalid.
func New(areas []AdminArea, indicators []Indicator) (*Metadata, error) {
	m := &Metadata{
		areas:       make(map[ISO]AdminArea, len(areas)),
		indicators:  make(map[IndicatorID]Indicator, len(indicators)),
		countriesIn: make(map[ISO][]ISO),
		statesOf:    make(map[ISO][]ISO),
		byKind:      make(map[IndicatorKind][]IndicatorID),
		children:    make(map[IndicatorID][]IndicatorID),
	}

	var errs []error
	for _, a := range areas {
		if _, dup := m.areas[a.ISO]; dup {
			errs = append(errs, fmt.Errorf("duplicate admin area %s", a.ISO))
			continue
		}
		m.areas[a.ISO] = a
	}
	for _, ind := range indicators {
		if _, dup := m.indicators[ind.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate indicator %d", ind.ID))
			continue
		}
		m.indicators[ind.ID] = ind
	}

	for iso, a := range m.areas {
		switch a.Type {
		case Country:
			m.countries = append(m.countries, iso)
			r, ok := m.areas[a.Region]
			if a.Region == "" || !ok || r.Type != Region {
				errs = append(errs, fmt.Errorf("country %s: region %q is not a known region", iso, a.Region))
				continue
			}
			m.countriesIn[a.Region] = append(m.countriesIn[a.Region], iso)
		case State:
			m.states = append(m.states, iso)
			p, ok := m.areas[a.ParentCountry]
			if a.ParentCountry == "" || !ok || p.Type != Country {
				errs = append(errs, fmt.Errorf("state %s: parent %q is not a known country", iso, a.ParentCountry))
				continue
			}
			m.statesOf[a.ParentCountry] = append(m.statesOf[a.ParentCountry], iso)
		case Region:
			m.regions = append(m.regions, iso)
		}
	}

	for id, ind := range m.indicators {
		m.byKind[ind.Kind] = append(m.byKind[ind.Kind], id)
		if ind.ParentID == nil {
			continue
		}
		if _, ok := m.indicators[*ind.ParentID]; !ok {
			errs = append(errs, fmt.Errorf("indicator %d: unknown parent %d", id, *ind.ParentID))
			continue
		}
		m.children[*ind.ParentID] = append(m.children[*ind.ParentID], id)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	sortISOs(m.countries)
	sortISOs(m.states)
	sortISOs(m.regions)
	for _, l := range m.countriesIn {
		sortISOs(l)
	}
	for _, l := range m.statesOf {
		sortISOs(l)
	}
	for _, l := range m.byKind {
		sortIDs(l)
	}
	for _, l := range m.children {
		sortIDs(l)
	}
	return m, nil
}

func sortISOs(s []ISO) { sort.Slice(s, func(i, j int) bool { return s[i] < s[j] }) }

func sortIDs(s []IndicatorID) { sort.Slice(s, func(i, j int) bool { return s[i] < s[j] }) }

// Area looks up an admin area.
func (m *Metadata) Area(iso ISO) (AdminArea, bool) {
	a, ok := m.areas[iso]
	return a, ok
}

// Indicator looks up an indicator.
func (m *Metadata) Indicator(id IndicatorID) (Indicator, bool) {
	ind, ok := m.indicators[id]
	return ind, ok
}

func (m *Metadata) Countries() []ISO { return m.countries }
func (m *Metadata) States() []ISO    { return m.states }
func (m *Metadata) Regions() []ISO   { return m.regions }

// AdminAreas returns countries followed by states.
func (m *Metadata) AdminAreas() []ISO {
	out := make([]ISO, 0, len(m.countries)+len(m.states))
	out = append(out, m.countries...)
	return append(out, m.states...)
}

// CountriesIn returns the countries of a region.
func (m *Metadata) CountriesIn(region ISO) []ISO { return m.countriesIn[region] }

// StatesOf returns the states of a country; nil when it has none.
func (m *Metadata) StatesOf(country ISO) []ISO { return m.statesOf[country] }

func (m *Metadata) Scores() []IndicatorID     { return m.byKind[KindScore] }
func (m *Metadata) Params() []IndicatorID     { return m.byKind[KindParam] }
func (m *Metadata) Indicators() []IndicatorID { return m.byKind[KindIndicator] }

// ChildrenOf returns the ids whose parent is id.
func (m *Metadata) ChildrenOf(id IndicatorID) []IndicatorID { return m.children[id] }

// RankedIndicators is score ∪ params ∪ indicators, in that order.
func (m *Metadata) RankedIndicators() []IndicatorID {
	out := make([]IndicatorID, 0, len(m.indicators))
	out = append(out, m.Scores()...)
	out = append(out, m.Params()...)
	return append(out, m.Indicators()...)
}

// Headline is score ∪ params, the columns of the main download.
func (m *Metadata) Headline() []IndicatorID {
	out := make([]IndicatorID, 0, len(m.Scores())+len(m.Params()))
	out = append(out, m.Scores()...)
	return append(out, m.Params()...)
}
