package export

import (
	"path/filepath"

	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/developmentseed/climatescope-data/internal/ranking"
)

// AreaDoc is {lang}/api/areas/{iso}.json.
type AreaDoc struct {
	ISO        meta.ISO          `json:"iso"`
	Name       string            `json:"name"`
	Type       meta.AreaType     `json:"type"`
	Region     meta.ISO          `json:"region,omitempty"`
	Country    meta.ISO          `json:"country,omitempty"`
	Grid       meta.Grid         `json:"grid,omitempty"`
	Indicators []IndicatorSeries `json:"indicators"`
}

// IndicatorSeries is one indicator of an area across the loaded years.
type IndicatorSeries struct {
	ID     meta.IndicatorID    `json:"id"`
	Name   string              `json:"name"`
	Type   meta.IndicatorKind  `json:"type"`
	Parent *meta.IndicatorID   `json:"parent,omitempty"`
	Data   []ranking.YearRanks `json:"data"`
}

// RegionDoc is {lang}/api/regions/{iso}.json.
type RegionDoc struct {
	ISO    meta.ISO      `json:"iso"`
	Name   string        `json:"name"`
	Year   facts.Year    `json:"year"`
	Scores []RegionScore `json:"scores"`
}

// RegionScore is one score indicator for a region in the current year.
// Mean is taken over the members whose value is eligible for ranking.
type RegionScore struct {
	ID        meta.IndicatorID `json:"id"`
	Name      string           `json:"name"`
	Mean      facts.Value      `json:"mean"`
	Countries []RegionMember   `json:"countries"`
}

// RegionMember is a country's standing inside its region.
type RegionMember struct {
	ISO   meta.ISO    `json:"iso"`
	Name  string      `json:"name"`
	Value facts.Value `json:"value"`
	Rank  facts.Rank  `json:"rank"`
}

// WriteJSON writes the area and region documents and returns how many
// were written.
func (e *Exporter) WriteJSON(precision int) (int, error) {
	written := 0
	for _, lang := range e.langs {
		for _, iso := range e.meta.AdminAreas() {
			doc, ok := e.AreaDoc(iso, lang, precision)
			if !ok {
				continue
			}
			fn := filepath.Join(e.dir, lang, "api", "areas", iso.Lower()+".json")
			if err := WriteJSONFile(fn, doc); err != nil {
				return written, err
			}
			written++
		}

		for _, region := range e.meta.Regions() {
			doc, ok := e.RegionDoc(region, lang, precision)
			if !ok {
				continue
			}
			fn := filepath.Join(e.dir, lang, "api", "regions", region.Lower()+".json")
			if err := WriteJSONFile(fn, doc); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// AreaDoc builds the document of one admin area, false when the area is
// unknown.
func (e *Exporter) AreaDoc(iso meta.ISO, lang string, precision int) (AreaDoc, bool) {
	a, ok := e.meta.Area(iso)
	if !ok || a.Type == meta.Region {
		return AreaDoc{}, false
	}

	doc := AreaDoc{
		ISO:        iso,
		Name:       a.DisplayName(lang),
		Type:       a.Type,
		Region:     a.Region,
		Country:    a.ParentCountry,
		Grid:       a.Grid,
		Indicators: []IndicatorSeries{},
	}
	for _, id := range e.meta.RankedIndicators() {
		if !e.table.Has(facts.Key{ISO: iso, Indicator: id}) {
			continue
		}
		ind, _ := e.meta.Indicator(id)
		data := ranking.Series(e.table, iso, id)
		for i := range data {
			data[i].Value = RoundValue(data[i].Value, precision)
		}
		doc.Indicators = append(doc.Indicators, IndicatorSeries{
			ID:     id,
			Name:   ind.DisplayName(lang),
			Type:   ind.Kind,
			Parent: ind.ParentID,
			Data:   data,
		})
	}
	return doc, true
}

// RegionDoc builds the current-year standing of a region, false when the
// iso is not a region.
func (e *Exporter) RegionDoc(region meta.ISO, lang string, precision int) (RegionDoc, bool) {
	a, ok := e.meta.Area(region)
	if !ok || a.Type != meta.Region {
		return RegionDoc{}, false
	}
	cur, _ := e.table.CurrentYear()

	doc := RegionDoc{
		ISO:    region,
		Name:   a.DisplayName(lang),
		Year:   cur,
		Scores: []RegionScore{},
	}
	for _, id := range e.meta.Scores() {
		score := RegionScore{
			ID:        id,
			Name:      e.indicatorName(id, lang),
			Countries: []RegionMember{},
		}
		var sum float64
		var n int
		for _, iso := range e.meta.CountriesIn(region) {
			v := e.table.Value(iso, id, cur)
			member := RegionMember{
				ISO:   iso,
				Name:  e.areaName(iso, lang),
				Value: RoundValue(v, precision),
			}
			if c, ok := e.table.Get(facts.Key{ISO: iso, Indicator: id}, cur); ok {
				member.Rank, _ = c.Rank(facts.Regional)
			}
			score.Countries = append(score.Countries, member)
			if e.policy.Eligible(id, v) {
				sum += v.Float64
				n++
			}
		}
		if n > 0 {
			score.Mean = facts.Some(Round(sum/float64(n), precision))
		}
		doc.Scores = append(doc.Scores, score)
	}
	return doc, true
}
