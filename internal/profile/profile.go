// Package profile writes the profile document of every country and state:
// a handful of context figures (GDP, population, installed capacity...)
// read from profiles.csv and, for countries, completed from the World Bank.
package profile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/developmentseed/climatescope-data/internal/config"
	"github.com/developmentseed/climatescope-data/internal/export"
	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/developmentseed/climatescope-data/internal/worldbank"
)

// Source looks up a value missing from profiles.csv.
type Source interface {
	Latest(ctx context.Context, iso, indicator string, year int) (worldbank.Observation, error)
}

// Doc is {lang}/api/countries-profile/{iso}.json.
type Doc struct {
	Name       string      `json:"name"`
	ISO        string      `json:"iso"`
	Indicators []Indicator `json:"indicators"`
}

// Indicator is one figure of a profile.
type Indicator struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Unit   string  `json:"unit"`
	Value  float64 `json:"value"`
	Year   int     `json:"year,omitempty"`   // set when the value came from the World Bank
	Source string  `json:"source,omitempty"` // "worldbank" when enriched
}

// Rows maps iso to the raw cells of its profiles.csv row, keyed by column.
type Rows map[meta.ISO]map[string]string

// ReadRows parses profiles.csv. Headers are matched case-insensitively.
func ReadRows(r io.Reader) (Rows, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	if len(records) == 0 {
		return Rows{}, nil
	}

	header := make([]string, len(records[0]))
	isoCol := -1
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if header[i] == "iso" {
			isoCol = i
		}
	}
	if isoCol < 0 {
		return nil, fmt.Errorf("read profiles: no iso column")
	}

	rows := make(Rows, len(records)-1)
	for _, rec := range records[1:] {
		if isoCol >= len(rec) || strings.TrimSpace(rec[isoCol]) == "" {
			continue
		}
		cells := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				cells[h] = strings.TrimSpace(rec[i])
			}
		}
		rows[meta.ParseISO(rec[isoCol])] = cells
	}
	return rows, nil
}

// ReadFile is ReadRows over a file.
func ReadFile(path string) (Rows, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f)
}

// Builder assembles profile documents.
type Builder struct {
	meta       *meta.Metadata
	indicators []config.ProfileIndicator
	rows       Rows
	source     Source // nil when offline
	year       int

	// World Bank lookups, shared across languages
	cache map[string]*Indicator
}

// NewBuilder returns a Builder. source may be nil, in which case blank
// cells are simply left out.
func NewBuilder(m *meta.Metadata, indicators []config.ProfileIndicator, rows Rows, source Source, year int) *Builder {
	return &Builder{
		meta:       m,
		indicators: indicators,
		rows:       rows,
		source:     source,
		year:       year,
		cache:      make(map[string]*Indicator),
	}
}

// Doc builds the profile of iso in lang. Bad cells and failed lookups are
// logged and skipped; a cancelled context or an unknown conversion fails.
func (b *Builder) Doc(ctx context.Context, iso meta.ISO, lang string) (Doc, error) {
	a, ok := b.meta.Area(iso)
	name := string(iso)
	if ok {
		name = a.DisplayName(lang)
	}
	doc := Doc{Name: name, ISO: iso.Lower(), Indicators: []Indicator{}}
	row := b.rows[iso]

	for _, pi := range b.indicators {
		ind := Indicator{ID: pi.ID, Name: pi.Name.In(lang), Unit: pi.Unit.In(lang)}

		if cell := row[strings.ToLower(pi.ID)]; cell != "" {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				logging.Warn("skipping unparseable profile value", "iso", iso, "indicator", pi.ID, "value", cell)
				continue
			}
			if ind.Value, err = ApplyConversion(pi.Conversion, v); err != nil {
				return Doc{}, fmt.Errorf("profile %s: %w", pi.ID, err)
			}
			doc.Indicators = append(doc.Indicators, ind)
			continue
		}

		if pi.WorldBank == "" || b.source == nil || !ok || a.Type != meta.Country {
			continue
		}
		wb, err := b.lookup(ctx, iso, pi)
		if err != nil {
			return Doc{}, err
		}
		if wb == nil {
			continue
		}
		ind.Value, ind.Year, ind.Source = wb.Value, wb.Year, wb.Source
		doc.Indicators = append(doc.Indicators, ind)
	}
	return doc, nil
}

// lookup returns the converted World Bank value, nil when there is none.
func (b *Builder) lookup(ctx context.Context, iso meta.ISO, pi config.ProfileIndicator) (*Indicator, error) {
	key := string(iso) + "|" + pi.WorldBank
	if ind, ok := b.cache[key]; ok {
		return ind, nil
	}

	obs, err := b.source.Latest(ctx, string(iso), pi.WorldBank, b.year)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, worldbank.ErrNoData):
		logging.Debug("no world bank value", "iso", iso, "indicator", pi.WorldBank)
		b.cache[key] = nil
		return nil, nil
	default:
		logging.Warn("world bank lookup failed", "iso", iso, "indicator", pi.WorldBank, "error", err)
		b.cache[key] = nil
		return nil, nil
	}

	v, err := ApplyConversion(pi.WorldBankConversion, obs.Value)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", pi.ID, err)
	}
	ind := &Indicator{Value: v, Year: obs.Year, Source: "worldbank"}
	b.cache[key] = ind
	return ind, nil
}

// Write writes the profile of every country and state in every language
// under dir/{lang}/api/countries-profile, replacing that folder. It returns
// the number of documents written.
func (b *Builder) Write(ctx context.Context, dir string, langs []string) (int, error) {
	written := 0
	for _, lang := range langs {
		out := filepath.Join(dir, lang, "api", "countries-profile")
		if err := os.RemoveAll(out); err != nil {
			return written, err
		}
		if err := os.MkdirAll(out, 0755); err != nil {
			return written, err
		}

		for _, iso := range b.meta.AdminAreas() {
			doc, err := b.Doc(ctx, iso, lang)
			if err != nil {
				return written, err
			}
			if err := export.WriteJSONFile(filepath.Join(out, iso.Lower()+".json"), doc); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
