package profile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/developmentseed/climatescope-data/internal/config"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/developmentseed/climatescope-data/internal/worldbank"
)

func TestApplyConversion(t *testing.T) {
	tests := []struct {
		chain string
		v     float64
		want  float64
	}{
		{"", 1.23456, 1.23456},
		{"percent|round2", 0.123456, 12.35},
		{"round1", 2.25, 2.3},
		{"round4", 1.234567, 1.2346},
		{"million", 43000000, 43},
		{"billion|round2", 526319673731.638, 526.32},
		{"int", 7.9, 7},
		{"million|int", 43999999, 43},
	}
	for _, tt := range tests {
		got, err := ApplyConversion(tt.chain, tt.v)
		if err != nil {
			t.Errorf("ApplyConversion(%q, %v): %v", tt.chain, tt.v, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ApplyConversion(%q, %v) = %v, want %v", tt.chain, tt.v, got, tt.want)
		}
	}

	if _, err := ApplyConversion("round2|furlongs", 1); err == nil {
		t.Error("expected error for unknown conversion")
	}
}

const profilesCSV = "\ufeffISO,gdp,growth_rate,population\n" +
	"AR,540.2,0.0312,\n" +
	"AR-A,,,3.1\n" +
	"BR,abc,,\n"

func fixtureMeta(t *testing.T) *meta.Metadata {
	t.Helper()
	m, err := meta.New([]meta.AdminArea{
		{ISO: "LAC", Type: meta.Region},
		{ISO: "AR", Type: meta.Country, Region: "LAC", Name: meta.Names{"en": "Argentina"}},
		{ISO: "BR", Type: meta.Country, Region: "LAC", Name: meta.Names{"en": "Brazil", "es": "Brasil"}},
		{ISO: "AR-A", Type: meta.State, ParentCountry: "AR"},
	}, []meta.Indicator{{ID: 0, Kind: meta.KindScore}})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func indicators() []config.ProfileIndicator {
	return []config.ProfileIndicator{
		{ID: "gdp", Name: meta.Names{"en": "GDP", "es": "PIB"}, Unit: meta.Names{"en": "$bn", "es": "$mm"}, WorldBank: "NY.GDP.MKTP.CD", WorldBankConversion: "billion|round2"},
		{ID: "growth_rate", Name: meta.Names{"en": "Growth"}, Unit: meta.Names{"": "%"}, Conversion: "percent|round2"},
		{ID: "population", Name: meta.Names{"en": "Population"}, Unit: meta.Names{"": "m"}, WorldBank: "SP.POP.TOTL", WorldBankConversion: "million|round2"},
	}
}

// fakeSource answers every lookup with value, or ErrNoData for codes in
// missing.
type fakeSource struct {
	value   float64
	missing map[string]bool
	calls   int
}

func (f *fakeSource) Latest(ctx context.Context, iso, indicator string, year int) (worldbank.Observation, error) {
	f.calls++
	if f.missing[indicator] {
		return worldbank.Observation{}, worldbank.ErrNoData
	}
	return worldbank.Observation{Country: iso, Indicator: indicator, Year: year - 1, Value: f.value}, nil
}

func TestReadRows(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(profilesCSV))
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows["AR"]["gdp"] != "540.2" || rows["AR"]["population"] != "" {
		t.Errorf("AR = %v", rows["AR"])
	}

	if _, err := ReadRows(strings.NewReader("country,gdp\nAR,1\n")); err == nil {
		t.Error("expected error without iso column")
	}
}

func TestDocOffline(t *testing.T) {
	rows, _ := ReadRows(strings.NewReader(profilesCSV))
	b := NewBuilder(fixtureMeta(t), indicators(), rows, nil, 2014)

	doc, err := b.Doc(context.Background(), "AR", "es")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ISO != "ar" || doc.Name != "Argentina" {
		t.Errorf("doc = %+v", doc)
	}
	if len(doc.Indicators) != 2 {
		t.Fatalf("indicators = %+v, want gdp and growth_rate", doc.Indicators)
	}
	if doc.Indicators[0].Name != "PIB" || doc.Indicators[0].Unit != "$mm" || doc.Indicators[0].Value != 540.2 {
		t.Errorf("gdp = %+v", doc.Indicators[0])
	}
	if doc.Indicators[1].Value != 3.12 || doc.Indicators[1].Unit != "%" {
		t.Errorf("growth_rate = %+v", doc.Indicators[1])
	}

	// unparseable cell dropped, nothing else to show
	doc, err = b.Doc(context.Background(), "BR", "es")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "Brasil" || len(doc.Indicators) != 0 {
		t.Errorf("BR = %+v", doc)
	}
}

func TestDocWorldBankEnrichment(t *testing.T) {
	rows, _ := ReadRows(strings.NewReader(profilesCSV))
	src := &fakeSource{value: 43000000, missing: map[string]bool{"NY.GDP.MKTP.CD": true}}
	b := NewBuilder(fixtureMeta(t), indicators(), rows, src, 2014)

	doc, err := b.Doc(context.Background(), "AR", "en")
	if err != nil {
		t.Fatal(err)
	}
	// gdp comes from the csv; population from the World Bank
	if len(doc.Indicators) != 3 {
		t.Fatalf("indicators = %+v", doc.Indicators)
	}
	pop := doc.Indicators[2]
	if pop.Value != 43 || pop.Source != "worldbank" || pop.Year != 2013 {
		t.Errorf("population = %+v", pop)
	}

	// BR: gdp cell bad (skipped, not enriched), population from the World Bank
	doc, _ = b.Doc(context.Background(), "BR", "en")
	if len(doc.Indicators) != 1 || doc.Indicators[0].ID != "population" {
		t.Errorf("BR = %+v", doc.Indicators)
	}

	// states are never enriched
	doc, _ = b.Doc(context.Background(), "AR-A", "en")
	if len(doc.Indicators) != 1 || doc.Indicators[0].Source != "" {
		t.Errorf("AR-A = %+v", doc.Indicators)
	}

	calls := src.calls
	b.Doc(context.Background(), "AR", "es")
	if src.calls != calls {
		t.Errorf("second language repeated lookups: %d -> %d", calls, src.calls)
	}
}

func TestDocCancelled(t *testing.T) {
	rows, _ := ReadRows(strings.NewReader(profilesCSV))
	src := &cancelSource{}
	b := NewBuilder(fixtureMeta(t), indicators(), rows, src, 2014)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Doc(ctx, "AR", "en"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type cancelSource struct{}

func (cancelSource) Latest(ctx context.Context, iso, indicator string, year int) (worldbank.Observation, error) {
	return worldbank.Observation{}, ctx.Err()
}

func TestWrite(t *testing.T) {
	rows, _ := ReadRows(strings.NewReader(profilesCSV))
	b := NewBuilder(fixtureMeta(t), indicators(), rows, nil, 2014)
	dir := t.TempDir()

	stale := filepath.Join(dir, "en", "api", "countries-profile", "old.json")
	os.MkdirAll(filepath.Dir(stale), 0755)
	os.WriteFile(stale, []byte("{}"), 0644)

	n, err := b.Write(context.Background(), dir, []string{"en", "es"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 6 {
		t.Errorf("wrote %d, want 6", n)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale profile kept")
	}

	data, err := os.ReadFile(filepath.Join(dir, "en", "api", "countries-profile", "ar-a.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.ISO != "ar-a" || len(doc.Indicators) != 1 || doc.Indicators[0].Value != 3.1 {
		t.Errorf("AR-A doc = %+v", doc)
	}
}
