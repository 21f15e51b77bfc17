package export

import (
	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/developmentseed/climatescope-data/internal/ranking"
)

// Exporter writes one ranked table in every configured language.
type Exporter struct {
	dir    string
	langs  []string
	meta   *meta.Metadata
	table  *facts.Table
	policy ranking.Policy
}

// New returns an Exporter writing under dir. The directory is expected to
// have been prepared with PrepareDir.
func New(dir string, langs []string, m *meta.Metadata, t *facts.Table, policy ranking.Policy) *Exporter {
	return &Exporter{dir: dir, langs: langs, meta: m, table: t, policy: policy}
}

// keysWhere returns the table rows accepted by keep, in key order.
func (e *Exporter) keysWhere(keep func(facts.Key) bool) []facts.Key {
	var out []facts.Key
	for _, k := range e.table.Keys() {
		if keep(k) {
			out = append(out, k)
		}
	}
	return out
}

func (e *Exporter) areaName(iso meta.ISO, lang string) string {
	if a, ok := e.meta.Area(iso); ok {
		return a.DisplayName(lang)
	}
	return string(iso)
}

func (e *Exporter) indicatorName(id meta.IndicatorID, lang string) string {
	if ind, ok := e.meta.Indicator(id); ok {
		return ind.DisplayName(lang)
	}
	return id.String()
}
