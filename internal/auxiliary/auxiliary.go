// Package auxiliary writes the chart documents shown next to the core
// index: installed capacity, clean energy investments, carbon offsets.
package auxiliary

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/developmentseed/climatescope-data/internal/config"
	"github.com/developmentseed/climatescope-data/internal/export"
	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/meta"
)

// countrySeries is the series id labelled with the area itself.
const countrySeries = "country"

// Doc is {lang}/api/auxiliary/{chart}/{iso}.json.
type Doc struct {
	Name string  `json:"name"`
	ISO  string  `json:"iso"`
	Meta Meta    `json:"meta"`
	Data []Serie `json:"data"`
}

// Meta carries the chart labels.
type Meta struct {
	Title  string `json:"title"`
	LabelX string `json:"label-x"`
	LabelY string `json:"label-y"`
}

// Serie is one line of a chart.
type Serie struct {
	Name   string  `json:"name"`
	ID     string  `json:"id"`
	Values []Point `json:"values"`
}

// Point is a value of a serie. Cells that are blank or not numeric are
// null, like in the core data.
type Point struct {
	Year  int         `json:"year"`
	Value facts.Value `json:"value"`
}

// Source holds the rows of one chart file keyed by iso and sub indicator.
type Source map[meta.ISO]map[string]map[string]string

// ReadSource parses a chart CSV with columns iso, sub_indicator and one
// column per year.
func ReadSource(r io.Reader) (Source, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	src := Source{}
	if len(records) == 0 {
		return src, nil
	}

	header := make([]string, len(records[0]))
	isoCol, subCol := -1, -1
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch strings.ToLower(header[i]) {
		case "iso":
			isoCol = i
		case "sub_indicator":
			subCol = i
		}
	}
	if isoCol < 0 || subCol < 0 {
		return nil, fmt.Errorf("missing iso or sub_indicator column")
	}

	for _, rec := range records[1:] {
		if isoCol >= len(rec) || subCol >= len(rec) {
			continue
		}
		iso := meta.ParseISO(rec[isoCol])
		if iso == "" {
			continue
		}
		cells := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				cells[h] = strings.TrimSpace(rec[i])
			}
		}
		if src[iso] == nil {
			src[iso] = make(map[string]map[string]string)
		}
		src[iso][strings.TrimSpace(rec[subCol])] = cells
	}
	return src, nil
}

// SourcePath is the file a chart is read from.
func SourcePath(dir string, edition int, chart config.Chart) string {
	return filepath.Join(dir, fmt.Sprintf("%d-%d.csv", edition, chart.ID))
}

// BuildDoc lays out chart for one area in lang.
func BuildDoc(chart config.Chart, src Source, area meta.AdminArea, lang string) Doc {
	doc := Doc{
		Name: area.DisplayName(lang),
		ISO:  area.ISO.Lower(),
		Meta: Meta{
			Title:  chart.Title.In(lang),
			LabelX: chart.LabelX.In(lang),
			LabelY: chart.LabelY.In(lang),
		},
		Data: []Serie{},
	}

	for _, s := range chart.Series {
		serie := Serie{ID: s.ID, Name: s.Name.In(lang), Values: []Point{}}
		if s.ID == countrySeries {
			serie.Name = string(area.ISO)
		}
		if row, ok := src[area.ISO][strings.TrimSpace(s.SourceID)]; ok {
			for _, y := range chart.Years {
				v, err := facts.ParseValue(row[strconv.Itoa(y)])
				if err != nil {
					logging.Debug("non-numeric auxiliary value", "chart", chart.ID, "iso", area.ISO, "year", y)
					v = facts.Null
				}
				serie.Values = append(serie.Values, Point{Year: y, Value: v})
			}
		}
		doc.Data = append(doc.Data, serie)
	}
	return doc
}

// Write produces every configured chart for every country and state. A
// chart whose source file is missing or malformed is reported and skipped.
// It returns the number of documents written.
func Write(cfg config.AuxiliaryConfig, srcDir, outDir string, langs []string, m *meta.Metadata) (int, error) {
	written := 0
	for _, chart := range cfg.Charts {
		path := SourcePath(srcDir, cfg.Edition, chart)
		f, err := os.Open(path)
		if err != nil {
			logging.Warn("skipping auxiliary chart", "chart", chart.ID, "file", path, "error", err)
			continue
		}
		src, err := ReadSource(f)
		f.Close()
		if err != nil {
			logging.Warn("skipping auxiliary chart", "chart", chart.ID, "file", path, "error", err)
			continue
		}

		for _, iso := range m.AdminAreas() {
			area, _ := m.Area(iso)
			for _, lang := range langs {
				fn := filepath.Join(outDir, lang, "api", "auxiliary", chart.Export, iso.Lower()+".json")
				if err := export.WriteJSONFile(fn, BuildDoc(chart, src, area, lang)); err != nil {
					return written, err
				}
				written++
			}
		}
	}
	return written, nil
}
