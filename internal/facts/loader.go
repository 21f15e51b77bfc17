package facts

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/xuri/excelize/v2"
)

// Columns names the header cells holding the indicator id, the area iso
// and the value.
type Columns struct {
	ID    string `json:"id"`
	ISO   string `json:"iso"`
	Value string `json:"value"`
}

// DefaultColumns matches the edition workbooks.
var DefaultColumns = Columns{ID: "id", ISO: "iso", Value: "score"}

// DefaultSheets are the workbook sheets holding score, parameter and
// indicator rows.
var DefaultSheets = []string{"score", "param", "ind"}

// Loader reads the facts of one edition.
type Loader interface {
	Load(ed Edition) ([]Fact, error)
}

// LoaderFor picks a loader by file extension.
func LoaderFor(path string, sheets []string, cols Columns) (Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return &XLSXLoader{Sheets: sheets, Columns: cols}, nil
	case ".csv":
		return &CSVLoader{Columns: cols}, nil
	}
	return nil, fmt.Errorf("no loader for %s", filepath.Base(path))
}

// XLSXLoader reads an edition workbook, appending the rows of each sheet.
type XLSXLoader struct {
	Sheets  []string
	Columns Columns
}

func (l *XLSXLoader) Load(ed Edition) ([]Fact, error) {
	f, err := excelize.OpenFile(ed.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := l.Sheets
	if len(sheets) == 0 {
		sheets = DefaultSheets
	}

	var out []Fact
	for _, sheet := range sheets {
		// stored values, not the number-formatted display text
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("sheet %q: empty", sheet)
		}
		facts, err := parseRows(rows[0], rows[1:], l.Columns, fmt.Sprintf("%s[%s]", filepath.Base(ed.Path), sheet))
		if err != nil {
			return nil, err
		}
		out = append(out, facts...)
	}
	return out, nil
}

// CSVLoader reads an edition exported as a single CSV.
type CSVLoader struct {
	Columns Columns
}

func (l *CSVLoader) Load(ed Edition) ([]Fact, error) {
	f, err := os.Open(ed.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return l.read(f, filepath.Base(ed.Path))
}

func (l *CSVLoader) read(r io.Reader, source string) ([]Fact, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty", source)
	}
	return parseRows(records[0], records[1:], l.Columns, source)
}

// columnIndex finds the position of each wanted column in the header.
func columnIndex(header []string, cols Columns) (id, iso, val int, err error) {
	if cols == (Columns{}) {
		cols = DefaultColumns
	}
	find := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}
	id, iso, val = find(cols.ID), find(cols.ISO), find(cols.Value)
	var missing []string
	if id < 0 {
		missing = append(missing, cols.ID)
	}
	if iso < 0 {
		missing = append(missing, cols.ISO)
	}
	if val < 0 {
		missing = append(missing, cols.Value)
	}
	if len(missing) > 0 {
		return 0, 0, 0, fmt.Errorf("missing columns %s", strings.Join(missing, ", "))
	}
	return id, iso, val, nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// parseRows turns sheet rows into facts. Rows without an iso are trailing
// blanks and ignored; rows with a bad id or value are reported and
// skipped or nulled, never fatal.
func parseRows(header []string, rows [][]string, cols Columns, source string) ([]Fact, error) {
	idIdx, isoIdx, valIdx, err := columnIndex(header, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	out := make([]Fact, 0, len(rows))
	for n, r := range rows {
		iso := meta.ParseISO(cellAt(r, isoIdx))
		if iso == "" {
			continue
		}
		id, err := meta.ParseIndicatorID(cellAt(r, idIdx))
		if err != nil {
			logging.Warn("skipping row", "source", source, "row", n+2, "err", err)
			continue
		}
		v, err := ParseValue(cellAt(r, valIdx))
		if err != nil {
			logging.Warn("unreadable value, treating as null", "source", source, "row", n+2, "err", err)
			v = Null
		}
		out = append(out, Fact{ISO: iso, Indicator: id, Value: v})
	}
	return out, nil
}
