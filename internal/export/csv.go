package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/meta"
)

// WriteCSV writes the download files and returns how many were written:
//
//	cs-core.csv                                      id, iso, one column per year
//	{lang}/download/climatescope-main.csv            current year, iso × score and params
//	{lang}/download/regions/climatescope-{R}.csv     the main file restricted to region R
//	{lang}/download/admin-areas/climatescope-{A}.csv every indicator of area A × years
//	{lang}/download/parameters/climatescope-{P}.csv  every area × years for parameter P
func (e *Exporter) WriteCSV(precision int) (int, error) {
	years := e.table.Years()
	cur, ok := e.table.CurrentYear()
	if !ok {
		return 0, facts.ErrNoYears
	}
	written := 0

	// Language neutral, one row per (iso, indicator)
	header := []string{"id", "iso"}
	for _, y := range years {
		header = append(header, y.String())
	}
	var rows [][]string
	for _, k := range e.table.Keys() {
		row := []string{k.Indicator.String(), string(k.ISO)}
		rows = append(rows, append(row, e.yearCells(k, years, precision)...))
	}
	if err := writeCSVFile(filepath.Join(e.dir, "cs-core.csv"), header, rows); err != nil {
		return written, err
	}
	written++

	headline := e.meta.Headline()
	for _, lang := range e.langs {
		base := filepath.Join(e.dir, lang, "download")

		mainHeader := []string{"iso", "name"}
		for _, id := range headline {
			mainHeader = append(mainHeader, id.String())
		}

		mainRows := e.pivotRows(cur, e.meta.Countries(), headline, lang, precision)
		if err := writeCSVFile(filepath.Join(base, "climatescope-main.csv"), mainHeader, mainRows); err != nil {
			return written, err
		}
		written++

		for _, region := range e.meta.Regions() {
			rows := e.pivotRows(cur, e.meta.CountriesIn(region), headline, lang, precision)
			fn := filepath.Join(base, "regions", "climatescope-"+string(region)+".csv")
			if err := writeCSVFile(fn, mainHeader, rows); err != nil {
				return written, err
			}
			written++
		}

		areaHeader := []string{"id", "name"}
		for _, y := range years {
			areaHeader = append(areaHeader, y.String())
		}
		for _, iso := range e.meta.AdminAreas() {
			keys := e.keysWhere(func(k facts.Key) bool { return k.ISO == iso })
			if len(keys) == 0 {
				logging.Debug("no data for admin area", "iso", iso)
				continue
			}
			var rows [][]string
			for _, k := range keys {
				row := []string{k.Indicator.String(), e.indicatorName(k.Indicator, lang)}
				rows = append(rows, append(row, e.yearCells(k, years, precision)...))
			}
			fn := filepath.Join(base, "admin-areas", "climatescope-"+string(iso)+".csv")
			if err := writeCSVFile(fn, areaHeader, rows); err != nil {
				return written, err
			}
			written++
		}

		paramHeader := []string{"iso", "name"}
		for _, y := range years {
			paramHeader = append(paramHeader, y.String())
		}
		for _, id := range e.meta.Params() {
			keys := e.keysWhere(func(k facts.Key) bool { return k.Indicator == id })
			var rows [][]string
			for _, k := range keys {
				row := []string{string(k.ISO), e.areaName(k.ISO, lang)}
				rows = append(rows, append(row, e.yearCells(k, years, precision)...))
			}
			fn := filepath.Join(base, "parameters", "climatescope-"+id.String()+".csv")
			if err := writeCSVFile(fn, paramHeader, rows); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func (e *Exporter) yearCells(k facts.Key, years []facts.Year, precision int) []string {
	cells := make([]string, len(years))
	for i, y := range years {
		cells[i] = FormatValue(e.table.Value(k.ISO, k.Indicator, y), precision)
	}
	return cells
}

func (e *Exporter) pivotRows(y facts.Year, isos []meta.ISO, ids []meta.IndicatorID, lang string, precision int) [][]string {
	var rows [][]string
	for _, p := range e.table.Pivot(y, isos, ids) {
		row := []string{string(p.ISO), e.areaName(p.ISO, lang)}
		for _, v := range p.Values {
			row = append(row, FormatValue(v, precision))
		}
		rows = append(rows, row)
	}
	return rows
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
