package meta

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// row is one CSV record keyed by lower-cased header.
type row map[string]string

func readRows(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var rows []row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rw := make(row, len(header))
		for i, v := range rec {
			if i < len(header) {
				rw[header[i]] = strings.TrimSpace(v)
			}
		}
		rows = append(rows, rw)
	}
	return rows, nil
}

// names collects name / name_<lang> style columns.
func (r row) names(prefix string) Names {
	n := Names{}
	for k, v := range r {
		if v == "" {
			continue
		}
		switch {
		case k == prefix:
			n[""] = v
		case strings.HasPrefix(k, prefix+"_"):
			n[strings.TrimPrefix(k, prefix+"_")] = v
		}
	}
	return n
}

// LoadAdminAreas parses the admin-area table.
// Expected columns: iso, type, country, region, grid, name[_lang]...
func LoadAdminAreas(r io.Reader) ([]AdminArea, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, fmt.Errorf("admin areas: %w", err)
	}

	areas := make([]AdminArea, 0, len(rows))
	for i, rw := range rows {
		iso := ParseISO(rw["iso"])
		if iso == "" {
			return nil, fmt.Errorf("admin areas: row %d: missing iso", i+2)
		}
		typ := AreaType(strings.ToLower(rw["type"]))
		switch typ {
		case Country, State, Region:
		default:
			return nil, fmt.Errorf("admin areas: %s: unknown type %q", iso, rw["type"])
		}
		grid, err := parseGrid(rw["grid"])
		if err != nil {
			return nil, fmt.Errorf("admin areas: %s: %w", iso, err)
		}

		a := AdminArea{ISO: iso, Type: typ, Grid: grid, Name: rw.names("name")}
		switch typ {
		case State:
			a.ParentCountry = ParseISO(rw["country"])
		case Country:
			a.Region = ParseISO(rw["region"])
		}
		areas = append(areas, a)
	}
	return areas, nil
}

// LoadIndicators parses the indicator taxonomy.
// Expected columns: id, type, parent, grid, weight, name[_lang], description[_lang].
func LoadIndicators(r io.Reader) ([]Indicator, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", err)
	}

	inds := make([]Indicator, 0, len(rows))
	for i, rw := range rows {
		id, err := ParseIndicatorID(rw["id"])
		if err != nil {
			return nil, fmt.Errorf("indicators: row %d: %w", i+2, err)
		}

		var kind IndicatorKind
		switch strings.ToLower(rw["type"]) {
		case "score":
			kind = KindScore
		case "param", "parameter":
			kind = KindParam
		case "ind", "indicator":
			kind = KindIndicator
		default:
			return nil, fmt.Errorf("indicators: %d: unknown type %q", id, rw["type"])
		}

		grid, err := parseGrid(rw["grid"])
		if err != nil {
			return nil, fmt.Errorf("indicators: %d: %w", id, err)
		}

		ind := Indicator{
			ID:          id,
			Kind:        kind,
			Grid:        grid,
			Name:        rw.names("name"),
			Description: rw.names("description"),
		}
		if p := rw["parent"]; p != "" {
			pid, err := ParseIndicatorID(p)
			if err != nil {
				return nil, fmt.Errorf("indicators: %d: parent: %w", id, err)
			}
			ind.ParentID = &pid
		}
		if w := rw["weight"]; w != "" {
			f, err := strconv.ParseFloat(w, 64)
			if err != nil {
				return nil, fmt.Errorf("indicators: %d: weight %q: %w", id, w, err)
			}
			ind.Weight = &f
		}
		inds = append(inds, ind)
	}
	return inds, nil
}

// LoadFiles reads both tables from disk and builds validated Metadata.
func LoadFiles(areasPath, indexPath string) (*Metadata, error) {
	af, err := os.Open(areasPath)
	if err != nil {
		return nil, fmt.Errorf("open admin areas: %w", err)
	}
	defer af.Close()
	areas, err := LoadAdminAreas(af)
	if err != nil {
		return nil, err
	}

	xf, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("open indicator index: %w", err)
	}
	defer xf.Close()
	inds, err := LoadIndicators(xf)
	if err != nil {
		return nil, err
	}

	return New(areas, inds)
}
