package facts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoYears is returned when a source directory holds no usable edition.
var ErrNoYears = errors.New("no edition files found")

// Edition is one yearly source file. Files are named after the year of
// the edition: 2014.xlsx, 2015.csv.
type Edition struct {
	Year Year
	Path string
}

// Skipped records a file that was not accepted as an edition.
type Skipped struct {
	Name   string
	Reason string
}

var sourceExts = map[string]bool{".xlsx": true, ".csv": true}

// DiscoverEditions lists the edition files in dir, ordered by year.
// Files whose stem is not a YYYY year, or with an unsupported extension,
// are returned as skipped rather than failing the run. When a year has
// several files the first by name wins.
func DiscoverEditions(dir string) ([]Edition, []Skipped, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read source dir: %w", err)
	}

	var eds []Edition
	var skipped []Skipped
	seen := make(map[Year]string)

	// os.ReadDir sorts by name
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !sourceExts[ext] {
			skipped = append(skipped, Skipped{Name: name, Reason: "unsupported extension"})
			continue
		}
		y, err := ParseYear(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			skipped = append(skipped, Skipped{Name: name, Reason: err.Error()})
			continue
		}
		if prev, dup := seen[y]; dup {
			skipped = append(skipped, Skipped{Name: name, Reason: fmt.Sprintf("year %d already provided by %s", y, prev)})
			continue
		}
		seen[y] = name
		eds = append(eds, Edition{Year: y, Path: filepath.Join(dir, name)})
	}

	sort.Slice(eds, func(i, j int) bool { return eds[i].Year < eds[j].Year })
	if len(eds) == 0 {
		return nil, skipped, fmt.Errorf("%s: %w", dir, ErrNoYears)
	}
	return eds, skipped, nil
}
