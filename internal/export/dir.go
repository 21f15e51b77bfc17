// Package export writes the ranked table out as downloadable CSV files and
// the JSON documents of the site's internal API.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/developmentseed/climatescope-data/internal/facts"
)

// ErrOutputExists is returned by PrepareDir under the Refuse policy.
var ErrOutputExists = errors.New("output directory already exists")

// OutputPolicy says what to do with an existing export directory.
type OutputPolicy string

const (
	Refuse OutputPolicy = "refuse"
	Wipe   OutputPolicy = "wipe"
)

// Folders created under every language.
var langDirs = []string{
	"download/regions",
	"download/admin-areas",
	"download/parameters",
	"api/areas",
	"api/regions",
}

// PrepareDir readies dir for a full rebuild. An existing directory is
// either refused or removed, never merged into.
func PrepareDir(dir string, policy OutputPolicy, langs []string) error {
	clean := filepath.Clean(dir)
	if clean == "." || clean == string(filepath.Separator) {
		return fmt.Errorf("refusing to use %q as export directory", dir)
	}

	if _, err := os.Stat(clean); err == nil {
		switch policy {
		case Refuse:
			return fmt.Errorf("%s: %w", clean, ErrOutputExists)
		case Wipe:
			if err := os.RemoveAll(clean); err != nil {
				return fmt.Errorf("wipe %s: %w", clean, err)
			}
		default:
			return fmt.Errorf("unknown output policy %q", policy)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	for _, lang := range langs {
		for _, d := range langDirs {
			if err := os.MkdirAll(filepath.Join(clean, lang, d), 0755); err != nil {
				return err
			}
		}
	}
	return nil
}

// Round rounds v half away from zero to precision decimal places.
// A negative precision leaves v untouched.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	return decimal.NewFromFloat(v).Round(int32(precision)).InexactFloat64()
}

// RoundValue is Round for nullable values.
func RoundValue(v facts.Value, precision int) facts.Value {
	if !v.Valid {
		return v
	}
	return facts.Some(Round(v.Float64, precision))
}

// FormatValue renders v for a CSV cell: empty when null, trailing zeros
// dropped.
func FormatValue(v facts.Value, precision int) string {
	if !v.Valid {
		return ""
	}
	if precision < 0 {
		return strconv.FormatFloat(v.Float64, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v.Float64).Round(int32(precision)).String()
}

// WriteJSONFile encodes v to path, creating parent folders.
func WriteJSONFile(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
