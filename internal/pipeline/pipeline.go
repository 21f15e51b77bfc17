// Package pipeline runs a full rebuild: load every edition, rank, export.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/developmentseed/climatescope-data/internal/auxiliary"
	"github.com/developmentseed/climatescope-data/internal/config"
	"github.com/developmentseed/climatescope-data/internal/export"
	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/developmentseed/climatescope-data/internal/profile"
	"github.com/developmentseed/climatescope-data/internal/ranking"
	"github.com/developmentseed/climatescope-data/internal/store"
	"github.com/developmentseed/climatescope-data/internal/worldbank"
)

// Options toggles the optional stages of a run.
type Options struct {
	SkipProfiles  bool
	SkipAuxiliary bool
	SkipDatabase  bool
	// Offline leaves blank profile cells blank instead of asking the
	// World Bank.
	Offline bool
	// WorldBank overrides the client built from the config.
	WorldBank profile.Source
}

// Result summarises a run.
type Result struct {
	BuildID     string
	Years       []facts.Year
	CurrentYear facts.Year
	Skipped     []facts.Skipped
	Rows        int // (iso, indicator) rows in the table
	Duplicates  int // repeated rows within a year file
	CSVFiles    int
	JSONFiles   int
	Profiles    int
	Charts      int
	Duration    time.Duration
}

// Sources is everything read from the source tree.
type Sources struct {
	Meta    *meta.Metadata
	Table   *facts.Table
	Skipped []facts.Skipped
	Dups    int
}

// LoadSources reads the metadata and every edition file. Files that fail
// to load are reported and skipped; only metadata errors and the absence
// of any usable year abort.
func LoadSources(cfg *config.Config) (*Sources, error) {
	log := logging.WithPrefix("pipeline")

	m, err := meta.LoadFiles(cfg.Paths.AdminAreas, cfg.Paths.Index)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	editions, skipped, err := facts.DiscoverEditions(cfg.Paths.CoreDir)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		log.Warn("skipping source file", "file", s.Name, "reason", s.Reason)
	}

	src := &Sources{Meta: m, Table: facts.NewTable(), Skipped: skipped}
	for _, ed := range editions {
		rows, err := loadEdition(cfg, ed)
		if err != nil {
			log.Warn("skipping edition", "year", ed.Year, "file", ed.Path, "error", err)
			src.Skipped = append(src.Skipped, facts.Skipped{Name: filepath.Base(ed.Path), Reason: err.Error()})
			continue
		}
		rows = knownFacts(m, rows, ed.Year)
		if dups := src.Table.AddYear(ed.Year, rows); dups > 0 {
			log.Warn("duplicate rows in edition, last one kept", "year", ed.Year, "count", dups)
			src.Dups += dups
		}
		log.Info("loaded edition", "year", ed.Year, "rows", len(rows))
	}

	if _, ok := src.Table.CurrentYear(); !ok {
		return nil, fmt.Errorf("%s: %w", cfg.Paths.CoreDir, facts.ErrNoYears)
	}
	return src, nil
}

func loadEdition(cfg *config.Config, ed facts.Edition) ([]facts.Fact, error) {
	loader, err := facts.LoaderFor(ed.Path, cfg.Core.Sheets, cfg.Core.Columns)
	if err != nil {
		return nil, err
	}
	return loader.Load(ed)
}

// knownFacts drops facts for areas missing from the admin-area table and
// for indicators missing from the index.
func knownFacts(m *meta.Metadata, rows []facts.Fact, y facts.Year) []facts.Fact {
	out := rows[:0]
	unknownAreas := map[meta.ISO]bool{}
	unknownIndicators := map[meta.IndicatorID]bool{}
	for _, f := range rows {
		if a, ok := m.Area(f.ISO); !ok || a.Type == meta.Region {
			unknownAreas[f.ISO] = true
			continue
		}
		if _, ok := m.Indicator(f.Indicator); !ok {
			unknownIndicators[f.Indicator] = true
			continue
		}
		out = append(out, f)
	}
	for iso := range unknownAreas {
		logging.Warn("skipping rows for unknown area", "year", y, "iso", iso)
	}
	for id := range unknownIndicators {
		logging.Warn("skipping rows for unknown indicator", "year", y, "id", id)
	}
	return out
}

// Run rebuilds every output from the sources named in cfg.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	start := time.Now()
	log := logging.WithPrefix("pipeline")

	src, err := LoadSources(cfg)
	if err != nil {
		return nil, err
	}

	policy := cfg.Ranking.Policy()
	rc, err := ranking.NewContext(src.Meta, src.Table, policy)
	if err != nil {
		return nil, err
	}
	ranked := ranking.ComputeAllScopes(rc, src.Table)
	log.Info("ranked", "years", len(rc.Years), "current", rc.CurrentYear, "rows", ranked.Len())

	res := &Result{
		BuildID:     uuid.NewString(),
		Years:       rc.Years,
		CurrentYear: rc.CurrentYear,
		Skipped:     src.Skipped,
		Rows:        ranked.Len(),
		Duplicates:  src.Dups,
	}

	if err := export.PrepareDir(cfg.Paths.ExportDir, export.OutputPolicy(cfg.Export.OutputPolicy), cfg.Langs); err != nil {
		return nil, err
	}

	ex := export.New(cfg.Paths.ExportDir, cfg.Langs, src.Meta, ranked, policy)
	if res.CSVFiles, err = ex.WriteCSV(cfg.Export.PrecisionFor(config.TargetCSV)); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	if res.JSONFiles, err = ex.WriteJSON(cfg.Export.PrecisionFor(config.TargetJSON)); err != nil {
		return nil, fmt.Errorf("write json: %w", err)
	}

	if !opts.SkipProfiles {
		if res.Profiles, err = WriteProfiles(ctx, cfg, src.Meta, rc.CurrentYear, opts); err != nil {
			return nil, fmt.Errorf("write profiles: %w", err)
		}
	}
	if !opts.SkipAuxiliary {
		if res.Charts, err = auxiliary.Write(cfg.Auxiliary, cfg.Paths.AuxiliaryDir, cfg.Paths.ExportDir, cfg.Langs, src.Meta); err != nil {
			return nil, fmt.Errorf("write auxiliary: %w", err)
		}
	}

	if !opts.SkipDatabase {
		if err := saveBuild(cfg, res, src.Meta, ranked); err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	log.Info("build complete",
		"id", res.BuildID,
		"years", len(res.Years),
		"skipped", len(res.Skipped),
		"csv", res.CSVFiles,
		"json", res.JSONFiles,
		"profiles", res.Profiles,
		"charts", res.Charts,
		"took", res.Duration.Round(time.Millisecond),
	)
	return res, nil
}

// WriteProfiles writes the profile documents. year is used for World Bank
// lookups unless the config pins one.
func WriteProfiles(ctx context.Context, cfg *config.Config, m *meta.Metadata, year facts.Year, opts Options) (int, error) {
	rows, err := profile.ReadFile(cfg.Paths.Profiles)
	if os.IsNotExist(err) {
		logging.Warn("no profiles file, skipping profiles", "file", cfg.Paths.Profiles)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var source profile.Source
	switch {
	case opts.Offline:
	case opts.WorldBank != nil:
		source = opts.WorldBank
	default:
		source = worldbank.New(worldbank.Options{
			BaseURL:           cfg.WorldBank.BaseURL,
			RequestsPerSecond: cfg.WorldBank.RequestsPerSecond,
			Timeout:           time.Duration(cfg.WorldBank.TimeoutSeconds) * time.Second,
			MaxFallbackYears:  cfg.WorldBank.MaxFallbackYears,
		})
	}

	if cfg.Profile.Year > 0 {
		year = facts.Year(cfg.Profile.Year)
	}
	b := profile.NewBuilder(m, cfg.Profile.Indicators, rows, source, int(year))
	return b.Write(ctx, cfg.Paths.ExportDir, cfg.Langs)
}

func saveBuild(cfg *config.Config, res *Result, m *meta.Metadata, t *facts.Table) error {
	if cfg.Paths.Database != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Paths.Database), 0755); err != nil {
			return err
		}
	}
	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	precision := cfg.Export.PrecisionFor(config.TargetDB)
	round := func(v facts.Value) facts.Value { return export.RoundValue(v, precision) }

	b := store.Build{
		ID:          res.BuildID,
		Years:       res.Years,
		CurrentYear: res.CurrentYear,
		Skipped:     len(res.Skipped),
	}
	if err := st.SaveBuild(b, m, t, round); err != nil {
		return fmt.Errorf("save build: %w", err)
	}
	return nil
}
