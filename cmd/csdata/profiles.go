package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/developmentseed/climatescope-data/internal/auxiliary"
	"github.com/developmentseed/climatescope-data/internal/config"
	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/developmentseed/climatescope-data/internal/pipeline"
	"github.com/developmentseed/climatescope-data/internal/store"
)

func runProfiles() {
	fs := flag.NewFlagSet("profiles", flag.ExitOnError)
	c := commonFlags(fs)
	offline := fs.Bool("offline", false, "Leave blank cells blank instead of asking the World Bank")
	year := fs.Int("year", 0, "Year to look up (default: config, then the last build)")
	fs.Parse(os.Args[1:])

	cfg := c.setup()
	defer logging.Close()

	m := loadMeta(cfg)

	y := facts.Year(*year)
	if y == 0 && cfg.Profile.Year == 0 {
		y = lastBuildYear(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := pipeline.WriteProfiles(ctx, cfg, m, y, pipeline.Options{Offline: *offline})
	if err != nil {
		fatal("failed to write profiles", "error", err)
	}
	fmt.Printf("Wrote %d profiles to %s\n", n, cfg.Paths.ExportDir)
}

func runAuxiliary() {
	fs := flag.NewFlagSet("auxiliary", flag.ExitOnError)
	c := commonFlags(fs)
	edition := fs.Int("edition", 0, "Source edition (default: config)")
	fs.Parse(os.Args[1:])

	cfg := c.setup()
	defer logging.Close()

	if *edition > 0 {
		cfg.Auxiliary.Edition = *edition
	}
	m := loadMeta(cfg)

	n, err := auxiliary.Write(cfg.Auxiliary, cfg.Paths.AuxiliaryDir, cfg.Paths.ExportDir, cfg.Langs, m)
	if err != nil {
		fatal("failed to write auxiliary charts", "error", err)
	}
	fmt.Printf("Wrote %d chart documents to %s\n", n, cfg.Paths.ExportDir)
}

func loadMeta(cfg *config.Config) *meta.Metadata {
	m, err := meta.LoadFiles(cfg.Paths.AdminAreas, cfg.Paths.Index)
	if err != nil {
		fatal("failed to load metadata", "error", err)
	}
	return m
}

// lastBuildYear is the current year of the last build, or exits.
func lastBuildYear(cfg *config.Config) facts.Year {
	st := openDB(cfg)
	defer st.Close()
	b, err := st.LatestBuild()
	if errors.Is(err, store.ErrNoBuild) {
		fatal("no year given and no build in database")
	}
	if err != nil {
		fatal("failed to read last build", "error", err)
	}
	return b.CurrentYear
}
