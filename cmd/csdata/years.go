package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/store"
)

func runYears() {
	fs := flag.NewFlagSet("years", flag.ExitOnError)
	c := commonFlags(fs)
	fs.Parse(os.Args[1:])

	cfg := c.setup()
	defer logging.Close()

	eds, skipped, err := facts.DiscoverEditions(cfg.Paths.CoreDir)
	if err != nil && !errors.Is(err, facts.ErrNoYears) {
		fatal("failed to read source editions", "dir", cfg.Paths.CoreDir, "error", err)
	}

	fmt.Println(titleStyle.Render("Editions in " + cfg.Paths.CoreDir))
	if len(eds) == 0 {
		fmt.Println(mutedStyle.Render("none"))
	} else {
		rows := make([][]string, 0, len(eds))
		for i, ed := range eds {
			role := "historic"
			if i == len(eds)-1 {
				role = "current"
			}
			rows = append(rows, []string{ed.Year.String(), filepath.Base(ed.Path), role})
		}
		printTable([]string{"year", "file", ""}, rows)
	}

	if len(skipped) > 0 {
		fmt.Println(titleStyle.Render("Skipped"))
		rows := make([][]string, 0, len(skipped))
		for _, s := range skipped {
			rows = append(rows, []string{s.Name, s.Reason})
		}
		printTable([]string{"file", "reason"}, rows)
	}

	if _, err := os.Stat(cfg.Paths.Database); err != nil {
		return
	}
	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		fatal("failed to open database", "file", cfg.Paths.Database, "error", err)
	}
	defer st.Close()

	b, err := st.LatestBuild()
	if errors.Is(err, store.ErrNoBuild) {
		return
	}
	if err != nil {
		fatal("failed to read last build", "error", err)
	}
	years := make([]string, len(b.Years))
	for i, y := range b.Years {
		years[i] = y.String()
	}
	fmt.Println(titleStyle.Render("Last build"))
	printTable([]string{"", ""}, [][]string{
		{"id", b.ID},
		{"created", b.Created.Local().Format(time.DateTime)},
		{"years", strings.Join(years, ", ")},
		{"current", b.CurrentYear.String()},
		{"facts", fmt.Sprint(b.Facts)},
		{"skipped files", fmt.Sprint(b.Skipped)},
	})
}
