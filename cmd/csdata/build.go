package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/developmentseed/climatescope-data/internal/config"
	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/pipeline"
)

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	c := commonFlags(fs)
	offline := fs.Bool("offline", false, "Skip World Bank lookups for blank profile cells")
	skipProfiles := fs.Bool("skip-profiles", false, "Do not write country profiles")
	skipAux := fs.Bool("skip-auxiliary", false, "Do not write auxiliary charts")
	noDB := fs.Bool("no-db", false, "Do not save the build to the database")
	policy := fs.String("policy", "", "Existing output: refuse or wipe (overrides config)")
	fs.Parse(os.Args[1:])

	cfg := c.setup()
	defer logging.Close()

	if *policy != "" {
		cfg.Export.OutputPolicy = *policy
		if err := cfg.Validate(); err != nil {
			fatal("invalid flags", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, cfg, pipeline.Options{
		SkipProfiles:  *skipProfiles,
		SkipAuxiliary: *skipAux,
		SkipDatabase:  *noDB,
		Offline:       *offline,
	})
	if err != nil {
		fatal("build failed", "error", err)
	}

	printBuild(cfg, res)
}

func printBuild(cfg *config.Config, res *pipeline.Result) {
	fmt.Println(titleStyle.Render("Build " + res.BuildID))
	rows := [][]string{
		{"years", fmt.Sprintf("%d (current %s)", len(res.Years), res.CurrentYear)},
		{"rows", strconv.Itoa(res.Rows)},
		{"duplicates", strconv.Itoa(res.Duplicates)},
		{"csv files", strconv.Itoa(res.CSVFiles)},
		{"json files", strconv.Itoa(res.JSONFiles)},
		{"profiles", strconv.Itoa(res.Profiles)},
		{"charts", strconv.Itoa(res.Charts)},
		{"output", cfg.Paths.ExportDir},
		{"took", res.Duration.Round(time.Millisecond).String()},
	}
	printTable([]string{"", ""}, rows)

	if len(res.Skipped) > 0 {
		fmt.Println(titleStyle.Render("Skipped"))
		skipped := make([][]string, 0, len(res.Skipped))
		for _, s := range res.Skipped {
			skipped = append(skipped, []string{s.Name, s.Reason})
		}
		printTable([]string{"file", "reason"}, skipped)
	}
}
