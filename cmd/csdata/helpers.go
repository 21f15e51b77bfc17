package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/developmentseed/climatescope-data/internal/config"
	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/store"
)

// common are the flags every command takes.
type common struct {
	config  *string
	verbose *bool
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		config:  fs.String("config", envOrDefault("CS_CONFIG", config.DefaultPath), "Config file"),
		verbose: fs.Bool("v", false, "Debug logging"),
	}
}

// setup initializes logging and loads the config, or exits.
func (c common) setup() *config.Config {
	level := envOrDefault("CS_LOG_LEVEL", "info")
	if *c.verbose {
		level = "debug"
	}
	logging.Init(os.Stderr, level)

	cfg, err := config.Load(*c.config)
	if err != nil {
		fatal("failed to load config", "file", *c.config, "error", err)
	}
	if cfg.Paths.LogDir != "" {
		if err := logging.InitFile(os.Stderr, level, cfg.Paths.LogDir); err != nil {
			logging.Warn("log file disabled", "error", err)
		}
	}
	logging.Debug("config loaded", "file", cfg.Path(), "export", cfg.Paths.ExportDir, "db", cfg.Paths.Database)
	return cfg
}

// openDB opens the store or exits.
func openDB(cfg *config.Config) *store.Store {
	if _, err := os.Stat(cfg.Paths.Database); os.IsNotExist(err) {
		fatal("no database, run 'csdata build' first", "file", cfg.Paths.Database)
	}
	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		fatal("failed to open database", "file", cfg.Paths.Database, "error", err)
	}
	return st
}

// fatal logs and exits 1.
func fatal(msg string, keyvals ...interface{}) {
	if logging.Logger == nil {
		logging.Init(os.Stderr, "info")
	}
	logging.Error(msg, keyvals...)
	logging.Close()
	os.Exit(1)
}

// envOrDefault returns the environment variable value or a fallback.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// printTable renders rows under headers. Columns listed in right are
// right aligned.
func printTable(headers []string, rows [][]string, right ...int) {
	align := make(map[int]bool, len(right))
	for _, c := range right {
		align[c] = true
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if align[col] {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})
	fmt.Println(t)
}
