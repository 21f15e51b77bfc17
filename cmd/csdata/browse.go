package main

import (
	"flag"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/ui/browse"
)

func runBrowse() {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	c := commonFlags(fs)
	lang := fs.String("lang", "en", "Language for names")
	fs.Parse(os.Args[1:])

	cfg := c.setup()
	defer logging.Close()

	st := openDB(cfg)
	defer st.Close()

	m, err := st.Metadata()
	if err != nil {
		fatal("failed to read metadata", "error", err)
	}
	years, err := st.Years()
	if err != nil {
		fatal("failed to read years", "error", err)
	}
	if len(years) == 0 {
		fatal("database holds no facts, run 'csdata build' first")
	}

	// Keep log output off the alternate screen
	logging.Init(os.Stderr, "error")

	p := tea.NewProgram(browse.New(m, st, years, *lang), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fatal("browser failed", "error", err)
	}
}
