package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/developmentseed/climatescope-data/internal/config"
	"github.com/developmentseed/climatescope-data/internal/export"
	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/logging"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/developmentseed/climatescope-data/internal/store"
)

func runRanks() {
	fs := flag.NewFlagSet("ranks", flag.ExitOnError)
	c := commonFlags(fs)
	year := fs.Int("year", 0, "Year (default: current year of the last build)")
	indicator := fs.Int("indicator", -1, "Indicator id (default: the first score)")
	scopeFlag := fs.String("scope", "global", "global, regional or in-country")
	region := fs.String("region", "", "Only countries of this region (regional scope)")
	country := fs.String("country", "", "Only states of this country (in-country scope)")
	lang := fs.String("lang", "en", "Language for names")
	top := fs.Int("top", 0, "Show only the first n areas")
	fs.Parse(os.Args[1:])

	cfg := c.setup()
	defer logging.Close()

	scope, err := facts.ParseScope(*scopeFlag)
	if err != nil {
		fatal("invalid scope", "scope", *scopeFlag, "error", err)
	}

	st := openDB(cfg)
	defer st.Close()

	m, err := st.Metadata()
	if err != nil {
		fatal("failed to read metadata", "error", err)
	}

	y := facts.Year(*year)
	if y == 0 {
		b, err := st.LatestBuild()
		if errors.Is(err, store.ErrNoBuild) {
			fatal("no build in database, run 'csdata build' first")
		}
		if err != nil {
			fatal("failed to read last build", "error", err)
		}
		y = b.CurrentYear
	}

	id := meta.IndicatorID(*indicator)
	if *indicator < 0 {
		scores := m.Scores()
		if len(scores) == 0 {
			fatal("no score indicator in database")
		}
		id = scores[0]
	}
	ind, ok := m.Indicator(id)
	if !ok {
		fatal("unknown indicator", "id", id)
	}

	f := facts.Filter{Indicators: []meta.IndicatorID{id}, Years: []facts.Year{y}, Scope: scope}
	switch {
	case *region != "":
		f.ISOs = m.CountriesIn(meta.ParseISO(*region))
		if len(f.ISOs) == 0 {
			fatal("region has no countries", "region", *region)
		}
	case *country != "":
		f.ISOs = m.StatesOf(meta.ParseISO(*country))
		if len(f.ISOs) == 0 {
			fatal("country has no states", "country", *country)
		}
	}

	recs, err := st.Query(f)
	if err != nil {
		fatal("query failed", "error", err)
	}
	sortByRank(recs, scope)
	if *top > 0 && len(recs) > *top {
		recs = recs[:*top]
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s  %s  %s", ind.DisplayName(*lang), y, scope)))
	if len(recs) == 0 {
		fmt.Println(mutedStyle.Render("no ranked areas"))
		return
	}

	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		a, _ := m.Area(r.ISO)
		rows = append(rows, []string{
			rankLabel(r.Ranks[scope]),
			string(r.ISO),
			a.DisplayName(*lang),
			group(a, scope),
			export.FormatValue(r.Value, cfg.Export.PrecisionFor(config.TargetJSON)),
		})
	}
	printTable([]string{"rank", "iso", "name", "group", "value"}, rows, 0, 4)
}

// sortByRank orders ranked areas first, then areas excluded from the
// scope, each by iso.
func sortByRank(recs []facts.Record, scope facts.Scope) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].Ranks[scope], recs[j].Ranks[scope]
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid && a.N != b.N {
			return a.N < b.N
		}
		return recs[i].ISO < recs[j].ISO
	})
}

func rankLabel(r facts.Rank) string {
	if !r.Valid {
		return "-"
	}
	return strconv.Itoa(r.N)
}

// group names what the area was ranked against.
func group(a meta.AdminArea, scope facts.Scope) string {
	switch scope {
	case facts.Regional:
		return string(a.Region)
	case facts.InCountry:
		return string(a.ParentCountry)
	}
	return "world"
}
