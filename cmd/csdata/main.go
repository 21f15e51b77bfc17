// Command csdata builds and inspects the Climatescope dataset.
//
// Usage:
//
//	csdata                  Show help
//	csdata build            Rank every edition and write all outputs
//	csdata years            List source editions and skipped files
//	csdata ranks            Print a ranking table from the last build
//	csdata browse           Interactive ranking browser
//	csdata profiles         Rewrite the country profile documents
//	csdata auxiliary        Rewrite the auxiliary chart documents
package main

import (
	"fmt"
	"os"
)

const usage = `csdata: Climatescope data pipeline

Usage:
  csdata <command> [flags]

Commands:
  build       Load every edition, rank, export CSV/JSON, save to the database
  years       List source editions and the files that were skipped
  ranks       Print ranks for one indicator and year from the database
  browse      Interactive ranking browser over the database
  profiles    Rewrite country profiles (World Bank lookups unless -offline)
  auxiliary   Rewrite auxiliary chart documents

Environment:
  CS_CONFIG          Config file (default: climatescope.json)
  CS_SOURCE_DIR      Source tree holding meta/, cs-core/, cs-auxiliary/, cs-profiles/
  CS_EXPORT_DIR      Output directory (default: data)
  CS_DATABASE        SQLite database (default: climatescope.db in the export dir)
  CS_LOG_LEVEL       debug, info, warn or error (default: info)
  WORLDBANK_API_URL  World Bank API base URL

Run 'csdata <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "build":
		runBuild()
	case "years":
		runYears()
	case "ranks":
		runRanks()
	case "browse":
		runBrowse()
	case "profiles":
		runProfiles()
	case "auxiliary":
		runAuxiliary()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "csdata: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
