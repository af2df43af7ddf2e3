package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/ledger-analytics/internal/app"
	"github.com/dvloznov/ledger-analytics/internal/config"
	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/logger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.NewWithLevel(os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	commands := map[string]func(zerolog.Logger, []string){
		"load":      runLoad,
		"entities":  runEntities,
		"periods":   runPeriods,
		"accounts":  runAccounts,
		"compare":   runCompare,
		"ratios":    runRatios,
		"share":     runShare,
		"series":    runSeries,
		"alerts":    runAlerts,
		"evolution": runEvolution,
		"runs":      runRuns,
	}

	switch cmd := os.Args[1]; cmd {
	case "help", "-h", "--help":
		printUsage()
	default:
		run, ok := commands[cmd]
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
			printUsage()
			os.Exit(1)
		}
		run(log, os.Args[2:])
	}
}

func printUsage() {
	fmt.Println("Ledger Analytics CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  load       Run a full load and print the coverage report")
	fmt.Println("  entities   List reporting entities")
	fmt.Println("  periods    List loaded periods")
	fmt.Println("  accounts   List accounts with their classification")
	fmt.Println("  compare    Period-over-period variance table")
	fmt.Println("  ratios     Liquidity, solvency and loans-to-assets")
	fmt.Println("  share      Market share at one period")
	fmt.Println("  series     Market share over a period range")
	fmt.Println("  alerts     Risk alerts for one period")
	fmt.Println("  evolution  Net balance history of entities and accounts")
	fmt.Println("  runs       Recent load runs (requires BigQuery)")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// common holds the flags every data command accepts.
type common struct {
	manifest string
	sources  string
	cached   bool
}

func addCommon(fs *flag.FlagSet) *common {
	c := &common{}
	fs.StringVar(&c.manifest, "manifest", "", "YAML manifest of extracts (or set LEDGER_MANIFEST env)")
	fs.StringVar(&c.sources, "sources", "", "Comma-separated extract URIs (or set LEDGER_SOURCES env)")
	fs.BoolVar(&c.cached, "cached", false, "Use the SNAPSHOT_CACHE snapshot instead of loading")
	return c
}

func (c *common) config(log zerolog.Logger) *config.Config {
	cfg, err := config.LoadWith(map[string]string{
		"LEDGER_MANIFEST": c.manifest,
		"LEDGER_SOURCES":  c.sources,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}

// open builds the application from flags and environment.
func (c *common) open(ctx context.Context, log zerolog.Logger) *app.App {
	a, err := app.New(ctx, c.config(log))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	return a
}

// session is a loaded snapshot with the settings it was built under.
type session struct {
	Snap   *store.Snapshot
	Config *config.Config
	Table  *taxonomy.Table
}

// load runs a load, or restores from the cache with -cached, and returns
// the resulting snapshot.
func (c *common) load(ctx context.Context, log zerolog.Logger) *session {
	a := c.open(ctx, log)
	defer a.Close()
	s := &session{Config: a.Config, Table: a.Table}

	if c.cached {
		if err := a.Loader.Restore(ctx, a.Holder); err != nil {
			log.Fatal().Err(err).Msg("Failed to restore cached snapshot")
		}
		s.Snap = a.Holder.Current()
		return s
	}

	state, err := a.Loader.Refresh(ctx, a.Holder)
	if err != nil {
		if snap := a.Holder.Current(); snap != nil {
			log.Warn().Err(err).Msg("Load failed, using cached snapshot")
			s.Snap = snap
			return s
		}
		log.Fatal().Err(err).Msg("Load failed")
	}
	for _, st := range state.Coverage {
		if !st.OK {
			log.Warn().Str("source", st.Name).Str("error", st.Error).Msg("Source not loaded")
		}
	}
	s.Snap = state.Snapshot
	return s
}

func background(log zerolog.Logger) context.Context {
	return logger.WithContext(context.Background(), log)
}

func parsePeriod(log zerolog.Logger, name, v string) ledger.Period {
	if v == "" {
		return ledger.Period{}
	}
	p, err := ledger.ParsePeriod(v)
	if err != nil {
		log.Fatal().Err(err).Str("flag", name).Msg("Invalid period")
	}
	return p
}

// latestOr returns p, or the newest period of snap when p is zero.
func latestOr(snap *store.Snapshot, p ledger.Period) ledger.Period {
	if !p.IsZero() {
		return p
	}
	ps := snap.Periods()
	return ps[len(ps)-1]
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func exitOnErr(log zerolog.Logger, err error, msg string) {
	if err == nil {
		return
	}
	if errors.Is(err, ledger.ErrNoData) {
		fmt.Println("No data for the selection.")
		os.Exit(0)
	}
	log.Fatal().Err(err).Msg(msg)
}
