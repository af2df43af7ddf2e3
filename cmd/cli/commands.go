package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dvloznov/ledger-analytics/internal/alerts"
	"github.com/dvloznov/ledger-analytics/internal/compare"
	"github.com/dvloznov/ledger-analytics/internal/evolution"
	"github.com/dvloznov/ledger-analytics/internal/format"
	"github.com/dvloznov/ledger-analytics/internal/infra/bigquery"
	"github.com/dvloznov/ledger-analytics/internal/pipeline"
	"github.com/dvloznov/ledger-analytics/internal/ratios"
	"github.com/dvloznov/ledger-analytics/internal/share"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/rs/zerolog"
)

// accountFlags selects accounts by code, prefix and tags.
type accountFlags struct {
	accounts string
	prefix   string
	class    string
	rollup   string
	category string
	view     string
}

func addAccountFlags(fs *flag.FlagSet) *accountFlags {
	a := &accountFlags{}
	fs.StringVar(&a.accounts, "accounts", "", "Comma-separated account codes")
	fs.StringVar(&a.prefix, "prefix", "", "Account code prefix")
	fs.StringVar(&a.class, "class", "", "Balance class (Asset, Liability, Equity, Off-balance)")
	fs.StringVar(&a.rollup, "rollup", "", "Rollup level (Totalizer-1 ... Leaf)")
	fs.StringVar(&a.category, "category", "", "Account category")
	fs.StringVar(&a.view, "view", "", "View tag (Macro, Subtotal, Other)")
	return a
}

func (a *accountFlags) tags() store.TagFilter {
	return store.TagFilter{
		BalanceClass: taxonomy.BalanceClass(a.class),
		RollupLevel:  taxonomy.RollupLevel(a.rollup),
		Category:     a.category,
		ViewTag:      taxonomy.ViewTag(a.view),
	}
}

func (a *accountFlags) filter() store.Filter {
	return store.Filter{Codes: splitList(a.accounts), CodePrefix: a.prefix, Tags: a.tags()}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

func runLoad(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	c := addCommon(fs)
	fs.Parse(args)

	ctx := background(log)
	a := c.open(ctx, log)
	state, err := a.Loader.Load(ctx)
	a.Close()

	if state != nil {
		renderLoad(os.Stdout, state)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Load failed")
	}
}

func renderLoad(w io.Writer, state *pipeline.State) {
	fmt.Fprintf(w, "Load %s\n", state.LoadID)

	tw := newTable(w)
	fmt.Fprintln(tw, "SOURCE\tSTATUS\tRECORDS\t")
	for _, s := range state.Coverage {
		status := "ok"
		if !s.OK {
			status = "FAILED: " + s.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t\n", s.Name, status, s.Records)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nSources loaded: %d of %d\n", state.Loaded(), len(state.Coverage))
	fmt.Fprintf(w, "Lines read: %d, skipped: %d, zeroed amounts: %d\n",
		state.ParseStats.Lines, state.ParseStats.Skipped(), state.ParseStats.ZeroedAmounts)
	n := state.Normalization
	fmt.Fprintf(w, "Normalized: %d records (%d renamed, %d duplicates, %d key collisions)\n",
		n.Output, n.Renamed, n.Duplicates, n.KeyCollisions)
	if state.Snapshot != nil {
		fmt.Fprintf(w, "Snapshot: %d records, %d entities, %d periods\n",
			state.Snapshot.Len(), len(state.Snapshot.Entities()), len(state.Snapshot.Periods()))
	}
	for _, e := range state.SinkErrors {
		fmt.Fprintf(w, "Sink %s failed: %s\n", e.Sink, e.Error)
	}
}

func runEntities(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("entities", flag.ExitOnError)
	c := addCommon(fs)
	period := fs.String("period", "", "Only entities reporting at YYYYMM")
	fs.Parse(args)

	s := c.load(background(log), log)
	entities := s.Snap.Entities()
	if p := parsePeriod(log, "period", *period); !p.IsZero() {
		entities = s.Snap.EntitiesAt(p)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, e := range entities {
		fmt.Fprintf(tw, "%s\t%s\n", e.ID, e.Name)
	}
	tw.Flush()
}

func runPeriods(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("periods", flag.ExitOnError)
	c := addCommon(fs)
	fs.Parse(args)

	s := c.load(background(log), log)
	for _, p := range s.Snap.Periods() {
		fmt.Printf("%s\t%s\n", p.Key(), p.Display())
	}
}

func runAccounts(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	c := addCommon(fs)
	af := addAccountFlags(fs)
	fs.Parse(args)

	s := c.load(background(log), log)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tLABEL\tCLASS\tROLLUP\tCATEGORY\tVIEW")
	for _, a := range s.Snap.Accounts(af.tags()) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Code, a.Label, a.Tags.BalanceClass, a.Tags.RollupLevel, a.Tags.Category, a.Tags.ViewTag)
	}
	tw.Flush()
}

func runCompare(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	c := addCommon(fs)
	af := addAccountFlags(fs)
	period := fs.String("period", "", "Target period YYYYMM (default: latest)")
	entities := fs.String("entities", "", "Comma-separated entity ids")
	fs.Parse(args)

	s := c.load(background(log), log)
	result, err := compare.Compare(s.Snap, compare.Request{
		Period:   latestOr(s.Snap, parsePeriod(log, "period", *period)),
		Entities: splitList(*entities),
		Accounts: af.filter(),
	})
	exitOnErr(log, err, "Comparison failed")
	renderCompare(os.Stdout, result)
}

func renderCompare(w io.Writer, result *compare.Result) {
	fmt.Fprintf(w, "%s vs %s\n", result.Period.Display(), result.Prior.Display())
	tw := newTable(w)
	fmt.Fprintln(tw, "ENTITY\tACCOUNT\tLABEL\tBALANCE\tPRIOR\tVARIATION\tVAR %\t")
	for _, r := range result.Rows {
		prior := "-"
		if r.HasPrior {
			prior = format.Amount(r.PriorBalance)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.EntityName, r.AccountCode, r.AccountLabel,
			format.Amount(r.Balance), prior, format.Amount(r.AbsVariation), format.Percent(r.PctVariation))
	}
	tw.Flush()
}

func runRatios(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("ratios", flag.ExitOnError)
	c := addCommon(fs)
	period := fs.String("period", "", "Target period YYYYMM (default: latest)")
	entities := fs.String("entities", "", "Comma-separated entity ids")
	fs.Parse(args)

	s := c.load(background(log), log)
	result, err := compare.Compare(s.Snap, compare.Request{
		Period:   latestOr(s.Snap, parsePeriod(log, "period", *period)),
		Entities: splitList(*entities),
	})
	exitOnErr(log, err, "Comparison failed")
	renderRatios(os.Stdout, ratios.Compute(result, s.Table.RatioCodes))
}

func renderRatios(w io.Writer, report ratios.Report) {
	fmt.Fprintf(w, "%s vs %s\n", report.Period.Display(), report.Prior.Display())
	tw := newTable(w)
	fmt.Fprintln(tw, "ENTITY\tINDICATOR\tCURRENT\tPRIOR\tDELTA\t")
	all := append([]ratios.EntityRatios{report.Combined}, report.Entities...)
	for _, e := range all {
		for _, ind := range e.Indicators() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
				e.Name, ind.Name, format.Percent(ind.Current), format.Percent(ind.Prior), format.Float(ind.Delta, 2))
		}
	}
	tw.Flush()
}

func runShare(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	c := addCommon(fs)
	af := addAccountFlags(fs)
	period := fs.String("period", "", "Target period YYYYMM (default: latest)")
	entities := fs.String("entities", "", "Comma-separated entity ids (default: all)")
	fs.Parse(args)

	accounts := af.filter()
	if !accounts.HasAccountCriteria() {
		log.Fatal().Msg("Usage: cli share -accounts CODES | -prefix P | -category C ...")
	}

	s := c.load(background(log), log)
	result, err := share.AtPeriod(s.Snap, share.Request{
		Period:   latestOr(s.Snap, parsePeriod(log, "period", *period)),
		Accounts: accounts,
		Entities: splitList(*entities),
	})
	exitOnErr(log, err, "Share computation failed")
	renderShare(os.Stdout, result)
}

func renderShare(w io.Writer, result *share.Snapshot) {
	fmt.Fprintf(w, "%s  system total %s\n", result.Period.Display(), format.Amount(result.SystemTotal))
	tw := newTable(w)
	fmt.Fprintln(tw, "ENTITY\tBALANCE\tSHARE\t")
	for _, e := range result.Entities {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", e.EntityName, format.Amount(e.Abs), format.Percent(e.Share))
	}
	fmt.Fprintf(tw, "Selected\t\t%s\t\n", format.Percent(result.Combined))
	tw.Flush()
}

func runSeries(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("series", flag.ExitOnError)
	c := addCommon(fs)
	af := addAccountFlags(fs)
	from := fs.String("from", "", "First period YYYYMM")
	to := fs.String("to", "", "Last period YYYYMM")
	entities := fs.String("entities", "", "Comma-separated entity ids (default: all)")
	fs.Parse(args)

	accounts := af.filter()
	if !accounts.HasAccountCriteria() {
		log.Fatal().Msg("Usage: cli series -accounts CODES | -prefix P | -category C ...")
	}

	s := c.load(background(log), log)
	series, err := share.BuildSeries(s.Snap, share.SeriesRequest{
		From:     parsePeriod(log, "from", *from),
		To:       parsePeriod(log, "to", *to),
		Accounts: accounts,
		Entities: splitList(*entities),
	})
	exitOnErr(log, err, "Series computation failed")
	renderSeries(os.Stdout, series)
}

func renderSeries(w io.Writer, series *share.Series) {
	tw := newTable(w)
	fmt.Fprintln(tw, "PERIOD\tSYSTEM TOTAL\tMOM %\t")
	for _, t := range series.Totals {
		mom := "-"
		if t.MoM != nil {
			mom = format.Percent(*t.MoM)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", t.Period.Display(), format.Amount(t.Total), mom)
	}
	tw.Flush()

	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintln(tw, "PERIOD\tENTITY\tBALANCE\tSHARE\t")
	for _, r := range series.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.Period.Display(), r.EntityName, format.Amount(r.Abs), format.Percent(r.Share))
	}
	tw.Flush()
}

func runAlerts(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("alerts", flag.ExitOnError)
	c := addCommon(fs)
	period := fs.String("period", "", "Target period YYYYMM (default: latest)")
	fs.Parse(args)

	s := c.load(background(log), log)
	found, err := alerts.Scan(s.Snap, latestOr(s.Snap, parsePeriod(log, "period", *period)), s.Table.RatioCodes, s.Config.Alerts)
	exitOnErr(log, err, "Alert scan failed")
	renderAlerts(os.Stdout, found)
}

func renderAlerts(w io.Writer, found []alerts.Alert) {
	if len(found) == 0 {
		fmt.Fprintln(w, "No alerts.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ENTITY\tALERT\tVALUE\tDETAIL\t")
	for _, a := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", a.EntityName, a.Kind, format.Percent(a.Value), a.Description)
	}
	tw.Flush()
}

func runEvolution(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("evolution", flag.ExitOnError)
	c := addCommon(fs)
	entities := fs.String("entities", "", "Comma-separated entity ids")
	accounts := fs.String("accounts", "", "Comma-separated account codes")
	fs.Parse(args)

	if *entities == "" || *accounts == "" {
		log.Fatal().Msg("Usage: cli evolution -entities IDS -accounts CODES")
	}

	s := c.load(background(log), log)
	table, err := evolution.Build(s.Snap, splitList(*entities), splitList(*accounts))
	exitOnErr(log, err, "Evolution failed")
	renderEvolution(os.Stdout, table)
}

func renderEvolution(w io.Writer, table *evolution.Table) {
	tw := newTable(w)
	fmt.Fprint(tw, "PERIOD\t")
	for _, l := range table.Labels {
		fmt.Fprintf(tw, "%s\t", l)
	}
	fmt.Fprintln(tw)
	for _, row := range table.Rows {
		fmt.Fprintf(tw, "%s\t", row.Period.Display())
		for _, v := range row.Values {
			cell := "-"
			if v.Valid {
				cell = format.Amount(v.Decimal)
			}
			fmt.Fprintf(tw, "%s\t", cell)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

func runRuns(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	c := addCommon(fs)
	limit := fs.Int("limit", 20, "Number of runs to show")
	fs.Parse(args)

	ctx := background(log)
	a := c.open(ctx, log)
	defer a.Close()
	if a.Runs == nil {
		log.Fatal().Msg("Load runs are recorded in BigQuery; set GCP_PROJECT and BQ_DATASET")
	}

	runs, err := a.Runs.ListLoadRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list load runs")
	}
	renderRuns(os.Stdout, runs)
}

func renderRuns(w io.Writer, runs []*bigquery.LoadRunRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOAD ID\tSTARTED\tSTATUS\tSOURCES\tRECORDS\tERROR")
	for _, r := range runs {
		sources := fmt.Sprintf("%d", r.SourcesTotal)
		if r.SourcesLoaded.Valid {
			sources = fmt.Sprintf("%d/%d", r.SourcesLoaded.Int64, r.SourcesTotal)
		}
		records := "-"
		if r.Records.Valid {
			records = fmt.Sprintf("%d", r.Records.Int64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.LoadID, r.StartedTS.Format("2006-01-02 15:04:05"), r.Status, sources, records, r.ErrorMessage)
	}
	tw.Flush()
}
