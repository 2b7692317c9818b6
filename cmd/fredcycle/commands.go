package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seenimoa/fredcycle/internal/analysis"
	"github.com/seenimoa/fredcycle/internal/export"
	"github.com/seenimoa/fredcycle/internal/provider"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
	"github.com/seenimoa/fredcycle/pkg/models"
)

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

// --- Catalog Command ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the indicators and regime periods",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := newTabWriter()
		fmt.Fprintln(tw, "NAME\tSERIES\tFREQ\tTITLE")
		for _, ind := range a.cat.Indicators() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ind.Name, ind.ID, ind.Frequency, ind.Title)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Println()
		tw = newTabWriter()
		fmt.Fprintln(tw, "PERIOD\tSTART\tEND\tCOLOR")
		for _, iv := range a.cat.Periods().Intervals() {
			end := "open"
			if iv.End != nil {
				end = iv.End.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", iv.Label, iv.Start, end, iv.Color)
		}
		fmt.Fprintf(tw, "%s\t\t\t%s\n", a.cat.Periods().Default(), a.cat.Color(a.cat.Periods().Default()))
		return tw.Flush()
	},
}

// --- Info Command ---

var infoCmd = &cobra.Command{
	Use:   "info <series-id>",
	Short: "Show FRED metadata for a series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := a.reg.Fetch(cmd.Context(), provider.ModelSeriesInfo, provider.QueryParams{
			provider.ParamSymbol: strings.ToUpper(args[0]),
		})
		if err != nil {
			return err
		}
		info, ok := res.Data.(models.SeriesInfo)
		if !ok {
			return fmt.Errorf("unexpected %T from %s", res.Data, res.Provider)
		}

		fmt.Printf("%s: %s\n", info.ID, info.Title)
		fmt.Printf("  Frequency:   %s\n", info.Frequency)
		fmt.Printf("  Units:       %s\n", info.Units)
		fmt.Printf("  Adjustment:  %s\n", info.SeasonalAdjustment)
		fmt.Printf("  Range:       %s to %s\n", info.ObservationStart.Format("2006-01-02"), info.ObservationEnd.Format("2006-01-02"))
		fmt.Printf("  Updated:     %s\n", info.LastUpdated.Format("2006-01-02 15:04"))
		if info.Notes != "" {
			fmt.Println()
			fmt.Println(info.Notes)
		}
		return nil
	},
}

// --- Search Command ---

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search FRED series by keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		res, err := a.reg.Fetch(cmd.Context(), provider.ModelSeriesSearch, provider.QueryParams{
			provider.ParamQuery: strings.Join(args, " "),
			provider.ParamLimit: strconv.Itoa(limit),
		})
		if err != nil {
			return err
		}
		hits, ok := res.Data.([]models.SearchResult)
		if !ok {
			return fmt.Errorf("unexpected %T from %s", res.Data, res.Provider)
		}

		tw := newTabWriter()
		fmt.Fprintln(tw, "SERIES\tFREQ\tPOP\tTITLE")
		for _, h := range hits {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", h.SeriesID, h.Frequency, h.Popularity, h.Title)
		}
		return tw.Flush()
	},
}

func init() {
	searchCmd.Flags().Int("limit", 20, "maximum number of results")
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Load every catalog series and show where each came from",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := a.loader.Load(cmd.Context())
		if err != nil {
			return err
		}
		return printSummaries(res.Summaries)
	},
}

func printSummaries(sums []models.SeriesSummary) error {
	tw := newTabWriter()
	fmt.Fprintln(tw, "NAME\tSERIES\tSOURCE\tOBS\tVALID\tFIRST\tLAST")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			s.Name, s.SeriesID, s.Source, s.Observations, s.Valid, s.First, s.Last)
	}
	return tw.Flush()
}

// --- Table Command ---

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the assembled analysis table as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := a.svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		t := snap.Table
		if start, _ := cmd.Flags().GetString("start"); start != "" {
			d, err := series.ParseDate(start)
			if err != nil {
				return err
			}
			t = t.Clone()
			t.Truncate(d)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(t.Rows())
		}
		return export.WriteCSV(os.Stdout, t)
	},
}

func init() {
	tableCmd.Flags().String("start", "", "drop rows before this date (YYYY-MM-DD)")
	tableCmd.Flags().Bool("json", false, "print rows as JSON")
}

// --- Export Command ---

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Write the analysis table to a CSV or Parquet file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		var (
			f   export.Format
			err error
		)
		if name, _ := cmd.Flags().GetString("format"); name != "" {
			f, err = export.ParseFormat(name)
		} else {
			f, err = export.FormatFor(path)
		}
		if err != nil {
			return err
		}

		snap, err := a.svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		if err := export.ToFile(path, snap.Table, f); err != nil {
			return err
		}
		fmt.Printf("✅ wrote %d rows to %s\n", snap.Table.Len(), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "", "csv or parquet (default: from the file extension)")
}

// --- Stats Command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show spread and delinquency statistics by regime",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := a.svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		regimes, points, err := snap.Regimes()
		if err != nil {
			return err
		}
		fmt.Printf("%d quarterly points\n\n", len(points))

		tw := newTabWriter()
		header := "PERIOD\tQTRS\tSPREAD\tDELINQ\tSTD\tCORR"
		for _, h := range snap.Pipeline.Config().Forward.Horizons {
			header += fmt.Sprintf("\tCORR %dM\tR² %dM", h, h)
		}
		fmt.Fprintln(tw, header)
		for _, r := range regimes {
			fmt.Fprint(tw, regimeLine(r))
		}
		return tw.Flush()
	},
}

func regimeLine(r analysis.RegimeStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%d\t%s\t%s\t%s\t%s", r.Period, r.Quarters,
		num(r.MeanSpread), num(r.MeanDelinquency), num(r.StdDelinquency), num(r.Current.Correlation))
	for _, h := range r.Horizons {
		fmt.Fprintf(&b, "\t%s\t%s", num(h.Correlation), num(h.RSquared))
	}
	b.WriteByte('\n')
	return b.String()
}

var reduceCmd = &cobra.Command{
	Use:   "reduce <op> <x> [y]",
	Short: "Apply mean, std, last, corr or r2 to table columns",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := stats.ParseOp(args[0])
		if err != nil {
			return err
		}
		if op.Paired() && len(args) < 3 {
			return fmt.Errorf("%s needs two columns", op)
		}

		snap, err := a.svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		xs, ok := snap.Table.Column(args[1])
		if !ok {
			return fmt.Errorf("unknown column %q", args[1])
		}
		var ys []series.Value
		if op.Paired() {
			if ys, ok = snap.Table.Column(args[2]); !ok {
				return fmt.Errorf("unknown column %q", args[2])
			}
		}
		if period, _ := cmd.Flags().GetString("period"); period != "" {
			labels, _ := snap.Table.Labels(snap.Pipeline.Config().PeriodColumn)
			xs, ys = selectLabel(xs, ys, labels, period)
		}
		fmt.Printf("%s = %s\n", op, num(stats.Reduce(op, xs, ys)))
		return nil
	},
}

func init() {
	reduceCmd.Flags().String("period", "", "restrict to rows of one regime")
	statsCmd.AddCommand(reduceCmd)
}

func selectLabel(xs, ys []series.Value, labels []string, want string) ([]series.Value, []series.Value) {
	var fx, fy []series.Value
	for i, l := range labels {
		if l != want || i >= len(xs) {
			continue
		}
		fx = append(fx, xs[i])
		if ys != nil {
			fy = append(fy, ys[i])
		}
	}
	return fx, fy
}

func num(v series.Value) string {
	if v.IsNull() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v.Float)
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the credit-cycle report (html, pdf or text)",
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, err := newGenerator(cmd)
		if err != nil {
			return err
		}
		snap, err := a.svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		path, err := gen.Write(cmd.Context(), snap)
		if err != nil {
			return err
		}
		fmt.Printf("✅ report written to %s\n", path)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("format", "", "html, pdf or text (default from config)")
	reportCmd.Flags().String("output-dir", "", "output directory (default from config)")
}
