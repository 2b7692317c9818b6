// fredcycle relates corporate credit spreads to bank loan delinquency
// across credit-cycle regimes using FRED data.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/fredcycle/api"
	"github.com/seenimoa/fredcycle/internal/config"
	"github.com/seenimoa/fredcycle/internal/infra"
	"github.com/seenimoa/fredcycle/internal/report"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global state, set up in PersistentPreRunE.
var (
	cfg *config.Config
	a   *app
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fredcycle",
	Short: "Credit spreads versus loan delinquency across credit-cycle regimes",
	Long: `fredcycle downloads macro-financial series from FRED, joins them into a
quarterly table, labels each quarter with its credit-cycle regime and relates
the corporate bond spread to current and forward bank loan delinquency.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlags(cmd, cfg)

		a, err = newApp(cfg)
		if err != nil {
			return err
		}
		cmd.SetContext(infra.WithLogger(cmd.Context(), a.log))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "observation store path override")
	rootCmd.PersistentFlags().Bool("offline", false, "serve observations from the store only")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

// applyFlags layers explicitly set persistent flags over the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("store") {
		cfg.Store.Path, _ = flags.GetString("store")
	}
	if flags.Changed("offline") {
		cfg.Analysis.Offline, _ = flags.GetBool("offline")
	}
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fredcycle %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, providers and stored series",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  fredcycle — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time:          %s\n", time.Now().Format(time.RFC1123))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Indicators:    %d\n", len(a.cat.Indicators()))
		fmt.Printf("    Periods:       %d\n", len(a.cat.Periods().Intervals()))
		fmt.Printf("    Obs. start:    %s\n", defaultString(cfg.FRED.ObservationStart, "full history"))
		fmt.Printf("    Store:         %s\n", defaultString(cfg.Store.Path, "disabled"))
		fmt.Printf("    Offline:       %t\n", cfg.Analysis.Offline)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}
		fmt.Println()

		fmt.Println("  Providers:")
		for _, info := range a.reg.List() {
			p, err := a.reg.Get(info.Name)
			if err != nil {
				return err
			}
			status := "✅ reachable"
			if err := p.Ping(ctx); err != nil {
				status = "❌ " + err.Error()
			}
			fmt.Printf("    %-25s %s\n", info.Name+":", status)
		}
		fmt.Println()

		entries, err := a.store.ListSeries(ctx)
		if err != nil {
			return fmt.Errorf("listing stored series: %w", err)
		}
		fmt.Printf("  Stored series: %d\n", len(entries))
		for _, e := range entries {
			fmt.Printf("    %-12s %6d obs  fetched %s\n", e.SeriesID, e.Observations, e.FetchedAt.Format("2006-01-02 15:04"))
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}
		gen, err := newGenerator(cmd)
		if err != nil {
			return err
		}
		api.Version = version
		srv := api.NewServer(cfg, a.svc, gen, a.metrics, a.log)
		addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
		return srv.ListenAndServe(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port override")
}

// newGenerator builds a report generator from config and the report flags
// the command defines.
func newGenerator(cmd *cobra.Command) (*report.Generator, error) {
	rc := cfg.Report
	if f := cmd.Flags().Lookup("format"); f != nil && f.Changed {
		rc.Format = f.Value.String()
	}
	if f := cmd.Flags().Lookup("output-dir"); f != nil && f.Changed {
		rc.OutputDir = f.Value.String()
	}
	rcfg, err := report.ConfigFrom(rc)
	if err != nil {
		return nil, err
	}
	return report.NewGenerator(rcfg)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
