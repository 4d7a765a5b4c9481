package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"leadscope/adapters/api"
	"leadscope/adapters/excel"
	"leadscope/adapters/stats/backtest"
	"leadscope/adapters/stats/cascade"
	"leadscope/app"
	"leadscope/internal"
	"leadscope/internal/config"
	"leadscope/internal/errors"
	"leadscope/internal/metrics"
	"leadscope/internal/testkit"
	"leadscope/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime holds everything a subcommand needs, built once the flags are parsed
type runtime struct {
	cfg       *config.Config
	logger    zerolog.Logger
	logCloser io.Closer
	registry  *prometheus.Registry
	service   *app.ScanService
}

func (rt *runtime) load(configPath string, envFiles []string) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, logCloser, err := internal.NewLogger(cfg.Log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	recorder := metrics.New(registry)

	engineOptions := []cascade.Option{cascade.WithLogger(logger), cascade.WithObserver(recorder)}
	engine, err := cascade.New(cfg.Engine, engineOptions...)
	if err != nil {
		return err
	}

	rt.cfg = cfg
	rt.logger = logger
	rt.logCloser = logCloser
	rt.registry = registry
	rt.service = app.NewScanService(engine, backtest.NewBacktester(cfg.Backtest, logger), logger, engineOptions...)
	return nil
}

// close releases the log file, if any
func (rt *runtime) close() error {
	if rt.logCloser == nil {
		return nil
	}
	return rt.logCloser.Close()
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}
	var configPath string
	var envFiles []string

	rootCmd := &cobra.Command{
		Use:           "leadscope",
		Short:         "Detect lead indicators with a cascade of rank, dependence and elastic-match tests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.load(configPath, envFiles)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return rt.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the configuration")

	rootCmd.AddCommand(
		newScanCmd(rt),
		newDemoCmd(rt),
		newBacktestCmd(rt),
		newServeCmd(rt),
	)
	return rootCmd
}

// tableFlags are shared by the commands that read series from a file
type tableFlags struct {
	file        string
	key         string
	fillForward bool
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "CSV or XLSX file with one series per column")
	cmd.Flags().StringVar(&f.key, "key", "", "column holding row keys such as dates (required to join remote sources)")
	cmd.Flags().BoolVar(&f.fillForward, "ffill", true, "forward-fill blank cells")
	_ = cmd.MarkFlagRequired("file")
}

// loadTable reads the file and inner-joins every configured remote source
func (rt *runtime) loadTable(ctx context.Context, f tableFlags) (*excel.SeriesTable, error) {
	reader := excel.NewSeriesReader(f.file, excel.ReaderOptions{
		KeyColumn:      f.key,
		FillForward:    f.fillForward,
		DropIncomplete: true,
	}, rt.logger)
	table, err := reader.Read()
	if err != nil {
		return nil, err
	}

	for _, source := range rt.cfg.Sources {
		if f.key == "" {
			return nil, errors.InvalidInput("--key is required to join remote sources")
		}
		fetcher, err := api.NewSeriesFetcher(source, nil, rt.logger)
		if err != nil {
			return nil, err
		}
		remote, err := fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if table, err = excel.Join(table, remote); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func newScanCmd(rt *runtime) *cobra.Command {
	var tf tableFlags
	var target string
	var candidates []string
	var window int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan every candidate column against a target column",
		Long: `Scan every candidate column of a file against a target column.

Example: leadscope scan --file data.csv --key Date --target Close --window 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := rt.loadTable(cmd.Context(), tf)
			if err != nil {
				return err
			}
			targetSeries, ok := table.Column(target)
			if !ok {
				return errors.NotFound("target column " + target)
			}

			pool := table.Columns(target)
			if len(candidates) > 0 {
				selected := make(map[string][]float64, len(candidates))
				for _, name := range candidates {
					series, ok := pool[name]
					if !ok {
						return errors.NotFound("candidate column " + name)
					}
					selected[name] = series
				}
				pool = selected
			}

			report, err := rt.service.Scan(cmd.Context(), app.ScanRequest{
				Target:     targetSeries,
				Candidates: pool,
				WindowSize: window,
			})
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), asJSON, report, func(w io.Writer) { printScanReport(w, report) })
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVar(&target, "target", "", "target column")
	cmd.Flags().StringSliceVar(&candidates, "candidates", nil, "candidate columns (default: every other numeric column)")
	cmd.Flags().IntVar(&window, "window", 0, "backtest window for FOUND candidates, 0 disables it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newDemoCmd(rt *runtime) *cobra.Command {
	var length int
	var seed int64
	var window int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Scan a synthetic trending target against linear, squared, lagged and noise candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario := testkit.LeadIndicatorScenario(testkit.SeriesGeneratorConfig{Length: length, Seed: seed})
			report, err := rt.service.Scan(cmd.Context(), app.ScanRequest{
				Target:     scenario.Target,
				Candidates: scenario.Candidates,
				WindowSize: window,
			})
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), asJSON, report, func(w io.Writer) { printScanReport(w, report) })
		},
	}
	cmd.Flags().IntVar(&length, "length", 100, "samples per synthetic series")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed for deterministic series")
	cmd.Flags().IntVar(&window, "window", 0, "backtest window for FOUND candidates, 0 disables it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newBacktestCmd(rt *runtime) *cobra.Command {
	var tf tableFlags
	var target, candidate string
	var window int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Measure how consistently a candidate fires across slices of history",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := rt.loadTable(cmd.Context(), tf)
			if err != nil {
				return err
			}
			targetSeries, ok := table.Column(target)
			if !ok {
				return errors.NotFound("target column " + target)
			}
			candidateSeries, ok := table.Column(candidate)
			if !ok {
				return errors.NotFound("candidate column " + candidate)
			}

			report, err := rt.service.Backtest(cmd.Context(), app.BacktestRequest{
				Target:     targetSeries,
				Candidate:  candidateSeries,
				WindowSize: window,
			})
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), asJSON, report, func(w io.Writer) { printConsistency(w, report) })
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVar(&target, "target", "", "target column")
	cmd.Flags().StringVar(&candidate, "candidate", "", "candidate column")
	cmd.Flags().IntVar(&window, "window", 30, "minimum samples per history slice")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}

func newServeCmd(rt *runtime) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = rt.cfg.Server.Addr
			}
			gin.SetMode(rt.cfg.Server.GinMode)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			server := ui.NewServer(rt.service, rt.registry, rt.logger, ui.WithLimits(rt.cfg.Server.Limits))
			return server.Start(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from configuration)")
	return cmd
}

func output(w io.Writer, asJSON bool, value interface{}, text func(io.Writer)) error {
	if !asJSON {
		text(w)
		return nil
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
