package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/odata-mobility-chart/internal/adapter/echarts"
	httpadapter "github.com/couchcryptid/odata-mobility-chart/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/odata-mobility-chart/internal/adapter/kafka"
	"github.com/couchcryptid/odata-mobility-chart/internal/adapter/odata"
	"github.com/couchcryptid/odata-mobility-chart/internal/adapter/sqlite"
	"github.com/couchcryptid/odata-mobility-chart/internal/adapter/xlsx"
	"github.com/couchcryptid/odata-mobility-chart/internal/config"
	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
	"github.com/couchcryptid/odata-mobility-chart/internal/observability"
	"github.com/couchcryptid/odata-mobility-chart/internal/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flags holds command-line overrides of the environment configuration.
type flags struct {
	datasets  []string
	layout    string
	output    string
	title     string
	xlsx      string
	sqlite    string
	brokers   []string
	logLevel  string
	logFormat string
	addr      string
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&flags{})
}

func newRootCmdWith(f *flags) *cobra.Command {
	root := &cobra.Command{
		Use:           "odatachart",
		Short:         "Chart public transport use from CBS OData tables",
		Long:          `Fetches CBS mobility datasets over OData, joins their dimension tables, averages public transport use per year and renders a four-panel line chart.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&f.datasets, "dataset", nil, "dataset root URL (repeatable, overrides DATASET_URLS)")
	pf.StringVar(&f.layout, "layout", "", "TOML panel layout file (overrides LAYOUT_FILE)")
	pf.StringVarP(&f.output, "output", "o", "", "chart HTML path (overrides OUTPUT_FILE)")
	pf.StringVar(&f.title, "title", "", "chart title (overrides CHART_TITLE)")
	pf.StringVar(&f.xlsx, "xlsx", "", "also write series to this workbook (overrides XLSX_OUTPUT)")
	pf.StringVar(&f.sqlite, "sqlite", "", "also record the run in this SQLite database (overrides SQLITE_PATH)")
	pf.StringSliceVar(&f.brokers, "kafka-broker", nil, "publish series to these Kafka brokers (overrides KAFKA_BROKERS)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	pf.StringVar(&f.logFormat, "log-format", "", "text or json (overrides LOG_FORMAT)")

	root.AddCommand(newRenderCmd(f))
	root.AddCommand(newServeCmd(f))
	return root
}

func newRenderCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Fetch, aggregate and render the chart once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd, f)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, cleanup, err := buildPipeline(ctx, cfg, logger, observability.NewMetrics())
			if err != nil {
				return report(logger, err)
			}
			defer cleanup()

			result, err := p.RunOnce(ctx)
			if err != nil {
				return report(logger, err)
			}
			logger.Info("chart written", "path", cfg.OutputFile, "rows", len(result.Rows), "series", result.Chart.SeriesCount())
			return nil
		},
	}
}

func newServeCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chart over HTTP and re-render it periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd, f)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, cleanup, err := buildPipeline(ctx, cfg, logger, observability.NewMetrics())
			if err != nil {
				return report(logger, err)
			}
			defer cleanup()

			srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.OutputFile, p, logger)

			// Start HTTP server.
			srvErr := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					srvErr <- err
				}
			}()

			// Start refresh loop.
			loopDone := make(chan struct{})
			go func() {
				defer close(loopDone)
				p.RunEvery(ctx, cfg.RefreshInterval)
			}()

			var runErr error
			select {
			case <-ctx.Done():
			case runErr = <-srvErr:
				logger.Error("http server error", "error", runErr)
				stop()
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			<-loopDone

			logger.Info("shutdown complete")
			return runErr
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

// setup loads the environment configuration, applies flag overrides and
// builds the logger.
func setup(cmd *cobra.Command, f *flags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return nil, nil, err
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return nil, nil, err
	}
	return cfg, observability.NewLogger(cfg), nil
}

func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("dataset") {
		cfg.DatasetURLs = f.datasets
	}
	if changed("layout") {
		cfg.LayoutFile = f.layout
	}
	if changed("output") {
		cfg.OutputFile = f.output
	}
	if changed("title") {
		cfg.ChartTitle = f.title
	}
	if changed("xlsx") {
		cfg.XLSXOutput = f.xlsx
	}
	if changed("sqlite") {
		cfg.SQLitePath = f.sqlite
	}
	if changed("kafka-broker") {
		cfg.KafkaBrokers = f.brokers
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("addr") {
		cfg.HTTPAddr = f.addr
	}
}

// buildPipeline wires the OData client, renderer and enabled exporters. The
// returned cleanup closes the exporters that hold resources.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, func(), error) {
	specs, err := config.LoadLayout(cfg.LayoutFile)
	if err != nil {
		return nil, nil, err
	}
	panels, err := domain.BuildPanels(specs)
	if err != nil {
		return nil, nil, fmt.Errorf("layout: %w", err)
	}

	client := odata.NewClient(odata.Options{
		Timeout:     cfg.FetchTimeout,
		MaxInFlight: cfg.FetchConcurrency,
		Retries:     cfg.FetchRetries,
		Backoff:     cfg.FetchRetryBackoff,
	}, metrics, logger)

	subtitle := echarts.DefaultSubtitle
	if cfg.LayoutFile != "" {
		subtitle = ""
	}
	renderer := echarts.FileRenderer{
		Path: cfg.OutputFile,
		Options: echarts.Options{
			Title:    cfg.ChartTitle,
			Subtitle: subtitle,
			Width:    cfg.ChartWidth,
			Height:   cfg.ChartHeight,
		},
	}

	var (
		exporters []pipeline.Exporter
		closers   []func() error
	)
	if cfg.XLSXOutput != "" {
		exporters = append(exporters, xlsx.NewExporter(cfg.XLSXOutput))
		logger.Info("xlsx export enabled", "path", cfg.XLSXOutput)
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		exporters = append(exporters, store)
		closers = append(closers, store.Close)
		logger.Info("sqlite export enabled", "path", cfg.SQLitePath)
	}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		exporters = append(exporters, writer)
		closers = append(closers, writer.Close)
		logger.Info("kafka export enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("exporter close error", "error", err)
			}
		}
	}

	p := pipeline.New(cfg.DatasetURLs, panels, client, renderer, exporters, logger, metrics)
	return p, cleanup, nil
}

// report logs a run failure with its classification and returns it.
func report(logger *slog.Logger, err error) error {
	kind := "error"
	switch {
	case errors.Is(err, domain.ErrTransport):
		kind = "transport"
	case domain.IsDataIntegrity(err):
		kind = "data_integrity"
	case errors.Is(err, domain.ErrDecode):
		kind = "decode"
	case errors.Is(err, context.Canceled):
		kind = "cancelled"
	}
	logger.Error("run failed", "kind", kind, "error", err)
	return err
}
