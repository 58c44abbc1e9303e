// Package main provides the capital-flow feature pipeline entry point.
// Executes: load -> normalize -> features -> merge vix -> write table, manifest and report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"capital-flow-lab/internal/config"
	"capital-flow-lab/internal/features"
	"capital-flow-lab/internal/logger"
	"capital-flow-lab/internal/observability"
	"capital-flow-lab/internal/pipeline"
	"capital-flow-lab/internal/storage"
	chstore "capital-flow-lab/internal/storage/clickhouse"
	"capital-flow-lab/internal/storage/memory"
	"capital-flow-lab/internal/storage/migrations"
	pgstore "capital-flow-lab/internal/storage/postgres"
	"capital-flow-lab/internal/storage/sqlite"
	"capital-flow-lab/internal/tabular"
	"capital-flow-lab/internal/tracing"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file (defaults + FLOWLAB_* env when empty)")
	source := flag.String("source", "", "Override storage.source: file, postgres or memory")
	verify := flag.Bool("verify", false, "Recompute the table and compare before writing")
	noLedger := flag.Bool("no-ledger", false, "Do not record the run in the SQLite ledger")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Storage.Source = *source
	}
	if *verify {
		cfg.Features.Verify = true
	}
	if *noLedger {
		cfg.Storage.LedgerPath = ""
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	// Cancel the run on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("pipeline failed", zap.Error(err))
		log.Sync() //nolint:errcheck
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if err := tracing.Init(cfg.Tracing.Enabled, cfg.Tracing.ServiceName); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	if cfg.Metrics.Addr != "" {
		srv := startMetricsServer(cfg.Metrics.Addr, log)
		defer srv.Close()
	}

	start, end, err := cfg.DateRange()
	if err != nil {
		return err
	}

	src, closeSource, err := openSource(ctx, cfg, log, start, end)
	if err != nil {
		return err
	}
	defer closeSource()

	engine, err := features.NewEngine(features.Options{
		Window:     cfg.Features.Window,
		Parallel:   cfg.Features.Parallel,
		MaxWorkers: cfg.Features.MaxWorkers,
	})
	if err != nil {
		return err
	}

	format := tabular.Format(cfg.Data.Format)
	sinks := []pipeline.Sink{&pipeline.FileSink{Path: cfg.OutputPath(), Format: format}}
	if cfg.Storage.Clickhouse {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		defer conn.Close()
		sinks = append(sinks, &pipeline.StoreSink{
			Store:   chstore.NewFlowFeatureStore(conn),
			Label:   "clickhouse",
			Metrics: observability.DefaultMetrics,
		})
	}

	var runs storage.RunStore
	if cfg.Storage.LedgerPath != "" {
		ledger, err := sqlite.Open(cfg.Storage.LedgerPath)
		if err != nil {
			return err
		}
		defer ledger.Close()
		runs = ledger
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		Source:     src,
		Engine:     engine,
		Universe:   cfg.DomainUniverse(),
		Start:      start,
		End:        end,
		Sinks:      sinks,
		Runs:       runs,
		ReportPath: cfg.ReportPath(),
		Verify:     cfg.Features.Verify,
		Logger:     log,
		Metrics:    observability.DefaultMetrics,
	})
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	log.Info("feature table written",
		zap.String("run_id", result.RunID),
		zap.String("output", cfg.OutputPath()),
		zap.Int("rows", len(result.Records)),
		zap.Int("flow_z_undefined", result.Undefined["flow_z"]),
		zap.Bool("coverage_ok", result.Report.DataQuality.AllChecksPassed),
	)
	return nil
}

// openSource builds the configured input source. The returned func releases its connections.
func openSource(ctx context.Context, cfg *config.Config, log *zap.Logger, start, end time.Time) (pipeline.Source, func(), error) {
	files := &pipeline.FileSource{
		PricesPath: cfg.PricesPath(),
		VixPath:    cfg.VixPath(),
		VixTicker:  cfg.Data.VixTicker,
	}

	switch cfg.Storage.Source {
	case "file":
		return files, func() {}, nil

	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if len(applied) > 0 {
			log.Info("postgres migrations applied", zap.Strings("files", applied))
		}
		return &pipeline.StoreSource{
			Prices:     pgstore.NewPriceStore(pool),
			Volatility: pgstore.NewVolatilityStore(pool),
			Tickers:    cfg.Tickers(),
			Start:      start,
			End:        end,
			Label:      "postgres",
			Metrics:    observability.DefaultMetrics,
		}, pool.Close, nil

	case "memory":
		// Stage the files through in-memory stores; mirrors the postgres path without a database.
		prices, vols, err := files.Load(ctx)
		if err != nil {
			return nil, nil, err
		}
		priceStore := memory.NewPriceStore()
		volStore := memory.NewVolatilityStore()
		if err := priceStore.InsertBulk(ctx, prices); err != nil {
			return nil, nil, fmt.Errorf("stage prices: %w", err)
		}
		if err := volStore.InsertBulk(ctx, vols); err != nil {
			return nil, nil, fmt.Errorf("stage volatility: %w", err)
		}
		return &pipeline.StoreSource{
			Prices:     priceStore,
			Volatility: volStore,
			Tickers:    cfg.Tickers(),
			Start:      start,
			End:        end,
			Label:      "memory",
		}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", cfg.Storage.Source)
}

func startMetricsServer(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}
