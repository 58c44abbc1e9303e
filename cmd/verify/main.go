// Package main recomputes the feature table from its inputs and compares it with the stored table.
// Exit status is 1 when any value diverges beyond the tolerance.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"capital-flow-lab/internal/config"
	"capital-flow-lab/internal/features"
	"capital-flow-lab/internal/logger"
	"capital-flow-lab/internal/pipeline"
	pgstore "capital-flow-lab/internal/storage/postgres"
	"capital-flow-lab/internal/tabular"
	"capital-flow-lab/internal/verification"
)

// maxLogged caps how many divergences are printed.
const maxLogged = 20

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	tablePath := flag.String("table", "", "Stored feature table; defaults to the configured output")
	tolerance := flag.Float64("tolerance", verification.FloatTolerance, "Absolute or relative float tolerance")
	outputJSON := flag.Bool("json", false, "Print the verification report as JSON")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *tablePath == "" {
		*tablePath = cfg.OutputPath()
	}

	report, err := verify(ctx, cfg, *tablePath, *tolerance, log)
	if err != nil {
		log.Error("verification failed to run", zap.Error(err))
		log.Sync() //nolint:errcheck
		os.Exit(1)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Error("encode report", zap.Error(err))
		}
	}

	if !report.Match() {
		for i, d := range report.Divergences {
			if i == maxLogged {
				log.Warn("more divergences omitted", zap.Int("total", len(report.Divergences)))
				break
			}
			log.Warn("divergence", zap.String("detail", d.String()))
		}
		log.Error("stored table does not match recomputation", zap.Error(report.Err()))
		log.Sync() //nolint:errcheck
		os.Exit(1)
	}

	log.Info("stored table matches recomputation",
		zap.String("table", *tablePath),
		zap.Int("rows", report.MatchedRows),
	)
}

func verify(ctx context.Context, cfg *config.Config, tablePath string, tol float64, log *zap.Logger) (*verification.VerificationReport, error) {
	stored, err := tabular.ReadFeatures(tablePath)
	if err != nil {
		return nil, err
	}

	src, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeSource()

	start, end, err := cfg.DateRange()
	if err != nil {
		return nil, err
	}
	engine, err := features.NewEngine(features.Options{
		Window:     cfg.Features.Window,
		Parallel:   cfg.Features.Parallel,
		MaxWorkers: cfg.Features.MaxWorkers,
	})
	if err != nil {
		return nil, err
	}

	// No sinks, ledger or report: the run only recomputes.
	runner, err := pipeline.NewRunner(pipeline.Options{
		Source:   src,
		Engine:   engine,
		Universe: cfg.DomainUniverse(),
		Start:    start,
		End:      end,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	result, err := runner.Run(ctx)
	if err != nil {
		return nil, err
	}

	checkManifest(tablePath, result.Fingerprint, engine.Window(), log)

	return verification.CompareTables(result.Records, stored, tol), nil
}

// checkManifest warns when the stored table was built from other inputs or another window.
func checkManifest(tablePath, fingerprint string, window int, log *zap.Logger) {
	m, err := tabular.ReadManifest(tabular.ManifestPath(tablePath))
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("no manifest next to table", zap.String("table", tablePath))
		return
	}
	if err != nil {
		log.Warn("read manifest", zap.Error(err))
		return
	}
	if m.InputFingerprint != fingerprint {
		log.Warn("input fingerprint changed since the table was written",
			zap.String("stored", m.InputFingerprint),
			zap.String("current", fingerprint),
			zap.String("run_id", m.RunID),
		)
	}
	if m.Window != window {
		log.Warn("window differs from the stored table", zap.Int("stored", m.Window), zap.Int("current", window))
	}
}

func openSource(ctx context.Context, cfg *config.Config) (pipeline.Source, func(), error) {
	if cfg.Storage.Source != "postgres" {
		return &pipeline.FileSource{
			PricesPath: cfg.PricesPath(),
			VixPath:    cfg.VixPath(),
			VixTicker:  cfg.Data.VixTicker,
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return &pipeline.StoreSource{
		Prices:     pgstore.NewPriceStore(pool),
		Volatility: pgstore.NewVolatilityStore(pool),
		Tickers:    cfg.Tickers(),
		Label:      "postgres",
	}, pool.Close, nil
}
