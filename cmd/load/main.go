// Package main imports raw price and volatility tables into the pipeline's input stores.
//
// Targets:
//   - postgres: insert into daily_prices / volatility_index (migrations applied first)
//   - parquet:  rewrite the inputs in the canonical raw parquet layout under data/raw
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"capital-flow-lab/internal/config"
	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/logger"
	"capital-flow-lab/internal/lookup"
	"capital-flow-lab/internal/normalization"
	"capital-flow-lab/internal/observability"
	"capital-flow-lab/internal/pipeline"
	"capital-flow-lab/internal/storage"
	"capital-flow-lab/internal/storage/migrations"
	pgstore "capital-flow-lab/internal/storage/postgres"
	"capital-flow-lab/internal/tabular"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	target := flag.String("target", "postgres", "Load target: postgres or parquet")
	pricesPath := flag.String("prices", "", "Raw price table (parquet or csv); defaults to data.raw_prices")
	vixPath := flag.String("vix", "", "Raw volatility table (parquet or csv); defaults to data.raw_vix")
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

	src := &pipeline.FileSource{
		PricesPath: firstNonEmpty(*pricesPath, cfg.PricesPath()),
		VixPath:    firstNonEmpty(*vixPath, cfg.VixPath()),
		VixTicker:  cfg.Data.VixTicker,
	}

	inputs, err := readInputs(ctx, src, log)
	if err != nil {
		log.Error("read inputs", zap.Error(err))
		log.Sync() //nolint:errcheck
		os.Exit(1)
	}

	switch *target {
	case "postgres":
		err = loadPostgres(ctx, cfg, inputs, log)
	case "parquet":
		err = writeParquet(cfg, inputs, log)
	default:
		err = fmt.Errorf("unknown target %q", *target)
	}
	if err != nil {
		log.Error("load failed", zap.String("target", *target), zap.Error(err))
		log.Sync() //nolint:errcheck
		os.Exit(1)
	}
}

// readInputs parses and normalizes both tables, rejecting duplicate keys before anything is written.
func readInputs(ctx context.Context, src *pipeline.FileSource, log *zap.Logger) (*normalization.Normalized, error) {
	prices, vols, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	inputs, err := normalization.Normalize(prices, vols)
	if err != nil {
		return nil, err
	}
	if _, err := lookup.NewDateIndex(inputs.Volatility); err != nil {
		return nil, err
	}
	log.Info("inputs read",
		zap.String("prices", src.PricesPath),
		zap.String("vix", src.VixPath),
		zap.Int("price_rows", len(inputs.Prices)),
		zap.Int("vix_rows", len(inputs.Volatility)),
	)
	return inputs, nil
}

func loadPostgres(ctx context.Context, cfg *config.Config, inputs *normalization.Normalized, log *zap.Logger) error {
	if cfg.Storage.PostgresDSN == "" {
		return errors.New("storage.postgres_dsn is required for the postgres target")
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		log.Info("postgres migrations applied", zap.Strings("files", applied))
	}

	prices := pgstore.NewPriceStore(pool)
	vols := pgstore.NewVolatilityStore(pool)
	m := observability.DefaultMetrics

	start := time.Now()
	err = prices.InsertBulk(ctx, inputs.Prices)
	m.RecordDBQuery("postgres", "insert_prices", start, err)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("prices already loaded for at least one (ticker, date): %w", err)
		}
		return err
	}

	start = time.Now()
	err = vols.InsertBulk(ctx, inputs.Volatility)
	m.RecordDBQuery("postgres", "insert_volatility", start, err)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("volatility already loaded for at least one date: %w", err)
		}
		return err
	}

	fields := []zap.Field{
		zap.Int("price_rows", len(inputs.Prices)),
		zap.Int("vix_rows", len(inputs.Volatility)),
	}
	latest, err := vols.LatestDate(ctx)
	switch {
	case err == nil:
		fields = append(fields, zap.String("vix_latest", domain.DateKey(latest)))
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}
	log.Info("postgres load complete", fields...)
	return nil
}

func writeParquet(cfg *config.Config, inputs *normalization.Normalized, log *zap.Logger) error {
	pricesOut := cfg.PricesPath()
	vixOut := cfg.VixPath()

	if err := tabular.WritePricesParquet(pricesOut, inputs.Prices); err != nil {
		return err
	}
	// An empty vix series writes no file; the pipeline reads a missing file as empty.
	if len(inputs.Volatility) > 0 {
		if err := tabular.WriteVolatilityParquet(vixOut, cfg.Data.VixTicker, inputs.Volatility); err != nil {
			return err
		}
	}

	log.Info("parquet inputs written",
		zap.String("prices", pricesOut),
		zap.String("vix", vixOut),
		zap.Int("price_rows", len(inputs.Prices)),
		zap.Int("vix_rows", len(inputs.Volatility)),
	)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
