// Package main regenerates the coverage report for an already written feature table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"capital-flow-lab/internal/config"
	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/logger"
	"capital-flow-lab/internal/reporting"
	"capital-flow-lab/internal/storage"
	chstore "capital-flow-lab/internal/storage/clickhouse"
	"capital-flow-lab/internal/storage/sqlite"
	"capital-flow-lab/internal/tabular"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	from := flag.String("from", "file", "Where the feature table lives: file or clickhouse")
	tablePath := flag.String("table", "", "Feature table path; defaults to the configured output")
	output := flag.String("output", "", "Markdown report path; defaults to the configured report")
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
	if *output == "" {
		*output = cfg.ReportPath()
	}

	records, runID, err := loadTable(ctx, cfg, *from, *tablePath)
	if err != nil {
		log.Error("load feature table", zap.String("from", *from), zap.Error(err))
		log.Sync() //nolint:errcheck
		os.Exit(1)
	}

	report := reporting.NewGenerator(cfg.DomainUniverse(), cfg.Features.Window).Generate(runID, records)
	if err := reporting.WriteFiles(report, *output); err != nil {
		log.Error("write report", zap.Error(err))
		log.Sync() //nolint:errcheck
		os.Exit(1)
	}

	log.Info("coverage report generated",
		zap.String("run_id", runID),
		zap.String("markdown", *output),
		zap.String("csv", reporting.CSVPath(*output)),
		zap.Int("rows", len(records)),
		zap.Bool("checks_passed", report.DataQuality.AllChecksPassed),
	)
	if !report.DataQuality.AllChecksPassed {
		for _, e := range report.DataQuality.IntegrityErrors {
			log.Warn("coverage check failed", zap.String("error", e))
		}
	}
}

// loadTable reads the stored table and the run that produced it.
// File tables take the run ID from their manifest; ClickHouse tables from the run ledger.
func loadTable(ctx context.Context, cfg *config.Config, from, path string) ([]*domain.FlowFeatureRecord, string, error) {
	switch from {
	case "file":
		records, err := tabular.ReadFeatures(path)
		if err != nil {
			return nil, "", err
		}
		runID := ""
		if m, err := tabular.ReadManifest(tabular.ManifestPath(path)); err == nil {
			runID = m.RunID
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, "", err
		}
		return records, runID, nil

	case "clickhouse":
		if cfg.Storage.ClickhouseDSN == "" {
			return nil, "", errors.New("storage.clickhouse_dsn is required to read from clickhouse")
		}
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			return nil, "", err
		}
		defer conn.Close()

		records, err := chstore.NewFlowFeatureStore(conn).GetAll(ctx)
		if err != nil {
			return nil, "", err
		}
		runID, err := latestRunID(ctx, cfg.Storage.LedgerPath)
		if err != nil {
			return nil, "", err
		}
		return records, runID, nil
	}
	return nil, "", fmt.Errorf("unknown table location %q", from)
}

func latestRunID(ctx context.Context, ledgerPath string) (string, error) {
	if ledgerPath == "" {
		return "", nil
	}
	ledger, err := sqlite.Open(ledgerPath)
	if err != nil {
		return "", err
	}
	defer ledger.Close()

	run, err := ledger.Latest(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if run.Status != domain.RunStatusSucceeded {
		return "", fmt.Errorf("latest run %s did not succeed (%s)", run.RunID, run.Status)
	}
	return run.RunID, nil
}
