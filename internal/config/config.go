// Package config loads the pipeline configuration from a file, the environment and defaults.
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"capital-flow-lab/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. FLOWLAB_FEATURES_WINDOW.
const EnvPrefix = "FLOWLAB"

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig                    `mapstructure:"data"`
	Universe map[string][]InstrumentConfig `mapstructure:"universe" validate:"dive,keys,required,endkeys,dive"`
	Range    RangeConfig                   `mapstructure:"range"`
	Features FeaturesConfig                `mapstructure:"features"`
	Storage  StorageConfig                 `mapstructure:"storage"`
	Logging  LoggingConfig                 `mapstructure:"logging"`
	Tracing  TracingConfig                 `mapstructure:"tracing"`
	Metrics  MetricsConfig                 `mapstructure:"metrics"`
}

// DataConfig holds the on-disk data layout.
type DataConfig struct {
	Dir        string `mapstructure:"dir" validate:"required"`
	RawPrices  string `mapstructure:"raw_prices" validate:"required"`
	RawVix     string `mapstructure:"raw_vix" validate:"required"`
	Processed  string `mapstructure:"processed" validate:"required"`
	Format     string `mapstructure:"format" validate:"oneof=parquet csv xlsx"`
	VixTicker  string `mapstructure:"vix_ticker"`
	ReportName string `mapstructure:"report"`
}

// InstrumentConfig describes one universe member.
type InstrumentConfig struct {
	Ticker      string `mapstructure:"ticker" validate:"required"`
	Type        string `mapstructure:"type" validate:"oneof=etf_equity spot_fx crypto"`
	Description string `mapstructure:"description"`
}

// RangeConfig bounds the trading dates a run covers. Empty means unbounded.
type RangeConfig struct {
	StartDate string `mapstructure:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `mapstructure:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// FeaturesConfig holds flow feature engine options.
type FeaturesConfig struct {
	Window     int  `mapstructure:"window" validate:"gte=2"`
	Parallel   bool `mapstructure:"parallel"`
	MaxWorkers int  `mapstructure:"max_workers" validate:"gte=0"`
	Verify     bool `mapstructure:"verify"` // recompute and compare before writing
}

// StorageConfig selects input sources and output sinks.
type StorageConfig struct {
	Source        string `mapstructure:"source" validate:"oneof=file postgres memory"`
	PostgresDSN   string `mapstructure:"postgres_dsn" validate:"required_if=Source postgres"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
	Clickhouse    bool   `mapstructure:"clickhouse"`
	LedgerPath    string `mapstructure:"ledger_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// MetricsConfig holds the Prometheus listener configuration.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the /metrics server
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Universe) == 0 {
		cfg.Universe = DefaultUniverse()
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Data layout
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.raw_prices", "raw/prices.parquet")
	v.SetDefault("data.raw_vix", "raw/vix.parquet")
	v.SetDefault("data.processed", "processed/flows.parquet")
	v.SetDefault("data.format", "parquet")
	v.SetDefault("data.vix_ticker", "^VIX")
	v.SetDefault("data.report", "processed/coverage.md")

	// Range defaults: unbounded
	v.SetDefault("range.start_date", "")
	v.SetDefault("range.end_date", "")

	// Feature engine
	v.SetDefault("features.window", 60)
	v.SetDefault("features.parallel", false)
	v.SetDefault("features.max_workers", 0)
	v.SetDefault("features.verify", false)

	// Storage
	v.SetDefault("storage.source", "file")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.clickhouse", false)
	v.SetDefault("storage.ledger_path", "data/runs.db")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracing
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "capital-flow-lab")

	// Metrics
	v.SetDefault("metrics.addr", "")
}

// DefaultUniverse is the instrument set used when the config names none.
func DefaultUniverse() map[string][]InstrumentConfig {
	return map[string][]InstrumentConfig{
		"indices": {
			{Ticker: "SPY", Type: string(domain.AssetTypeETFEquity), Description: "S&P 500 ETF"},
			{Ticker: "QQQ", Type: string(domain.AssetTypeETFEquity), Description: "Nasdaq 100 ETF"},
			{Ticker: "IWM", Type: string(domain.AssetTypeETFEquity), Description: "Russell 2000 ETF"},
		},
		"metals": {
			{Ticker: "XAUUSD", Type: string(domain.AssetTypeSpotFX), Description: "Gold spot"},
			{Ticker: "XAGUSD", Type: string(domain.AssetTypeSpotFX), Description: "Silver spot"},
		},
		"crypto": {
			{Ticker: "BTC-USD", Type: string(domain.AssetTypeCrypto), Description: "Bitcoin"},
			{Ticker: "ETH-USD", Type: string(domain.AssetTypeCrypto), Description: "Ethereum"},
		},
	}
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Storage.Clickhouse && c.Storage.ClickhouseDSN == "" {
		return fmt.Errorf("storage.clickhouse_dsn is required when storage.clickhouse is enabled")
	}

	start, end, err := c.DateRange()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("range.end_date must not be before range.start_date")
	}

	seen := make(map[string]string)
	for group, instruments := range c.Universe {
		for _, in := range instruments {
			if prev, dup := seen[in.Ticker]; dup {
				return fmt.Errorf("universe: ticker %s listed in both %s and %s", in.Ticker, prev, group)
			}
			seen[in.Ticker] = group
		}
	}

	return nil
}

// DomainUniverse converts the configured groups to a domain.Universe, ordered by group then ticker.
func (c *Config) DomainUniverse() domain.Universe {
	groups := make([]string, 0, len(c.Universe))
	for g := range c.Universe {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var u domain.Universe
	for _, g := range groups {
		for _, in := range c.Universe[g] {
			u.Instruments = append(u.Instruments, domain.Instrument{
				Ticker:      in.Ticker,
				Group:       g,
				Type:        domain.AssetType(in.Type),
				Description: in.Description,
			})
		}
	}
	return u
}

// Tickers returns every universe ticker in sorted order.
func (c *Config) Tickers() []string {
	return c.DomainUniverse().Tickers()
}

// DateRange returns the configured bounds; a zero time means unbounded.
func (c *Config) DateRange() (start, end time.Time, err error) {
	if c.Range.StartDate != "" {
		if start, err = time.Parse(domain.DateLayout, c.Range.StartDate); err != nil {
			return start, end, fmt.Errorf("range.start_date: %w", err)
		}
	}
	if c.Range.EndDate != "" {
		if end, err = time.Parse(domain.DateLayout, c.Range.EndDate); err != nil {
			return start, end, fmt.Errorf("range.end_date: %w", err)
		}
	}
	return start, end, nil
}

// PricesPath returns the raw price table path.
func (c *Config) PricesPath() string {
	return filepath.Join(c.Data.Dir, c.Data.RawPrices)
}

// VixPath returns the raw volatility index table path.
func (c *Config) VixPath() string {
	return filepath.Join(c.Data.Dir, c.Data.RawVix)
}

// OutputPath returns the processed feature table path.
// The extension follows data.format, so processed/flows.parquet becomes processed/flows.csv for csv.
func (c *Config) OutputPath() string {
	p := filepath.Join(c.Data.Dir, c.Data.Processed)
	if c.Data.Format == "" {
		return p
	}
	return strings.TrimSuffix(p, filepath.Ext(p)) + "." + c.Data.Format
}

// ReportPath returns the coverage report path, or "" when disabled.
func (c *Config) ReportPath() string {
	if c.Data.ReportName == "" {
		return ""
	}
	return filepath.Join(c.Data.Dir, c.Data.ReportName)
}
