package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 60, cfg.Features.Window)
	assert.Equal(t, "parquet", cfg.Data.Format)
	assert.Equal(t, "file", cfg.Storage.Source)
	assert.Equal(t, filepath.Join("data", "raw", "prices.parquet"), cfg.PricesPath())
	assert.Equal(t, filepath.Join("data", "raw", "vix.parquet"), cfg.VixPath())
	assert.Equal(t, filepath.Join("data", "processed", "flows.parquet"), cfg.OutputPath())
	assert.Equal(t, []string{"BTC-USD", "ETH-USD", "IWM", "QQQ", "SPY", "XAGUSD", "XAUUSD"}, cfg.Tickers())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
data:
  dir: /tmp/flows
  format: csv
universe:
  indices:
    - ticker: SPY
      type: etf_equity
range:
  start_date: "2020-01-01"
  end_date: "2024-12-31"
features:
  window: 20
  parallel: true
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "csv", cfg.Data.Format)
	assert.Equal(t, filepath.Join("/tmp/flows", "processed", "flows.csv"), cfg.OutputPath())
	assert.Equal(t, 20, cfg.Features.Window)
	assert.True(t, cfg.Features.Parallel)
	assert.Equal(t, []string{"SPY"}, cfg.Tickers())
	assert.Equal(t, "indices", cfg.DomainUniverse().GroupOf("SPY"))

	start, end, err := cfg.DateRange()
	require.NoError(t, err)
	assert.Equal(t, 2020, start.Year())
	assert.Equal(t, 2024, end.Year())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FLOWLAB_FEATURES_WINDOW", "30")
	t.Setenv("FLOWLAB_DATA_DIR", "/srv/data")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Features.Window)
	assert.Equal(t, filepath.Join("/srv/data", "raw", "prices.parquet"), cfg.PricesPath())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"window too small", func(c *Config) { c.Features.Window = 1 }},
		{"unknown format", func(c *Config) { c.Data.Format = "json" }},
		{"unknown source", func(c *Config) { c.Storage.Source = "s3" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Source = "postgres" }},
		{"clickhouse without dsn", func(c *Config) { c.Storage.Clickhouse = true }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad start date", func(c *Config) { c.Range.StartDate = "01/02/2020" }},
		{"inverted range", func(c *Config) { c.Range.StartDate, c.Range.EndDate = "2024-01-02", "2024-01-01" }},
		{"bad asset type", func(c *Config) {
			c.Universe = map[string][]InstrumentConfig{"x": {{Ticker: "SPY", Type: "bond"}}}
		}},
		{"ticker in two groups", func(c *Config) {
			c.Universe = map[string][]InstrumentConfig{
				"a": {{Ticker: "SPY", Type: "etf_equity"}},
				"b": {{Ticker: "SPY", Type: "etf_equity"}},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Tickers(), 7)
	assert.Equal(t, "^VIX", cfg.Data.VixTicker)
	start, end, err := cfg.DateRange()
	require.NoError(t, err)
	assert.Equal(t, 2015, start.Year())
	assert.True(t, end.IsZero())
}
