package tabular

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest describes one written feature table. It is stored as YAML next to the table.
type Manifest struct {
	RunID            string         `yaml:"run_id"`
	GeneratedAt      time.Time      `yaml:"generated_at"`
	Output           string         `yaml:"output"`
	Format           Format         `yaml:"format"`
	Rows             int            `yaml:"rows"`
	Tickers          []string       `yaml:"tickers"`
	FirstDate        string         `yaml:"first_date,omitempty"`
	LastDate         string         `yaml:"last_date,omitempty"`
	Window           int            `yaml:"window"`
	InputFingerprint string         `yaml:"input_fingerprint"`
	Columns          []string       `yaml:"columns"`
	Undefined        map[string]int `yaml:"undefined"`
}

// ManifestPath returns the sidecar path for a table: flows.parquet -> flows.manifest.yaml.
func ManifestPath(tablePath string) string {
	ext := filepath.Ext(tablePath)
	return strings.TrimSuffix(tablePath, ext) + ".manifest.yaml"
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
