package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/observability"
	"capital-flow-lab/internal/storage"
	"capital-flow-lab/internal/tabular"
)

// Output is a finished feature table with its run metadata.
type Output struct {
	RunID       string
	Fingerprint string
	Window      int
	GeneratedAt time.Time
	Records     []*domain.FlowFeatureRecord
	Undefined   map[string]int
}

// Sink receives the finished feature table. Sinks run only after the whole transform succeeded,
// one after another; the Runner writes file sinks after every store sink.
type Sink interface {
	Name() string
	Write(ctx context.Context, out *Output) error
}

// FileSink writes the table to Path plus a YAML manifest next to it.
// The table is written to a temporary file first and renamed into place,
// so a failed write leaves any previous table untouched.
type FileSink struct {
	Path   string
	Format tabular.Format
}

// Name returns "file".
func (s *FileSink) Name() string { return "file" }

// Write writes the table and its manifest.
func (s *FileSink) Write(_ context.Context, out *Output) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(s.Path), "."+filepath.Base(s.Path)+".tmp")
	if err := tabular.WriteFeatures(tmp, s.Format, out.Records); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move %s into place: %w", s.Path, err)
	}

	return tabular.WriteManifest(tabular.ManifestPath(s.Path), manifestOf(s.Path, s.Format, out))
}

func manifestOf(path string, format tabular.Format, out *Output) *tabular.Manifest {
	m := &tabular.Manifest{
		RunID:            out.RunID,
		GeneratedAt:      out.GeneratedAt,
		Output:           filepath.Base(path),
		Format:           format,
		Rows:             len(out.Records),
		Tickers:          []string{},
		Window:           out.Window,
		InputFingerprint: out.Fingerprint,
		Columns:          tabular.FeatureColumns,
		Undefined:        out.Undefined,
	}

	seen := make(map[string]bool)
	var first, last time.Time
	for _, r := range out.Records {
		if !seen[r.Ticker] {
			seen[r.Ticker] = true
			m.Tickers = append(m.Tickers, r.Ticker)
		}
		if first.IsZero() || r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	if len(out.Records) > 0 {
		m.FirstDate = domain.DateKey(first)
		m.LastDate = domain.DateKey(last)
	}
	return m
}

// StoreSink refreshes a feature store with the finished table.
type StoreSink struct {
	Store   storage.FlowFeatureStore
	Label   string                 // e.g. clickhouse
	Metrics *observability.Metrics // optional query timings
}

// Name returns the configured label.
func (s *StoreSink) Name() string {
	if s.Label == "" {
		return "store"
	}
	return s.Label
}

// Write replaces the stored table.
func (s *StoreSink) Write(ctx context.Context, out *Output) error {
	start := time.Now()
	err := s.Store.ReplaceAll(ctx, out.Records)
	if s.Metrics != nil {
		s.Metrics.RecordDBQuery(s.Name(), "replace_features", start, err)
	}
	if err != nil {
		return fmt.Errorf("replace %s feature table: %w", s.Name(), err)
	}
	return nil
}
