package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CSVPath returns the ticker coverage CSV path written next to a markdown report.
func CSVPath(markdownPath string) string {
	return strings.TrimSuffix(markdownPath, filepath.Ext(markdownPath)) + ".csv"
}

// WriteFiles writes the markdown report to markdownPath and the ticker coverage table next to it.
func WriteFiles(r *Report, markdownPath string) error {
	if err := os.MkdirAll(filepath.Dir(markdownPath), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(markdownPath, []byte(RenderMarkdown(r)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	csv, err := RenderCSV(r.TickerCoverage)
	if err != nil {
		return err
	}
	if err := os.WriteFile(CSVPath(markdownPath), []byte(csv), 0o644); err != nil {
		return fmt.Errorf("write coverage csv: %w", err)
	}
	return nil
}
