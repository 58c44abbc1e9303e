// Package tabular reads the raw input tables and writes the feature table to disk.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"capital-flow-lab/internal/normalization"
)

// Format is an on-disk table format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return FormatParquet, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported table format: %s", path)
}

// ReadRaw reads an input table of any supported format into untyped cells.
// A missing file returns an error matching os.ErrNotExist.
func ReadRaw(path string) (normalization.RawTable, error) {
	format, err := FormatOf(path)
	if err != nil {
		return normalization.RawTable{}, err
	}
	switch format {
	case FormatParquet:
		return ReadRawParquet(path)
	case FormatCSV:
		return ReadRawCSV(path)
	}
	return normalization.RawTable{}, fmt.Errorf("%s is an output-only format", format)
}

// ReadRawOptional is ReadRaw that turns a missing file into an empty table with the given header.
func ReadRawOptional(path string, header []string) (normalization.RawTable, bool, error) {
	t, err := ReadRaw(path)
	if errors.Is(err, os.ErrNotExist) {
		return normalization.RawTable{Header: header}, false, nil
	}
	if err != nil {
		return normalization.RawTable{}, false, err
	}
	return t, true, nil
}

// ReadRawCSV reads a CSV file with a header row.
func ReadRawCSV(path string) (normalization.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return normalization.RawTable{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return readCSV(f)
}

func readCSV(r io.Reader) (normalization.RawTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return normalization.RawTable{}, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return normalization.RawTable{}, fmt.Errorf("read csv header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return normalization.RawTable{}, fmt.Errorf("read csv row %d: %w", len(rows), err)
		}
		rows = append(rows, rec)
	}

	return normalization.RawTable{Header: header, Rows: rows}, nil
}
