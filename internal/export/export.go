// Package export writes the assembled table to CSV and Parquet files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/seenimoa/fredcycle/internal/pipeline"
)

// Format is an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts "csv" or "parquet", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or parquet)", s)
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Write encodes t in format f.
func Write(w io.Writer, t *pipeline.Table, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatParquet:
		return WriteParquet(w, t)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// ToFile writes t to path, creating parent directories.
func ToFile(path string, t *pipeline.Table, f Format) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	if err := Write(file, t, f); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// WriteCSV writes a header of date, numeric columns, then label columns.
// Nulls are empty cells.
func WriteCSV(w io.Writer, t *pipeline.Table) error {
	numeric := t.Columns()
	labels := t.LabelColumns()

	cw := csv.NewWriter(w)
	header := append([]string{"date"}, numeric...)
	if err := cw.Write(append(header, labels...)); err != nil {
		return err
	}

	cols := make([][]string, 0, len(numeric)+len(labels))
	for _, name := range numeric {
		vals, _ := t.Column(name)
		cells := make([]string, len(vals))
		for i, v := range vals {
			if v.Valid {
				cells[i] = v.String()
			}
		}
		cols = append(cols, cells)
	}
	for _, name := range labels {
		vals, _ := t.Labels(name)
		cols = append(cols, vals)
	}

	record := make([]string, 1+len(cols))
	for i, d := range t.Dates() {
		record[0] = d.String()
		for j, col := range cols {
			record[j+1] = col[i]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row is the Parquet row layout. The table's columns vary with
// configuration, so values and labels are stored as maps; a null value is
// absent from Values.
type Row struct {
	Date   string             `parquet:"date,dict"`
	Values map[string]float64 `parquet:"values" parquet-key:",dict,zstd" parquet-value:",zstd"`
	Labels map[string]string  `parquet:"labels" parquet-key:",dict,zstd" parquet-value:",dict,zstd"`
}

// WriteParquet writes one Row per table row.
func WriteParquet(w io.Writer, t *pipeline.Table) error {
	rows := make([]Row, 0, t.Len())
	for _, r := range t.Rows() {
		row := Row{
			Date:   r.Date.String(),
			Values: make(map[string]float64, len(r.Values)),
			Labels: r.Labels,
		}
		for name, v := range r.Values {
			if v.Valid {
				row.Values[name] = v.Float
			}
		}
		rows = append(rows, row)
	}

	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(rows); err != nil {
		return err
	}
	return pw.Close()
}
