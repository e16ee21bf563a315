// Package export writes a collected Dataset as CSV or newline-delimited JSON.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Sternrassler/ebay-data-client/pkg/pagination"
)

// Format names an output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv", "json" and "jsonl", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json", "jsonl":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Write writes ds to w in the given format.
func Write(w io.Writer, format Format, ds *pagination.Dataset) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, ds)
	case FormatJSON:
		return WriteJSON(w, ds)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteCSV writes a header of ds.Columns() followed by one row per record.
// Missing cells are empty.
func WriteCSV(w io.Writer, ds *pagination.Dataset) error {
	writer := csv.NewWriter(w)

	cols := ds.Columns()
	if err := writer.Write(cols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(cols))
	for _, row := range ds.Rows() {
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// WriteJSON writes one JSON object per record, one per line.
func WriteJSON(w io.Writer, ds *pagination.Dataset) error {
	buffer := bufio.NewWriter(w)
	encoder := json.NewEncoder(buffer)

	for _, rec := range ds.Records {
		if err := encoder.Encode(rec); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := buffer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// WriteFile writes ds to filename, creating parent directories.
func WriteFile(filename string, format Format, ds *pagination.Dataset) error {
	if err := ensureDir(filename); err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s file: %w", format, err)
	}

	if err := Write(f, format, ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// formatValue renders a flattened leaf as a CSV cell. Multi-valued fields
// are joined with "|".
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatValue(e)
		}
		return strings.Join(parts, "|")
	default:
		return fmt.Sprint(t)
	}
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
