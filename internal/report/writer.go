// Package report renders metric rows for downstream consumers.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// Format is an output encoding of the metric rows.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// csvHeader is the column order of the CSV output.
var csvHeader = []string{"date", "category", "metric", "value"}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want csv or json)", s)
	}
}

// Write encodes rows to w in the given format.
func Write(w io.Writer, format Format, rows []domain.MetricRow) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteCSV writes a header line followed by one line per row.
func WriteCSV(w io.Writer, rows []domain.MetricRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Date, r.Category, r.Metric, r.Value.String()}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the rows as a pretty-printed JSON array.
func WriteJSON(w io.Writer, rows []domain.MetricRow) error {
	if rows == nil {
		rows = []domain.MetricRow{}
	}
	// Marshal the results into a pretty-printed JSON string.
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rows to JSON: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}
