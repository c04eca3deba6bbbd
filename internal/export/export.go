package export

import (
	"fmt"
	"strings"

	"coinchart/internal/domain"
)

// Exporter writes a candle series to a file in one format.
type Exporter interface {
	Save(candles []domain.Candle, path string) error
	Extension() string
}

// Formats lists the supported export formats.
func Formats() []string {
	return []string{"csv", "json", "yaml", "parquet"}
}

// New returns the exporter for format (csv, json, yaml, parquet).
func New(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVExporter{}, nil
	case "json":
		return JSONExporter{}, nil
	case "yaml", "yml":
		return YAMLExporter{}, nil
	case "parquet":
		return ParquetExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (use: %s)", format, strings.Join(Formats(), ", "))
	}
}
