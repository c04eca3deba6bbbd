package export

import (
	"github.com/parquet-go/parquet-go"

	"coinchart/internal/domain"
)

// ParquetExporter writes the series as a Parquet file.
type ParquetExporter struct{}

func (ParquetExporter) Extension() string { return "parquet" }

func (ParquetExporter) Save(candles []domain.Candle, path string) error {
	return parquet.WriteFile(path, candles)
}
