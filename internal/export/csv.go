package export

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"coinchart/internal/domain"
)

// CSVExporter writes one row per candle with both unix and RFC3339 times.
type CSVExporter struct{}

func (CSVExporter) Extension() string { return "csv" }

func (CSVExporter) Save(candles []domain.Candle, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Write([]string{"time", "time_utc", "open", "high", "low", "close"})
	for _, c := range candles {
		writer.Write([]string{
			strconv.FormatInt(c.Time, 10),
			time.Unix(c.Time, 0).UTC().Format(time.RFC3339),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
		})
	}
	writer.Flush()
	return writer.Error()
}
