package export

import (
	"encoding/json"
	"os"

	"coinchart/internal/domain"
)

// JSONExporter writes the series as an indented JSON array.
type JSONExporter struct{}

func (JSONExporter) Extension() string { return "json" }

func (JSONExporter) Save(candles []domain.Candle, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if candles == nil {
		candles = []domain.Candle{}
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(candles)
}
