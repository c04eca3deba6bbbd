package export

import (
	"os"

	"gopkg.in/yaml.v3"

	"coinchart/internal/domain"
)

// YAMLExporter writes the series as a YAML sequence.
type YAMLExporter struct{}

func (YAMLExporter) Extension() string { return "yaml" }

func (YAMLExporter) Save(candles []domain.Candle, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(candles); err != nil {
		return err
	}
	return enc.Close()
}
