package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dhamsey3/poetry/scraper"
	"github.com/dhamsey3/poetry/site"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the structure of the optional poetry.yaml.
type FileConfig struct {
	Scraper       scraper.Config     `yaml:"scraper"`
	FeaturedEbook site.FeaturedEbook `yaml:"featured_ebook"`
}

// LoadConfigFile loads configuration from path. Returns nil if the file
// doesn't exist (not an error). Returns error if the file exists but cannot
// be parsed.
func LoadConfigFile(path string) (*FileConfig, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil // File doesn't exist -- not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}
