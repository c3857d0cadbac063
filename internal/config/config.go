package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Data      DataConfig
	Catalog   CatalogConfig
	Earthdata EarthdataConfig
	Eumetsat  EumetsatConfig
	Worker    WorkerConfig
	Job       JobConfig
	Logging   LoggingConfig
}

// DataConfig locates the local download trees.
type DataConfig struct {
	Root string // granule and occultation caches live under here
}

// CatalogConfig points at the RO occultation metadata index.
type CatalogConfig struct {
	URL string
}

type EarthdataConfig struct {
	SearchURL string
	Token     string
}

type EumetsatConfig struct {
	SearchURL string
	Key       string
	Secret    string
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

// JobConfig carries the per-run matching parameters.
type JobConfig struct {
	Satellite        string
	Mission          string
	ProcessingCenter string
	Author           string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Data: DataConfig{
			Root: getEnv("DATA_ROOT", "./data"),
		},
		Catalog: CatalogConfig{
			URL: getEnv("RO_CATALOG_URL", "https://gnss-ro-data.s3.amazonaws.com"),
		},
		Earthdata: EarthdataConfig{
			SearchURL: getEnv("EARTHDATA_SEARCH_URL", "https://cmr.earthdata.nasa.gov/search/granules.json"),
			Token:     getEnv("EARTHDATA_TOKEN", ""),
		},
		Eumetsat: EumetsatConfig{
			SearchURL: getEnv("EUMETSAT_SEARCH_URL", "https://api.eumetsat.int/data/search-products/1.0.0/search"),
			Key:       getEnv("EUMETSAT_KEY", ""),
			Secret:    getEnv("EUMETSAT_SECRET", ""),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 4),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 16),
		},
		Job: JobConfig{
			Satellite:        getEnv("SATELLITE", "Suomi-NPP"),
			Mission:          getEnv("MISSION", "cosmic2"),
			ProcessingCenter: getEnv("PROCESSING_CENTER", "ucar"),
			Author:           getEnv("AUTHOR", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Data.Root == "" {
		return fmt.Errorf("DATA_ROOT must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Job.ProcessingCenter == "" {
		return fmt.Errorf("PROCESSING_CENTER must not be empty")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}
