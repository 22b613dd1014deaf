package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/VanDung-dev/arraybridge/dataset"
	"github.com/VanDung-dev/arraybridge/metrics"
)

// Config is the optional YAML configuration file. Flags override it.
type Config struct {
	Namespace      string `yaml:"namespace"`
	ChunkBytes     int    `yaml:"chunk_bytes"`
	CacheSize      int    `yaml:"cache_size"`
	ListingWorkers int    `yaml:"listing_workers"`
	LogLevel       string `yaml:"log_level"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() Config {
	return Config{
		ListingWorkers: 1,
		LogLevel:       "warn",
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// NewLogger builds a production logger writing to stderr at level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	return cfg.Build()
}

// DatasetOptions converts the configuration into dataset options.
func (c Config) DatasetOptions(logger *zap.Logger, m *metrics.Metrics) []dataset.Option {
	opts := []dataset.Option{
		dataset.WithChunkBytes(c.ChunkBytes),
		dataset.WithListingWorkers(c.ListingWorkers),
		dataset.WithLogger(logger),
	}
	if c.Namespace != "" {
		opts = append(opts, dataset.WithNamespace(c.Namespace))
	}
	if c.CacheSize > 0 {
		opts = append(opts, dataset.WithCacheSize(c.CacheSize))
	}
	if m != nil {
		opts = append(opts, dataset.WithMetrics(m))
	}
	return opts
}
