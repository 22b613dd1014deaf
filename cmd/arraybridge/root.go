package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/VanDung-dev/arraybridge/metrics"
)

// app carries what the persistent flags set up for every command.
type app struct {
	configPath string
	cfg        Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	server     *metrics.MetricsServer
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: DefaultConfig(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           Name,
		Short:         "Expose branch-oriented columnar files as arrays of structs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.String("log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("namespace", "", "schema namespace")
	flags.Int("chunk-bytes", 0, "read buffer size in bytes")
	flags.Int("cache-size", 0, "branches cached per partition handle")
	flags.Int("listing-workers", a.cfg.ListingWorkers, "partitions opened concurrently while counting entries")

	root.AddCommand(
		newSchemaCmd(a),
		newEntriesCmd(a),
		newFetchCmd(a),
		newStoreCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("namespace") {
		cfg.Namespace, _ = flags.GetString("namespace")
	}
	if flags.Changed("chunk-bytes") {
		cfg.ChunkBytes, _ = flags.GetInt("chunk-bytes")
	}
	if flags.Changed("cache-size") {
		cfg.CacheSize, _ = flags.GetInt("cache-size")
	}
	if flags.Changed("listing-workers") {
		cfg.ListingWorkers, _ = flags.GetInt("listing-workers")
	}
	a.cfg = cfg

	a.logger, err = NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		a.metrics = metrics.NewMetrics(reg, Name)
		a.server = metrics.NewMetricsServer(cfg.MetricsAddr, reg)
		a.server.StartAsync()
		a.logger.Info("metrics server started", zap.String("addr", cfg.MetricsAddr))
	}
	return nil
}

func (a *app) teardown() error {
	_ = a.logger.Sync()
	if a.server != nil {
		return a.server.Stop()
	}
	return nil
}
