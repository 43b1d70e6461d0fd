// Command tasks-api runs the multi-user task tracker: the HTTP API, schema
// migrations, the pending-task digest and a development token minter.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/tasks-api/internal/config"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// configLoader loads configuration and the logger configured by it.
type configLoader func() (*config.Config, *slog.Logger, error)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tasks-api",
		Short:         "Multi-user task tracker with priority cascading",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml if present)")

	load := func() (*config.Config, *slog.Logger, error) {
		return loadAppConfig(configPath)
	}

	rootCmd.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		digestCmd(load),
		tokenCmd(load),
	)
	return rootCmd
}

// loadAppConfig loads configuration from path (or the default locations) and
// sets up the JSON logger at the configured level.
func loadAppConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("cascade_mode", cfg.Cascade.Mode),
		slog.Bool("redis_enabled", cfg.Redis.URL != ""),
		slog.Bool("digest_enabled", cfg.Digest.Enabled))
	return cfg, l, nil
}
