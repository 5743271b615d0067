package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/orc2626-tech/botwatch/internal/api"
	"github.com/orc2626-tech/botwatch/internal/config"
	"github.com/orc2626-tech/botwatch/internal/version"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:     "botwatch",
	Short:   "Operator console for the trading bot",
	Long:    "Watch live bot state over the shared stream connection and send control commands.",
	Version: version.String(),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/botwatch.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig loads and validates the YAML config named by --config.
func loadConfig() (*config.WatchConfig, error) {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger honoring --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// newAPIClient builds the REST client from config.
func newAPIClient(cfg *config.WatchConfig, logger *slog.Logger) *api.Client {
	return api.NewClient(
		cfg.Server.BaseURL,
		cfg.Server.AdminToken,
		api.WithTimeout(cfg.Server.Timeout),
		api.WithLogger(logger),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
