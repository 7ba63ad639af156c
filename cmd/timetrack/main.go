package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"timetrack/internal/config"
)

var Version = "dev"

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "timetrack",
		Short:         "Time tracking service: timers, manual entries and timesheets",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "YAML config file (env vars override)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(timesheetCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup builds the logger and loads configuration shared by all commands.
func setup() (*slog.Logger, config.Config, error) {
	cfg, err := config.Load(configPath)
	level := slog.LevelInfo
	if err == nil {
		level = cfg.Level()
	}
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		return logger, cfg, err
	}
	return logger, cfg, nil
}
