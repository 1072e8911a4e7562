// Package cmd implements the kabinet CLI: corpus sync, retrieval queries,
// document listing, and the HTTP API server.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kabinet-ai/kabinet/internal/config"
	"github.com/kabinet-ai/kabinet/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "kabinet",
	Short: "Kabinet - knowledge base indexing and retrieval",
	Long: `Kabinet keeps a searchable knowledge base in PostgreSQL, synced from a
remote document corpus. Documents are chunked, embedded, and retrieved by
semantic similarity under a token budget.`,
	SilenceUsage: true,
}

// Execute is the entry point for the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig loads and validates configuration, and installs the logger.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating config: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func printErr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
