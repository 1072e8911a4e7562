package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kabinet-ai/kabinet/internal/app"
)

var syncRecursive bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the knowledge base with the remote corpus",
	Long: `Sync lists the remote corpus, indexes new and changed documents
(download, extract, chunk, embed), and deactivates documents that
disappeared. Unchanged documents are skipped by fingerprint.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncRecursive, "recursive", false, "walk subdirectories of the corpus root")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("recursive") {
		cfg.RemoteRecursive = syncRecursive
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("closing application", "error", closeErr)
		}
	}()

	report, err := a.Indexer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	fmt.Printf("Sync finished in %s\n", report.Duration.Round(10*time.Millisecond))
	fmt.Printf("  indexed:     %d\n", report.Indexed)
	fmt.Printf("  unchanged:   %d\n", report.Unchanged)
	fmt.Printf("  reactivated: %d\n", report.Reactivated)
	fmt.Printf("  deactivated: %d\n", report.Deactivated)
	if len(report.Failures) > 0 {
		fmt.Printf("  failed:      %d\n", len(report.Failures))
		for _, f := range report.Failures {
			printErr("  %s: %v", f.Path, f.Err)
		}
	}
	return nil
}
