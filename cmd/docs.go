package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kabinet-ai/kabinet/internal/app"
)

var docsActiveOnly bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List documents in the knowledge base catalog",
	RunE:  runDocs,
}

func init() {
	docsCmd.Flags().BoolVar(&docsActiveOnly, "active", false, "show only active documents")
	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
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

	docs, err := a.Store.ListDocuments(ctx, docsActiveOnly)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents indexed. Run `kabinet sync` first.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTYPE\tSIZE\tACTIVE\tUPDATED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n",
			d.Path, d.MediaType, d.ByteSize, d.Active, d.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
