package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kabinet-ai/kabinet/internal/app"
	"github.com/kabinet-ai/kabinet/internal/kb"
)

var (
	askConversation string
	askTopK         int
	askShowPrompt   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Retrieve knowledge base context for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "conversation ID to scope retrieval")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "override the number of candidate chunks")
	askCmd.Flags().BoolVar(&askShowPrompt, "prompt", false, "print the assembled prompt instead of snippets")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	req := kb.Request{Query: question, TopK: askTopK}
	if askConversation != "" {
		id, err := uuid.Parse(askConversation)
		if err != nil {
			return fmt.Errorf("invalid conversation ID %q: %w", askConversation, err)
		}
		req.ConversationID = &id
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

	res, err := a.Retriever.Retrieve(ctx, req)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	if askShowPrompt {
		fmt.Println(kb.BuildPrompt(res, question))
		return nil
	}

	if res.UsedFallback {
		fmt.Println("No relevant knowledge base content found; answer from general knowledge.")
		return nil
	}

	fmt.Printf("Found %d snippets (~%d tokens):\n\n", len(res.Snippets), res.TokensUsed)
	for i, s := range res.Snippets {
		fmt.Printf("[%d] %s (similarity %.3f)\n%s\n\n", i+1, s.Citation(), s.Similarity, s.Text)
	}
	return nil
}
