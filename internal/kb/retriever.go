package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kabinet-ai/kabinet/internal/embed"
	"github.com/kabinet-ai/kabinet/internal/extract"
	"github.com/kabinet-ai/kabinet/internal/store"
)

// Searcher defines the storage operations the Retriever needs.
type Searcher interface {
	SearchChunks(ctx context.Context, arg store.SearchChunksParams) ([]store.SearchHit, error)
	GetConversation(ctx context.Context, id uuid.UUID) (store.Conversation, error)
	CountEligibleDocuments(ctx context.Context, conversationID uuid.UUID) (int, error)
}

// RetrieverConfig holds retrieval defaults. Request fields override them
// per call.
type RetrieverConfig struct {
	TopK int
	// MaxContextTokens bounds the assembled context, estimated.
	MaxContextTokens int
	// MinSimilarity drops hits below this cosine similarity. Zero keeps all.
	MinSimilarity float64
}

// Request is one retrieval query.
type Request struct {
	Query string
	// ConversationID scopes retrieval to that conversation's enabled
	// documents and honors its KB mode. Nil searches the whole corpus.
	ConversationID *uuid.UUID
	// TopK and MaxTokens override the configured defaults when positive.
	TopK      int
	MaxTokens int
}

// Snippet is one retrieved passage with provenance for citations.
type Snippet struct {
	Text         string
	DocumentPath string
	Ordinal      int
	Locations    []extract.Location
	Similarity   float64
}

// Citation renders the snippet's provenance, e.g. "refunds.pdf, page 3".
func (s Snippet) Citation() string {
	if len(s.Locations) == 0 {
		return s.DocumentPath
	}
	parts := make([]string, 0, len(s.Locations))
	for _, l := range s.Locations {
		if str := l.String(); str != "" {
			parts = append(parts, str)
		}
	}
	if len(parts) == 0 {
		return s.DocumentPath
	}
	return s.DocumentPath + ", " + strings.Join(parts, ", ")
}

// Result is the assembled retrieval context.
type Result struct {
	Snippets []Snippet
	// TokensUsed is the estimated size of the included snippets.
	TokensUsed int
	// UsedFallback is set when retrieval could not contribute context:
	// KB off, no eligible documents, or nothing cleared the similarity
	// threshold. The caller should answer from general knowledge.
	UsedFallback bool
}

// Retriever answers queries from the indexed corpus. Given the same catalog
// state and query, results are deterministic.
type Retriever struct {
	embedder embed.Embedder
	searcher Searcher
	cfg      RetrieverConfig
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. A nil logger falls back to slog.Default.
func NewRetriever(embedder embed.Embedder, searcher Searcher, cfg RetrieverConfig, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve embeds the query, searches the catalog, and assembles snippets
// greedily in similarity order until one would overflow the token budget.
// Assembly stops at the first overflow rather than skipping ahead, so the
// context is always a prefix of the ranking.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("retrieve: empty query")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	budget := req.MaxTokens
	if budget <= 0 {
		budget = r.cfg.MaxContextTokens
	}

	if req.ConversationID != nil {
		conv, err := r.searcher.GetConversation(ctx, *req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("retrieve: %w", err)
		}
		if conv.KBMode == store.KBModeOff {
			return &Result{UsedFallback: true}, nil
		}
		n, err := r.searcher.CountEligibleDocuments(ctx, *req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("retrieve: %w", err)
		}
		if n == 0 {
			return &Result{UsedFallback: true}, nil
		}
	}

	vectors, err := r.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}

	hits, err := r.searcher.SearchChunks(ctx, store.SearchChunksParams{
		Embedding:      vectors[0],
		ConversationID: req.ConversationID,
		Limit:          topK,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	result := &Result{}
	for _, h := range hits {
		if r.cfg.MinSimilarity > 0 && h.Similarity < r.cfg.MinSimilarity {
			continue
		}
		cost := estimateTokens(h.Text)
		if result.TokensUsed+cost > budget {
			break
		}
		result.Snippets = append(result.Snippets, Snippet{
			Text:         h.Text,
			DocumentPath: h.DocumentPath,
			Ordinal:      h.Ordinal,
			Locations:    decodeLocations(h.Location),
			Similarity:   h.Similarity,
		})
		result.TokensUsed += cost
	}

	if len(result.Snippets) == 0 {
		result.UsedFallback = true
	}

	r.logger.Debug("retrieved context",
		"query_len", len(req.Query),
		"hits", len(hits),
		"snippets", len(result.Snippets),
		"tokens", result.TokensUsed,
		"fallback", result.UsedFallback)
	return result, nil
}

// BuildPrompt renders the retrieval result as a numbered context block for
// a chat model, each snippet tagged with its citation.
func BuildPrompt(res *Result, query string) string {
	var b strings.Builder
	if res != nil && len(res.Snippets) > 0 {
		b.WriteString("Use the following knowledge base excerpts to answer. Cite sources.\n\n")
		for i, s := range res.Snippets {
			fmt.Fprintf(&b, "[%d] (%s)\n%s\n\n", i+1, s.Citation(), s.Text)
		}
	} else {
		b.WriteString("No relevant knowledge base content was found. Answer from general knowledge and say so.\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

func decodeLocations(raw json.RawMessage) []extract.Location {
	if len(raw) == 0 {
		return nil
	}
	var cl chunkLocations
	if err := json.Unmarshal(raw, &cl); err != nil {
		return nil
	}
	return cl.Locations
}
