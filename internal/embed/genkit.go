package embed

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Genkit adapts a Genkit ai.Embedder to the Embedder interface.
type Genkit struct {
	embedder ai.Embedder
}

// NewGenkit wraps a Genkit embedder. The caller obtains one from the
// provider plugin (e.g. googlegenai.GoogleAIEmbedder).
func NewGenkit(embedder ai.Embedder) *Genkit {
	return &Genkit{embedder: embedder}
}

// Embed implements Embedder.
func (g *Genkit) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
		vectors[i] = e.Embedding
	}
	return vectors, nil
}
