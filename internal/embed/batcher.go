package embed

import (
	"context"
	"fmt"

	"github.com/kabinet-ai/kabinet/internal/backoff"
	"github.com/kabinet-ai/kabinet/internal/log"
)

// BatcherConfig configures batching and validation.
type BatcherConfig struct {
	// BatchSize is the maximum number of texts per upstream call.
	BatchSize int

	// Dim is the vector dimension provisioned in the store schema.
	// Every returned vector is checked against it.
	Dim int

	// Retry bounds transient-failure retries per batch.
	Retry backoff.Config
}

// Batcher wraps an Embedder with batching, retry, and dimension validation.
// A batch that still fails after retries fails the whole call with a typed
// error; the caller never receives fewer vectors than inputs.
type Batcher struct {
	inner  Embedder
	cfg    BatcherConfig
	logger log.Logger
}

// NewBatcher creates a Batcher around inner.
func NewBatcher(inner Embedder, cfg BatcherConfig, logger log.Logger) *Batcher {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Batcher{inner: inner, cfg: cfg, logger: logger}
}

// Embed implements Embedder.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var result [][]float32
		err := backoff.Retry(ctx, b.cfg.Retry, func(ctx context.Context) error {
			var embedErr error
			result, embedErr = b.inner.Embed(ctx, batch)
			return embedErr
		})
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}

		if len(result) != len(batch) {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors for %d inputs", start, end, len(result), len(batch))
		}
		for _, v := range result {
			if b.cfg.Dim > 0 && len(v) != b.cfg.Dim {
				return nil, &DimensionMismatchError{Want: b.cfg.Dim, Got: len(v)}
			}
		}

		vectors = append(vectors, result...)
		b.logger.Debug("embedded batch", "from", start, "to", end, "total", len(texts))
	}

	return vectors, nil
}
