// Package embed adapts an external embedding model behind a single
// fixed-shape interface. The core depends only on Embedder; provider-specific
// variation is resolved here at the boundary, never inside retrieval logic.
package embed

import (
	"context"
	"fmt"
)

// Embedder converts an ordered sequence of text passages into an equal-length
// ordered sequence of fixed-dimension vectors. Implementations must never
// return fewer vectors than inputs: a partial result would silently misalign
// passage-to-vector correspondence, so any shortfall is an error.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DimensionMismatchError reports a vector whose length differs from the
// dimension provisioned in the store schema. Fatal for the sync run: storing
// it would corrupt the similarity index.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: model returned %d, schema expects %d", e.Got, e.Want)
}
