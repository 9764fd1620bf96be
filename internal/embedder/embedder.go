// Package embedder generates dense vectors for chunk text, with retry,
// caching, and a deterministic mock for tests.
package embedder

import "context"

// Embedder turns texts into fixed-length vectors. Implementations return one
// vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}
