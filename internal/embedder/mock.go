package embedder

import (
	"context"
	"math"
)

// Mock is a deterministic embedder for tests. The same text always gets the
// same unit-length vector, and setting Err forces every call to fail.
type Mock struct {
	dims  int
	Err   error
	Calls int
}

// NewMock returns a mock embedder producing vectors of the given width.
func NewMock(dims int) *Mock {
	if dims <= 0 {
		dims = 64
	}
	return &Mock{dims: dims}
}

// Model identifies the mock in build-info comparisons.
func (m *Mock) Model() string { return "mock" }

// Dimensions returns the vector width.
func (m *Mock) Dimensions() int { return m.dims }

// Embed derives one vector per text from its content hash.
func (m *Mock) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vector(text)
	}
	return out, nil
}

func (m *Mock) vector(text string) []float32 {
	h := 0
	for _, c := range text {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}

	emb := make([]float32, m.dims)
	for i := 0; i < m.dims; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}

	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= float32(norm)
		}
	}
	return emb
}
