package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps an Embedder with an in-memory LRU cache keyed by content
// hash, so unchanged chunk text is never re-embedded within a process.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with a cache of at most size entries.
func NewCached(inner Embedder, size int) *Cached {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		cache, _ = lru.New[string, []float32](4096)
	}
	return &Cached{inner: inner, cache: cache}
}

// Model returns the inner embedder's model name.
func (c *Cached) Model() string { return c.inner.Model() }

// Dimensions returns the inner embedder's vector width.
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// Len returns the number of cached vectors.
func (c *Cached) Len() int { return c.cache.Len() }

// Embed serves hits from the cache and forwards only the misses to the
// inner embedder, reassembling results in input order.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missing []string
	var missingIdx []int
	for i, t := range texts {
		keys[i] = hashText(t)
		if v, ok := c.get(keys[i]); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vecs {
		c.cache.Add(keys[missingIdx[j]], append([]float32(nil), v...))
		out[missingIdx[j]] = v
	}
	return out, nil
}

// get returns a copy of the cached vector so caller mutations cannot pollute
// the cache.
func (c *Cached) get(key string) ([]float32, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

func hashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
