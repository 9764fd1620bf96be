package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		require.Equal(t, []string{"alpha", "beta"}, req.Input)

		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 2, 5*time.Second)
	vecs, err := e.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])
	assert.Equal(t, []float32{0.3, 0.4}, vecs[1])
}

func TestOllamaEmbedEmptyInput(t *testing.T) {
	e := NewOllamaEmbedder("http://unused", "m", 2, time.Second)
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 1, 5*time.Second)
	e.retry = RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	_, err := e.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings")
}

func TestOllamaEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 2, 5*time.Second)
	e.retry = RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3-dimensional")
}

func TestOllamaEmbedRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 2, 5*time.Second)
	e.retry = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}

	vecs, err := e.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestOllamaEmbedStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewOllamaEmbedder(srv.URL, "m", 2, 5*time.Second)
	_, err := e.Embed(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachedEmbed(t *testing.T) {
	mock := NewMock(8)
	cached := NewCached(mock, 16)

	first, err := cached.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, mock.Calls)

	// Full hit: the inner embedder is not consulted again.
	second, err := cached.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.Calls)

	// Partial hit: only the new text goes to the inner embedder.
	third, err := cached.Embed(context.Background(), []string{"two", "three"})
	require.NoError(t, err)
	assert.Equal(t, first[1], third[0])
	assert.Equal(t, 2, mock.Calls)
	assert.Equal(t, 3, cached.Len())
}

func TestCachedReturnsCopies(t *testing.T) {
	cached := NewCached(NewMock(4), 16)

	first, err := cached.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	first[0][0] = 999

	again, err := cached.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	assert.NotEqual(t, float32(999), again[0][0])
}

func TestCachedPropagatesErrors(t *testing.T) {
	mock := NewMock(4)
	mock.Err = errors.New("provider down")
	cached := NewCached(mock, 16)

	_, err := cached.Embed(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "provider down")
}

func TestMockDeterministic(t *testing.T) {
	m := NewMock(32)

	a1, err := m.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)
	a2, err := m.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)
	assert.Equal(t, a1[0], a2[0])

	b, err := m.Embed(context.Background(), []string{"different text"})
	require.NoError(t, err)
	assert.NotEqual(t, a1[0], b[0])

	var norm float64
	for _, v := range a1[0] {
		norm += float64(v * v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-3)
}
