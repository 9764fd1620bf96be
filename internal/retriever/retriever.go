// Package retriever answers natural-language queries over the indexed corpus
// by fusing dense vector similarity with keyword matching. The retrieval
// indexes are lazy projections: a query against a stale generation triggers
// a rebuild before the legs run.
package retriever

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cklxx/codectx/internal/embedder"
	"github.com/cklxx/codectx/internal/lexical"
	"github.com/cklxx/codectx/internal/store"
	"github.com/cklxx/codectx/internal/vector"
)

// Method values reported on a response. Hybrid is the normal case; the
// single-leg methods mean the other leg was unavailable for this query.
const (
	MethodHybrid  = "hybrid"
	MethodKeyword = "keyword"
	MethodVector  = "vector"
)

// Hit is one retrieved chunk. VectorScore and KeywordScore are the
// per-leg normalized scores that went into the fused Score; a leg that did
// not return the chunk contributes 0.
type Hit struct {
	Chunk        store.Chunk
	VectorScore  float64
	KeywordScore float64
	Score        float64
}

// Response is the result of one query.
type Response struct {
	Method string
	Hits   []Hit
}

// Options tunes fusion and index building. VectorTimeout bounds the vector
// leg only; the keyword leg is local and runs without one.
type Options struct {
	VectorWeight    float64
	KeywordWeight   float64
	OverfetchFactor int
	EmbedBatchSize  int
	VectorTimeout   time.Duration
}

// Retriever runs hybrid queries against the store and its two projections.
type Retriever struct {
	store *store.Store
	vec   *vector.Index
	lex   *lexical.Index
	emb   embedder.Embedder
	log   *zap.Logger

	vectorWeight  float64
	keywordWeight float64
	overfetch     int
	embedBatch    int
	vectorTimeout time.Duration

	builds singleflight.Group
}

// New wires a retriever. Zero option fields fall back to defaults.
func New(st *store.Store, vec *vector.Index, lex *lexical.Index, emb embedder.Embedder, opts Options, log *zap.Logger) *Retriever {
	if opts.VectorWeight <= 0 {
		opts.VectorWeight = 0.6
	}
	if opts.KeywordWeight <= 0 {
		opts.KeywordWeight = 0.4
	}
	if opts.OverfetchFactor < 1 {
		opts.OverfetchFactor = 2
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 32
	}
	if opts.VectorTimeout <= 0 {
		opts.VectorTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{
		store:         st,
		vec:           vec,
		lex:           lex,
		emb:           emb,
		log:           log,
		vectorWeight:  opts.VectorWeight,
		keywordWeight: opts.KeywordWeight,
		overfetch:     opts.OverfetchFactor,
		embedBatch:    opts.EmbedBatchSize,
		vectorTimeout: opts.VectorTimeout,
	}
}

// Search returns the top k chunks for the query. Both legs over-fetch so the
// fusion has a wider candidate pool than k. When one leg fails the other
// still answers, with the response method naming what actually ran.
func (r *Retriever) Search(ctx context.Context, query string, k int) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return &Response{Method: MethodHybrid}, nil
	}
	if k <= 0 {
		k = 10
	}

	generation, err := r.store.Generation()
	if err != nil {
		return nil, fmt.Errorf("read corpus generation: %w", err)
	}
	vecErr, kwErr := r.ensure(ctx, generation)

	fetch := k * r.overfetch

	var (
		wg      sync.WaitGroup
		vecHits []vector.Result
		kwHits  []lexical.Result
	)
	if vecErr == nil {
		wg.Add(1)
		vctx, cancel := context.WithTimeout(ctx, r.vectorTimeout)
		go func() {
			defer wg.Done()
			defer cancel()
			vecHits, vecErr = r.vectorLeg(vctx, query, fetch)
		}()
	}
	if kwErr == nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kwHits, kwErr = r.lex.Search(ctx, query, fetch)
		}()
	}
	wg.Wait()

	var (
		method string
		merged []fused
	)
	switch {
	case vecErr != nil && kwErr != nil:
		return nil, fmt.Errorf("both retrieval legs failed: vector: %v; keyword: %w", vecErr, kwErr)
	case vecErr != nil:
		r.log.Warn("vector retrieval unavailable, serving keyword results", zap.Error(vecErr))
		method = MethodKeyword
		merged = fuse(nil, kwHits, 0, 1, k)
	case kwErr != nil:
		r.log.Warn("keyword retrieval unavailable, serving vector results", zap.Error(kwErr))
		method = MethodVector
		merged = fuse(vecHits, nil, 1, 0, k)
	default:
		method = MethodHybrid
		merged = fuse(vecHits, kwHits, r.vectorWeight, r.keywordWeight, k)
	}

	hits, err := r.hydrate(merged)
	if err != nil {
		return nil, err
	}
	return &Response{Method: method, Hits: hits}, nil
}

func (r *Retriever) vectorLeg(ctx context.Context, query string, fetch int) ([]vector.Result, error) {
	vecs, err := r.emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.vec.Search(ctx, vecs[0], fetch)
}

type buildOutcome struct {
	vecErr error
	kwErr  error
}

// ensure brings both projections up to the given corpus generation.
// Concurrent queries against the same generation share one build via
// singleflight. Rebuild failures are returned per leg rather than aborting
// the query, so a dead embedding endpoint still leaves keyword search
// working.
func (r *Retriever) ensure(ctx context.Context, generation int64) (error, error) {
	v, _, _ := r.builds.Do(strconv.FormatInt(generation, 10), func() (interface{}, error) {
		return r.build(ctx, generation), nil
	})
	out := v.(buildOutcome)
	return out.vecErr, out.kwErr
}

func (r *Retriever) build(ctx context.Context, generation int64) (out buildOutcome) {
	vecCurrent, err := r.vec.Current(generation, r.emb.Model(), r.emb.Dimensions())
	if err != nil {
		out.vecErr = err
	}
	kwCurrent, err := r.lex.Current(generation)
	if err != nil {
		out.kwErr = err
	}
	if (vecCurrent || out.vecErr != nil) && (kwCurrent || out.kwErr != nil) {
		return out
	}

	chunks, err := r.store.AllChunks()
	if err != nil {
		err = fmt.Errorf("load chunk corpus: %w", err)
		if out.vecErr == nil {
			out.vecErr = err
		}
		if out.kwErr == nil {
			out.kwErr = err
		}
		return out
	}

	if out.vecErr == nil && !vecCurrent {
		r.log.Info("rebuilding vector index",
			zap.Int64("generation", generation),
			zap.Int("chunks", len(chunks)),
			zap.String("model", r.emb.Model()))
		if err := r.vec.Rebuild(ctx, chunks, r.emb, generation, r.embedBatch); err != nil {
			out.vecErr = fmt.Errorf("rebuild vector index: %w", err)
		}
	}
	if out.kwErr == nil && !kwCurrent {
		r.log.Info("rebuilding keyword index",
			zap.Int64("generation", generation),
			zap.Int("chunks", len(chunks)))
		if err := r.lex.Rebuild(ctx, chunks, generation); err != nil {
			out.kwErr = fmt.Errorf("rebuild keyword index: %w", err)
		}
	}
	return out
}

// hydrate resolves fused chunk ids back to full rows. Chunks deleted since
// the projections were built drop out silently.
func (r *Retriever) hydrate(merged []fused) ([]Hit, error) {
	if len(merged) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(merged))
	for i, f := range merged {
		ids[i] = f.chunkID
	}
	chunks, err := r.store.ChunksByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}
	byID := make(map[int64]store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	hits := make([]Hit, 0, len(merged))
	for _, f := range merged {
		c, ok := byID[f.chunkID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			Chunk:        c,
			VectorScore:  f.vecScore,
			KeywordScore: f.kwScore,
			Score:        f.score,
		})
	}
	return hits, nil
}
