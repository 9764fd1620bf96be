// Package index drives incremental indexing runs: walk the repository,
// classify what is worth keeping, chunk changed files and reconcile the
// store against what is on disk.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cklxx/codectx/internal/chunker"
	"github.com/cklxx/codectx/internal/classify"
	"github.com/cklxx/codectx/internal/config"
	"github.com/cklxx/codectx/internal/ignore"
	"github.com/cklxx/codectx/internal/store"
)

// RunStats reports what one indexing run did.
type RunStats struct {
	RunID            string
	TotalFiles       int
	Indexed          int
	SkippedUnchanged int
	Failed           int
	Deleted          int
	Chunks           int
	Classification   classify.Stats
	Duration         time.Duration
}

// Changed reports whether the run altered the stored corpus.
func (s *RunStats) Changed() bool {
	return s.Indexed > 0 || s.Deleted > 0
}

// Indexer reconciles the store with the repository working tree.
type Indexer struct {
	cfg     *config.Config
	store   *store.Store
	chunker *chunker.Chunker
	oracle  classify.Oracle
	log     *zap.Logger
}

// New wires an indexer. A nil oracle skips the review stage.
func New(cfg *config.Config, st *store.Store, ch *chunker.Chunker, oracle classify.Oracle, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{cfg: cfg, store: st, chunker: ch, oracle: oracle, log: log}
}

var errUnchanged = errors.New("unchanged")

// Run performs one incremental pass: scan, classify, chunk what changed,
// then delete stored files that are gone or no longer worth keeping. Files
// that fail to index are counted and logged, never fatal. The corpus
// generation moves only when the run actually changed something.
func (ix *Indexer) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now()
	stats := &RunStats{RunID: uuid.NewString()}

	rules, err := ignore.Load(filepath.Join(ix.cfg.Repo, ix.cfg.Indexing.IgnoreFile))
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}

	candidates, err := ix.scan(rules)
	if err != nil {
		return nil, fmt.Errorf("scan repository: %w", err)
	}
	stats.TotalFiles = len(candidates)

	fileStats := make([]classify.FileStat, len(candidates))
	for i, c := range candidates {
		fileStats[i] = classify.FileStat{Path: c.relPath, Size: c.size}
	}
	cls := classify.ClassifyBatch(fileStats)
	cls = classify.Refine(ctx, ix.oracle, cls, ix.cfg.TaskContext, ix.cfg.Oracle.MaxCandidates, ix.log)

	keep, clsStats := classify.FilterForIndexing(cls)
	stats.Classification = clsStats
	kept := make(map[string]bool, len(keep))
	for _, p := range keep {
		kept[p] = true
	}

	workers := ix.cfg.Indexing.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var indexed, skipped, failed, chunks atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, c := range candidates {
		if !kept[c.relPath] {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := ix.indexFile(c)
			switch {
			case errors.Is(err, errUnchanged):
				skipped.Add(1)
			case err != nil:
				failed.Add(1)
				ix.log.Warn("index file failed", zap.String("path", c.relPath), zap.Error(err))
			default:
				indexed.Add(1)
				chunks.Add(int64(n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.Indexed = int(indexed.Load())
	stats.SkippedUnchanged = int(skipped.Load())
	stats.Failed = int(failed.Load())
	stats.Chunks = int(chunks.Load())

	// Stored files that vanished from disk or fell out of the kept set get
	// removed, chunks and symbols with them.
	existing, err := ix.store.ListPaths()
	if err != nil {
		return nil, fmt.Errorf("list stored paths: %w", err)
	}
	for _, p := range existing {
		if kept[p] {
			continue
		}
		if err := ix.store.DeleteFile(p); err != nil {
			stats.Failed++
			ix.log.Warn("delete stored file failed", zap.String("path", p), zap.Error(err))
			continue
		}
		stats.Deleted++
	}

	if stats.Changed() {
		if _, err := ix.store.BumpGeneration(); err != nil {
			return nil, fmt.Errorf("bump corpus generation: %w", err)
		}
	}
	if err := ix.store.SetMeta(store.MetaLastRunID, stats.RunID); err != nil {
		return nil, err
	}
	if err := ix.store.SetMeta(store.MetaLastRunAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	ix.log.Info("index run complete",
		zap.String("run_id", stats.RunID),
		zap.Int("total", stats.TotalFiles),
		zap.Int("indexed", stats.Indexed),
		zap.Int("unchanged", stats.SkippedUnchanged),
		zap.Int("failed", stats.Failed),
		zap.Int("deleted", stats.Deleted),
		zap.Int("excluded", stats.Classification.Excluded),
		zap.Duration("took", stats.Duration))
	return stats, nil
}

// indexFile reads, hashes and chunks one file, then swaps its stored rows in
// a single transaction. Returns errUnchanged when the content hash matches
// what is already stored.
func (ix *Indexer) indexFile(c candidate) (int, error) {
	src, err := os.ReadFile(c.absPath)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	hash := store.HashBytes(src)

	existing, err := ix.store.GetFileHash(c.relPath)
	if err != nil {
		return 0, fmt.Errorf("lookup stored hash: %w", err)
	}
	if existing == hash {
		return 0, errUnchanged
	}

	outcome := ix.chunker.Chunk(c.relPath, src)
	record := store.FileRecord{
		Path:       c.relPath,
		Language:   outcome.Language,
		SizeBytes:  c.size,
		ModifiedAt: c.modTime,
		Hash:       hash,
		Outcome:    string(outcome.Kind),
	}
	rows := make([]store.Chunk, len(outcome.Chunks))
	for i, ch := range outcome.Chunks {
		rows[i] = store.Chunk{
			Kind:      ch.Kind,
			Name:      ch.Name,
			StartLine: ch.StartLine,
			EndLine:   ch.EndLine,
			Doc:       ch.Doc,
			Content:   ch.Content,
		}
	}
	if _, err := ix.store.ReplaceFile(record, rows, outcome.Imports, outcome.Exports); err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	return len(rows), nil
}
