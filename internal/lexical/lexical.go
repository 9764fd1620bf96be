// Package lexical maintains the keyword index over chunk text. Like the
// vector index it is a disposable projection of the relational store,
// rebuilt whenever the corpus generation moves.
package lexical

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/cklxx/codectx/internal/store"
)

var generationKey = []byte("generation")

const rebuildBatchSize = 500

// document is the shape bleve indexes for each chunk.
type document struct {
	Content string `json:"content"`
	Name    string `json:"name"`
	Path    string `json:"path"`
}

// Index is the bleve-backed keyword index.
type Index struct {
	mu     sync.RWMutex
	path   string
	handle bleve.Index
}

// Result is one keyword hit with bleve's tf-idf style score.
type Result struct {
	ChunkID int64
	Score   float64
}

// indexMapping uses the standard analyzer (lowercase + tokenize, no
// stemming) so identifier fragments like "config" match "Config" but not
// "configure".
func indexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", text)
	docMapping.AddFieldMappingsAt("name", text)
	docMapping.AddFieldMappingsAt("path", text)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// Open opens the index at path, creating an empty one when absent.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		handle, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open keyword index: %w", err)
		}
		return &Index{path: path, handle: handle}, nil
	}
	handle, err := bleve.New(path, indexMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Index{path: path, handle: handle}, nil
}

// Current reports whether the index was built from the given corpus generation.
func (ix *Index) Current(generation int64) (bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	got, err := ix.handle.GetInternal(generationKey)
	if err != nil {
		return false, fmt.Errorf("read keyword index generation: %w", err)
	}
	return string(got) == strconv.FormatInt(generation, 10), nil
}

// Rebuild replaces the index contents with the given chunk corpus. The old
// index directory is removed wholesale, which also sheds deleted chunks.
func (ix *Index) Rebuild(ctx context.Context, chunks []store.Chunk, generation int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.handle.Close(); err != nil {
		return fmt.Errorf("close keyword index: %w", err)
	}
	if err := os.RemoveAll(ix.path); err != nil {
		return fmt.Errorf("remove keyword index: %w", err)
	}
	handle, err := bleve.New(ix.path, indexMapping())
	if err != nil {
		return fmt.Errorf("recreate keyword index: %w", err)
	}
	ix.handle = handle

	batch := handle.NewBatch()
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := document{Content: c.Content, Name: c.Name, Path: c.FilePath}
		if err := batch.Index(strconv.FormatInt(c.ID, 10), doc); err != nil {
			return fmt.Errorf("index chunk %d: %w", c.ID, err)
		}
		if batch.Size() >= rebuildBatchSize {
			if err := handle.Batch(batch); err != nil {
				return fmt.Errorf("flush keyword batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := handle.Batch(batch); err != nil {
			return fmt.Errorf("flush keyword batch: %w", err)
		}
	}

	if err := handle.SetInternal(generationKey, []byte(strconv.FormatInt(generation, 10))); err != nil {
		return fmt.Errorf("write keyword index generation: %w", err)
	}
	return nil
}

// Search runs a match query across content, name and path and returns up to
// k hits, best first.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = k
	res, err := ix.handle.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		results = append(results, Result{ChunkID: id, Score: hit.Score})
	}
	return results, nil
}

// DocCount returns the number of indexed chunks.
func (ix *Index) DocCount() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.handle.DocCount()
}

// Close closes the underlying bleve index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.handle.Close()
}
