// Package vector maintains the dense nearest-neighbor index over chunk
// embeddings. It lives in its own SQLite database under the data directory
// and is a rebuildable projection of the relational store.
package vector

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cklxx/codectx/internal/embedder"
	"github.com/cklxx/codectx/internal/store"
)

func init() {
	sqlite_vec.Auto()
}

// Build-info keys.
const (
	infoGeneration = "generation"
	infoModel      = "model"
	infoDimensions = "dimensions"
)

// Index is the sqlite-vec backed vector index.
type Index struct {
	db *sql.DB
}

// Result is one nearest-neighbor hit.
type Result struct {
	ChunkID int64
	Score   float64
}

// Open creates or opens the vector database inside dir.
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "vectors.db")+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS build_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("init vector schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Current reports whether the index was built from the given corpus
// generation with the given embedding configuration.
func (ix *Index) Current(generation int64, model string, dims int) (bool, error) {
	gotGen, err := ix.info(infoGeneration)
	if err != nil {
		return false, err
	}
	gotModel, err := ix.info(infoModel)
	if err != nil {
		return false, err
	}
	gotDims, err := ix.info(infoDimensions)
	if err != nil {
		return false, err
	}
	return gotGen == strconv.FormatInt(generation, 10) &&
		gotModel == model &&
		gotDims == strconv.Itoa(dims), nil
}

// Rebuild embeds the whole chunk corpus and replaces the index contents.
// The build-info rows are cleared first and written last, so an interrupted
// rebuild is simply retried on the next query.
func (ix *Index) Rebuild(ctx context.Context, chunks []store.Chunk, emb embedder.Embedder, generation int64, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 32
	}
	dims := emb.Dimensions()

	if _, err := ix.db.Exec("DELETE FROM build_info"); err != nil {
		return fmt.Errorf("invalidate build info: %w", err)
	}
	if _, err := ix.db.Exec("DROP TABLE IF EXISTS vec_chunks"); err != nil {
		return fmt.Errorf("drop vector table: %w", err)
	}
	// The +aux columns carry each record's chunk identity.
	if _, err := ix.db.Exec(fmt.Sprintf(
		"CREATE VIRTUAL TABLE vec_chunks USING vec0(chunk_id INTEGER PRIMARY KEY, embedding float[%d] distance_metric=cosine, +file_path TEXT, +kind TEXT, +start_line INTEGER, +end_line INTEGER)", dims,
	)); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = embedText(c)
		}
		vecs, err := emb.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}

		if err := ix.insertBatch(batch, vecs); err != nil {
			return err
		}
	}

	for key, value := range map[string]string{
		infoGeneration: strconv.FormatInt(generation, 10),
		infoModel:      emb.Model(),
		infoDimensions: strconv.Itoa(dims),
	} {
		if _, err := ix.db.Exec("INSERT OR REPLACE INTO build_info (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("write build info: %w", err)
		}
	}
	return nil
}

func (ix *Index) insertBatch(batch []store.Chunk, vecs [][]float32) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO vec_chunks (chunk_id, embedding, file_path, kind, start_line, end_line) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range batch {
		blob, err := sqlite_vec.SerializeFloat32(vecs[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %d: %w", c.ID, err)
		}
		if _, err := stmt.Exec(c.ID, blob, c.FilePath, c.Kind, c.StartLine, c.EndLine); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Search returns the k nearest chunks to the query vector, best first.
// Scores are 1 - cosine distance.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := ix.db.QueryContext(ctx, `
		SELECT chunk_id, distance
		FROM vec_chunks
		WHERE embedding MATCH ?
		ORDER BY distance
		LIMIT ?
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var distance float64
		if err := rows.Scan(&r.ChunkID, &distance); err != nil {
			return nil, err
		}
		r.Score = 1 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// Size returns the number of indexed vectors, 0 when never built.
func (ix *Index) Size() (int, error) {
	var exists int
	err := ix.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'vec_chunks'").Scan(&exists)
	if err != nil || exists == 0 {
		return 0, err
	}
	var n int
	if err := ix.db.QueryRow("SELECT COUNT(*) FROM vec_chunks").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func (ix *Index) info(key string) (string, error) {
	var value string
	err := ix.db.QueryRow("SELECT value FROM build_info WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// embedText is what actually gets embedded for a chunk: a short header with
// the file and symbol identity, then the content.
func embedText(c store.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// File: %s\n", c.FilePath)
	if c.Name != "" {
		fmt.Fprintf(&b, "// %s: %s\n", c.Kind, c.Name)
	}
	if c.Doc != "" {
		fmt.Fprintf(&b, "// %s\n", c.Doc)
	}
	b.WriteString(c.Content)
	return b.String()
}
