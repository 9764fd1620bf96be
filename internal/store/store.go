// Package store persists indexed files, chunks, and file symbols in an
// embedded SQLite database. It is the single source of truth the vector and
// lexical indexes are derived from.
package store

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound marks lookups for paths that were never indexed.
var ErrNotFound = errors.New("not found")

// Meta keys.
const (
	MetaGeneration = "corpus_generation"
	MetaLastRunID  = "last_run_id"
	MetaLastRunAt  = "last_run_at"
)

// Store is the SQLite-backed index database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at the given path and initializes the
// schema. Parent directories are created as needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// HashBytes returns the hex digest used as the content hash for files and
// chunks.
func HashBytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// GetFileHash returns the stored hash for a path, or "" if not indexed.
func (s *Store) GetFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM files WHERE path = ?", path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// ReplaceFile upserts a file record and swaps in its new chunk set and
// symbols in one transaction, so readers never observe a partial set.
func (s *Store) ReplaceFile(f FileRecord, chunks []Chunk, imports, exports []string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var fileID int64
	err = tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&fileID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(
			"INSERT INTO files (path, language, size_bytes, modified_at, hash, outcome) VALUES (?, ?, ?, ?, ?, ?)",
			f.Path, f.Language, f.SizeBytes, f.ModifiedAt, f.Hash, f.Outcome,
		)
		if err != nil {
			return 0, err
		}
		if fileID, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if _, err := tx.Exec(
			"UPDATE files SET language = ?, size_bytes = ?, modified_at = ?, hash = ?, outcome = ?, indexed_at = CURRENT_TIMESTAMP WHERE id = ?",
			f.Language, f.SizeBytes, f.ModifiedAt, f.Hash, f.Outcome, fileID,
		); err != nil {
			return 0, err
		}
		if _, err := tx.Exec("DELETE FROM code_chunks WHERE file_id = ?", fileID); err != nil {
			return 0, err
		}
		if _, err := tx.Exec("DELETE FROM file_symbols WHERE file_id = ?", fileID); err != nil {
			return 0, err
		}
	}

	if len(chunks) > 0 {
		stmt, err := tx.Prepare(
			"INSERT INTO code_chunks (file_id, kind, name, start_line, end_line, doc, content, hash) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()
		for _, c := range chunks {
			hash := c.Hash
			if hash == "" {
				hash = HashBytes([]byte(c.Content))
			}
			if _, err := stmt.Exec(fileID, c.Kind, c.Name, c.StartLine, c.EndLine, c.Doc, c.Content, hash); err != nil {
				return 0, err
			}
		}
	}

	if err := insertSymbols(tx, fileID, SymbolImport, imports); err != nil {
		return 0, err
	}
	if err := insertSymbols(tx, fileID, SymbolExport, exports); err != nil {
		return 0, err
	}

	return fileID, tx.Commit()
}

func insertSymbols(tx *sql.Tx, fileID int64, kind string, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	stmt, err := tx.Prepare("INSERT INTO file_symbols (file_id, kind, ordinal, symbol) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, sym := range symbols {
		if _, err := stmt.Exec(fileID, kind, i, sym); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFile removes a file row; chunks and symbols go with it.
func (s *Store) DeleteFile(path string) error {
	_, err := s.db.Exec("DELETE FROM files WHERE path = ?", path)
	return err
}

// ListPaths returns every indexed path in sorted order.
func (s *Store) ListPaths() ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// GetFileInfo returns a file record with its symbols and chunk count.
func (s *Store) GetFileInfo(path string) (*FileInfo, error) {
	var info FileInfo
	err := s.db.QueryRow(
		"SELECT id, path, language, size_bytes, modified_at, hash, outcome, indexed_at FROM files WHERE path = ?",
		path,
	).Scan(&info.ID, &info.Path, &info.Language, &info.SizeBytes, &info.ModifiedAt, &info.Hash, &info.Outcome, &info.IndexedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT kind, symbol FROM file_symbols WHERE file_id = ? ORDER BY kind, ordinal", info.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind, symbol string
		if err := rows.Scan(&kind, &symbol); err != nil {
			return nil, err
		}
		switch kind {
		case SymbolImport:
			info.Imports = append(info.Imports, symbol)
		case SymbolExport:
			info.Exports = append(info.Exports, symbol)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM code_chunks WHERE file_id = ?", info.ID).Scan(&info.ChunkCount); err != nil {
		return nil, err
	}
	return &info, nil
}

const chunkColumns = "c.id, c.file_id, f.path, f.language, c.kind, c.name, c.start_line, c.end_line, c.doc, c.content, c.hash"

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	defer rows.Close()
	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.FileID, &c.FilePath, &c.Language, &c.Kind, &c.Name, &c.StartLine, &c.EndLine, &c.Doc, &c.Content, &c.Hash); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ChunksByName returns chunks matching an exact name and kind.
func (s *Store) ChunksByName(name, kind string) ([]Chunk, error) {
	rows, err := s.db.Query(
		"SELECT "+chunkColumns+" FROM code_chunks c JOIN files f ON f.id = c.file_id WHERE c.name = ? AND c.kind = ? ORDER BY f.path, c.start_line",
		name, kind,
	)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// ChunksByIDs returns chunks for the given ids, in the order requested.
// Missing ids are silently dropped.
func (s *Store) ChunksByIDs(ids []int64) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(
		"SELECT "+chunkColumns+" FROM code_chunks c JOIN files f ON f.id = c.file_id WHERE c.id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, err
	}
	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	ordered := make([]Chunk, 0, len(chunks))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// AllChunks returns the full chunk corpus, used to build derived indexes.
func (s *Store) AllChunks() ([]Chunk, error) {
	rows, err := s.db.Query(
		"SELECT " + chunkColumns + " FROM code_chunks c JOIN files f ON f.id = c.file_id ORDER BY c.id",
	)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// RelatedFiles returns files sharing import/export symbols with the given
// path, most shared symbols first.
func (s *Store) RelatedFiles(path string, limit int) ([]RelatedFile, error) {
	rows, err := s.db.Query(`
		SELECT f2.path, COUNT(DISTINCT s2.symbol) AS shared
		FROM files f1
		JOIN file_symbols s1 ON s1.file_id = f1.id
		JOIN file_symbols s2 ON s2.symbol = s1.symbol AND s2.file_id != f1.id
		JOIN files f2 ON f2.id = s2.file_id
		WHERE f1.path = ?
		GROUP BY f2.path
		ORDER BY shared DESC, f2.path
		LIMIT ?
	`, path, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var related []RelatedFile
	for rows.Next() {
		var r RelatedFile
		if err := rows.Scan(&r.Path, &r.SharedSymbols); err != nil {
			return nil, err
		}
		related = append(related, r)
	}
	return related, rows.Err()
}

// GetStatistics summarizes the indexed corpus.
func (s *Store) GetStatistics() (*Statistics, error) {
	st := &Statistics{
		FilesByLanguage: make(map[string]int),
		ChunksByType:    make(map[string]int),
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&st.TotalFiles); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM code_chunks").Scan(&st.TotalChunks); err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT language, COUNT(*) FROM files GROUP BY language")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var language string
		var n int
		if err := rows.Scan(&language, &n); err != nil {
			return nil, err
		}
		st.FilesByLanguage[language] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	kindRows, err := s.db.Query("SELECT kind, COUNT(*) FROM code_chunks GROUP BY kind")
	if err != nil {
		return nil, err
	}
	defer kindRows.Close()
	for kindRows.Next() {
		var kind string
		var n int
		if err := kindRows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		st.ChunksByType[kind] = n
	}
	return st, kindRows.Err()
}

// Generation returns the current corpus generation. Derived indexes compare
// it against the generation they were built from.
func (s *Store) Generation() (int64, error) {
	v, err := s.GetMeta(MetaGeneration)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// BumpGeneration advances the corpus generation after a run that changed
// anything, invalidating derived indexes.
func (s *Store) BumpGeneration() (int64, error) {
	gen, err := s.Generation()
	if err != nil {
		return 0, err
	}
	gen++
	if err := s.SetMeta(MetaGeneration, strconv.FormatInt(gen, 10)); err != nil {
		return 0, err
	}
	return gen, nil
}

// GetMeta returns a metadata value by key, or "" if not set.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMeta sets a metadata key-value pair.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
