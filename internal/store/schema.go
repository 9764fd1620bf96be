package store

import "database/sql"

const ddl = `
CREATE TABLE IF NOT EXISTS files (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    path        TEXT NOT NULL UNIQUE,
    language    TEXT NOT NULL DEFAULT '',
    size_bytes  INTEGER NOT NULL DEFAULT 0,
    modified_at INTEGER NOT NULL DEFAULT 0,
    hash        TEXT NOT NULL,
    outcome     TEXT NOT NULL DEFAULT '',
    indexed_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS code_chunks (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
    kind       TEXT NOT NULL DEFAULT '',
    name       TEXT NOT NULL DEFAULT '',
    start_line INTEGER NOT NULL,
    end_line   INTEGER NOT NULL,
    doc        TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL,
    hash       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_chunks_file ON code_chunks(file_id);
CREATE INDEX IF NOT EXISTS idx_chunks_name ON code_chunks(name, kind);

CREATE TABLE IF NOT EXISTS file_symbols (
    file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
    kind    TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    symbol  TEXT NOT NULL,
    PRIMARY KEY (file_id, kind, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_symbols_symbol ON file_symbols(symbol);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Init applies the schema. Safe to run against an already initialized store.
func Init(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
