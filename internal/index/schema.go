// Package index provides the SQLite-backed note store together with its derived
// relation index (links, tags) and full-text search index.
//
// Ranked search needs SQLite's FTS5 module, which mattn/go-sqlite3 only
// compiles in with the sqlite_fts5 build tag:
//
//	go build -tags sqlite_fts5 ./...
//
// Without the tag, Search falls back to LIKE matching that requires every
// query term and orders hits by recency instead of relevance.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL UNIQUE,
	content    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at);

CREATE TABLE IF NOT EXISTS links (
	source_id    TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	target_title TEXT NOT NULL,
	UNIQUE(source_id, target_title)
);

CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_title);

CREATE TABLE IF NOT EXISTS tags (
	note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	tag     TEXT NOT NULL,
	UNIQUE(note_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);
`

// DB wraps a sql.DB with note, relation and search operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Write transactions are opened with BEGIN IMMEDIATE so writers serialize on
// the database lock instead of failing on lock upgrade.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
