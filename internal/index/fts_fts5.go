//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/lore/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS note_fts USING fts5(
			note_id UNINDEXED,
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, noteID, title, content string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_fts WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO note_fts (note_id, title, content) VALUES (?, ?, ?)`,
		noteID, title, content)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, noteID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_fts WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns ranked hits with
// highlighted snippets. A blank query returns no results without querying.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	out := []models.SearchResult{}
	if strings.TrimSpace(query) == "" {
		return out, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT notes.id,
		       notes.title,
		       snippet(note_fts, -1, '`+highlightOpen+`', '`+highlightClose+`', '...', 32)
		FROM note_fts
		JOIN notes ON notes.id = note_fts.note_id
		WHERE note_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, clampLimit(limit))
	if err != nil {
		return nil, matchError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, matchError(err)
	}
	return out, nil
}

// SearchNotes runs the same ranked query as Search but returns full notes.
func (db *DB) SearchNotes(ctx context.Context, query string, limit int) ([]models.Note, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Note{}, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT notes.id, notes.title, notes.content, notes.created_at, notes.updated_at
		FROM note_fts
		JOIN notes ON notes.id = note_fts.note_id
		WHERE note_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, clampLimit(limit))
	if err != nil {
		return nil, matchError(err)
	}
	notes, err := collectNotes(rows)
	if err != nil {
		return nil, matchError(err)
	}
	return notes, nil
}
