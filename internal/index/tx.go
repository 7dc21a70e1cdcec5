package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/lore/internal/apperr"
	"github.com/starford/lore/internal/models"
)

// Tx is a unit of work over the note table and its derived state. All
// mutations made through a Tx are committed together or not at all.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Write runs fn inside a single write transaction. If fn returns an error
// the transaction is rolled back and the error is returned unchanged.
func (db *DB) Write(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&Tx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}

// NoteByID returns the note with the given id, or apperr.ErrNotFound.
func (t *Tx) NoteByID(id string) (*models.Note, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT id, title, content, created_at, updated_at
		FROM notes WHERE id = ?
	`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// TitleOwner returns the id of the note holding title, or "" if it is free.
func (t *Tx) TitleOwner(title string) (string, error) {
	var id string
	err := t.tx.QueryRowContext(t.ctx, `SELECT id FROM notes WHERE title = ?`, title).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: title owner: %w", err)
	}
	return id, nil
}

// InsertNote inserts a new note row.
func (t *Tx) InsertNote(n models.Note) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO notes (id, title, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Content, n.CreatedAt.UnixNano(), n.UpdatedAt.UnixNano())
	if err != nil {
		return noteWriteError(n.Title, err)
	}
	return nil
}

// UpdateNote replaces title, content and updated_at of an existing note.
func (t *Tx) UpdateNote(n models.Note) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE notes SET title = ?, content = ?, updated_at = ?
		WHERE id = ?
	`, n.Title, n.Content, n.UpdatedAt.UnixNano(), n.ID)
	if err != nil {
		return noteWriteError(n.Title, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("note %s: %w", n.ID, apperr.ErrNotFound)
	}
	return nil
}

// DeleteNote removes a note together with its links, tags and search
// document. It returns the number of note rows removed (0 or 1).
func (t *Tx) DeleteNote(id string) (int64, error) {
	if err := t.UnindexText(id); err != nil {
		return 0, err
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM links WHERE source_id = ?`, id); err != nil {
		return 0, fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM tags WHERE note_id = ?`, id); err != nil {
		return 0, fmt.Errorf("index: delete tags: %w", err)
	}
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("index: delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("index: delete note: %w", err)
	}
	return n, nil
}

// ReplaceRelations rebuilds the link and tag rows of a note: every existing
// row is removed and the given sets are inserted.
func (t *Tx) ReplaceRelations(noteID string, links, tags []string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM links WHERE source_id = ?`, noteID); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM tags WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	if err := t.insertAll(`INSERT OR IGNORE INTO links (source_id, target_title) VALUES (?, ?)`, noteID, links); err != nil {
		return fmt.Errorf("index: insert link: %w", err)
	}
	if err := t.insertAll(`INSERT OR IGNORE INTO tags (note_id, tag) VALUES (?, ?)`, noteID, tags); err != nil {
		return fmt.Errorf("index: insert tag: %w", err)
	}
	return nil
}

// IndexText replaces the search document of a note.
func (t *Tx) IndexText(noteID, title, content string) error {
	return ftsUpsert(t.ctx, t.tx, noteID, title, content)
}

// UnindexText removes the search document of a note.
func (t *Tx) UnindexText(noteID string) error {
	return ftsDelete(t.ctx, t.tx, noteID)
}

func (t *Tx) insertAll(query, noteID string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(t.ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, v := range values {
		if _, err := stmt.ExecContext(t.ctx, noteID, v); err != nil {
			return err
		}
	}
	return nil
}

// noteWriteError maps a unique-constraint violation on notes.title to a
// validation error.
func noteWriteError(title string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return apperr.Validation("title %q is already used by another note", title)
	}
	return fmt.Errorf("index: write note: %w", err)
}
