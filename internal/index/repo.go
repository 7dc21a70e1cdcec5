package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/lore/internal/apperr"
	"github.com/starford/lore/internal/models"
)

// ListSnippetLen is the number of characters of content returned by ListNotes.
const ListSnippetLen = 300

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner) (*models.Note, error) {
	var (
		n                models.Note
		created, updated int64
	)
	if err := r.Scan(&n.ID, &n.Title, &n.Content, &created, &updated); err != nil {
		return nil, err
	}
	n.CreatedAt = time.Unix(0, created).UTC()
	n.UpdatedAt = time.Unix(0, updated).UTC()
	return &n, nil
}

func collectNotes(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()
	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// GetNote returns the note with the given id, or apperr.ErrNotFound.
func (db *DB) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `
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

// NoteByTitle returns the note with exactly the given title, or apperr.ErrNotFound.
func (db *DB) NoteByTitle(ctx context.Context, title string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, title, content, created_at, updated_at
		FROM notes WHERE title = ?
	`, title)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %q: %w", title, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note by title: %w", err)
	}
	return n, nil
}

// ListNotes returns every note, most recently updated first.
func (db *DB) ListNotes(ctx context.Context) ([]models.NoteSummary, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, substr(content, 1, ?), updated_at
		FROM notes
		ORDER BY updated_at DESC, rowid DESC
	`, ListSnippetLen)
	if err != nil {
		return nil, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	out := []models.NoteSummary{}
	for rows.Next() {
		var (
			s       models.NoteSummary
			updated int64
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Snippet, &updated); err != nil {
			return nil, err
		}
		s.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecentNotes returns up to limit full notes, most recently updated first.
func (db *DB) RecentNotes(ctx context.Context, limit int) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, content, created_at, updated_at
		FROM notes
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: recent notes: %w", err)
	}
	return collectNotes(rows)
}

// FindByTitle returns up to limit notes whose title contains substr
// (case-insensitive for ASCII), most recently updated first.
func (db *DB) FindByTitle(ctx context.Context, substr string, limit int) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, content, created_at, updated_at
		FROM notes
		WHERE title LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ?
	`, "%"+escapeLike(substr)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("index: find by title: %w", err)
	}
	return collectNotes(rows)
}

// Backlinks returns the notes whose link set contains title, most recently
// updated first.
func (db *DB) Backlinks(ctx context.Context, title string) ([]models.NoteRef, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.id, n.title
		FROM links l
		JOIN notes n ON n.id = l.source_id
		WHERE l.target_title = ?
		ORDER BY n.updated_at DESC, n.rowid DESC
	`, title)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	out := []models.NoteRef{}
	for rows.Next() {
		var r models.NoteRef
		if err := rows.Scan(&r.ID, &r.Title); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Links returns the stored link targets of a note.
func (db *DB) Links(ctx context.Context, noteID string) ([]string, error) {
	return db.queryStrings(ctx, `SELECT target_title FROM links WHERE source_id = ? ORDER BY rowid`, noteID)
}

// Tags returns the stored tags of a note.
func (db *DB) Tags(ctx context.Context, noteID string) ([]string, error) {
	return db.queryStrings(ctx, `SELECT tag FROM tags WHERE note_id = ? ORDER BY rowid`, noteID)
}

// TagCounts returns every tag with its note count, highest count first and
// alphabetical among equal counts.
func (db *DB) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT tag, COUNT(*) AS cnt
		FROM tags
		GROUP BY tag
		ORDER BY cnt DESC, tag ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("index: tag counts: %w", err)
	}
	defer rows.Close()

	out := []models.TagCount{}
	for rows.Next() {
		var tc models.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// Graph returns every note as a node and an edge for each link whose target
// title matches an existing note. Links to missing titles produce no edge.
func (db *DB) Graph(ctx context.Context) (*models.Graph, error) {
	g := &models.Graph{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}}

	nodeRows, err := db.conn.QueryContext(ctx, `SELECT id, title FROM notes ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var n models.GraphNode
		if err := nodeRows.Scan(&n.ID, &n.Title); err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, err
	}

	edgeRows, err := db.conn.QueryContext(ctx, `
		SELECT l.source_id, t.id
		FROM links l
		JOIN notes t ON t.title = l.target_title
		ORDER BY l.source_id, t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("index: graph edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e models.GraphEdge
		if err := edgeRows.Scan(&e.Source, &e.Target); err != nil {
			return nil, err
		}
		g.Edges = append(g.Edges, e)
	}
	return g, edgeRows.Err()
}

func (db *DB) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
