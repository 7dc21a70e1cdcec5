//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/lore/internal/apperr"
	"github.com/starford/lore/internal/models"
)

// snippetRadius is the number of characters kept on each side of a match.
const snippetRadius = 60

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE over the notes table.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _, _, _ string) error {
	// Title and content already live in the notes table; nothing extra to do.
	return nil
}

func ftsDelete(_ context.Context, _ *sql.Tx, _ string) error { return nil }

// queryTerms splits a query into the terms that must all occur in a hit.
// An unbalanced double quote is reported as a syntax error, mirroring FTS5.
func queryTerms(query string) ([]string, error) {
	if strings.Count(query, `"`)%2 != 0 {
		return nil, fmt.Errorf("%w: unterminated string in %q", apperr.ErrSearchSyntax, query)
	}
	return strings.Fields(strings.ReplaceAll(query, `"`, " ")), nil
}

func (db *DB) likeQuery(ctx context.Context, terms []string, limit int) (*sql.Rows, error) {
	var (
		where []string
		args  []any
	)
	for _, term := range terms {
		p := "%" + escapeLike(term) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	args = append(args, clampLimit(limit))
	return db.conn.QueryContext(ctx, `
		SELECT id, title, content, created_at, updated_at
		FROM notes
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ?
	`, args...)
}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	notes, err := db.SearchNotes(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	terms, _ := queryTerms(query)
	out := make([]models.SearchResult, 0, len(notes))
	for _, n := range notes {
		snippet := makeSnippet(n.Content, terms)
		if !strings.Contains(snippet, highlightOpen) {
			snippet = makeSnippet(n.Title, terms)
		}
		out = append(out, models.SearchResult{ID: n.ID, Title: n.Title, Snippet: snippet})
	}
	return out, nil
}

// SearchNotes returns full notes matching every query term.
func (db *DB) SearchNotes(ctx context.Context, query string, limit int) ([]models.Note, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Note{}, nil
	}
	terms, err := queryTerms(query)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return []models.Note{}, nil
	}
	rows, err := db.likeQuery(ctx, terms, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return collectNotes(rows)
}

// makeSnippet returns an excerpt of text around the first occurrence of any
// term, with the match wrapped in highlight markers. Without a match it
// returns the leading part of text.
func makeSnippet(text string, terms []string) string {
	runes := []rune(text)
	lower := []rune(strings.ToLower(text))

	start, length := -1, 0
	for _, term := range terms {
		t := []rune(strings.ToLower(term))
		if i := indexRunes(lower, t); i >= 0 && (start < 0 || i < start) {
			start, length = i, len(t)
		}
	}
	if start < 0 || len(lower) != len(runes) {
		if len(runes) > 2*snippetRadius {
			return string(runes[:2*snippetRadius]) + "..."
		}
		return text
	}

	from := max(0, start-snippetRadius)
	to := min(len(runes), start+length+snippetRadius)

	var b strings.Builder
	if from > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(runes[from:start]))
	b.WriteString(highlightOpen)
	b.WriteString(string(runes[start : start+length]))
	b.WriteString(highlightClose)
	b.WriteString(string(runes[start+length : to]))
	if to < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

func indexRunes(s, sub []rune) int {
	if len(sub) == 0 || len(sub) > len(s) {
		return -1
	}
outer:
	for i := 0; i+len(sub) <= len(s); i++ {
		for j := range sub {
			if s[i+j] != sub[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
