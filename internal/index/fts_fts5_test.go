//go:build sqlite_fts5

package index

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/lore/internal/apperr"
	"github.com/starford/lore/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM note_fts`).Scan(&count); err != nil {
		t.Fatalf("note_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	put(t, db, models.Note{
		ID:        "fts",
		Title:     "FTS Note",
		Content:   "Lore provides powerful full-text search capabilities.",
		UpdatedAt: baseTime,
	}, nil, nil)

	results, err := db.Search(context.Background(), "powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(results[0].Snippet, "<mark>powerful</mark>") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestFTS5_DiacriticsFolded(t *testing.T) {
	db := testDB(t)
	put(t, db, models.Note{ID: "cafe", Title: "Café", Content: "crème brûlée", UpdatedAt: baseTime}, nil, nil)

	results, err := db.Search(context.Background(), "creme", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected diacritic-insensitive hit, got %+v", results)
	}
}

func TestFTS5_RankPrefersDenserMatch(t *testing.T) {
	db := testDB(t)
	put(t, db, models.Note{ID: "thin", Title: "Thin", Content: "raft appears once among many other unrelated words in this longer body", UpdatedAt: baseTime}, nil, nil)
	put(t, db, models.Note{ID: "dense", Title: "Raft", Content: "raft raft raft", UpdatedAt: baseTime}, nil, nil)

	results, err := db.Search(context.Background(), "raft", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].ID != "dense" {
		t.Errorf("ranking = %+v, want dense first", results)
	}
}

func TestFTS5_OperatorSyntaxError(t *testing.T) {
	db := testDB(t)
	_, err := db.Search(context.Background(), "foo AND", 10)
	if !errors.Is(err, apperr.ErrSearchSyntax) {
		t.Errorf("err = %v, want ErrSearchSyntax", err)
	}
}

func TestFTS5_UpdateReplacesContent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	put(t, db, models.Note{ID: "evo", Title: "Old", Content: "original text", UpdatedAt: baseTime}, nil, nil)

	err := db.Write(ctx, func(tx *Tx) error {
		n := models.Note{ID: "evo", Title: "New", Content: "replacement text", UpdatedAt: baseTime.Add(time.Second)}
		if err := tx.UpdateNote(n); err != nil {
			return err
		}
		return tx.IndexText(n.ID, n.Title, n.Content)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if results, _ := db.Search(ctx, "original", 10); len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ := db.Search(ctx, "replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
