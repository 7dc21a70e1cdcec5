package index

import (
	"context"

	"github.com/starford/lore/internal/models"
)

// NoteIndex defines the read and write surface of the index.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteIndex interface {
	Write(ctx context.Context, fn func(*Tx) error) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	NoteByTitle(ctx context.Context, title string) (*models.Note, error)
	ListNotes(ctx context.Context) ([]models.NoteSummary, error)
	RecentNotes(ctx context.Context, limit int) ([]models.Note, error)
	FindByTitle(ctx context.Context, substr string, limit int) ([]models.Note, error)
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
	SearchNotes(ctx context.Context, query string, limit int) ([]models.Note, error)
	Backlinks(ctx context.Context, title string) ([]models.NoteRef, error)
	Links(ctx context.Context, noteID string) ([]string, error)
	Tags(ctx context.Context, noteID string) ([]string, error)
	TagCounts(ctx context.Context) ([]models.TagCount, error)
	Graph(ctx context.Context) (*models.Graph, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
