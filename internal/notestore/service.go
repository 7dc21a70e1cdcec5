// Package notestore owns note records and keeps their derived link, tag and
// search state consistent with every write.
package notestore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/lore/internal/apperr"
	"github.com/starford/lore/internal/index"
	"github.com/starford/lore/internal/models"
	"github.com/starford/lore/internal/parser"
)

// MaxTitleLen is the maximum title length in characters.
const MaxTitleLen = 512

// Change kinds passed to the change hook.
const (
	ChangeCreated = "note.created"
	ChangeUpdated = "note.updated"
	ChangeDeleted = "note.deleted"
)

// NoteDetail is a note enriched with its derived relations.
type NoteDetail struct {
	models.Note
	Links     []string         `json:"links"`
	Tags      []string         `json:"tags"`
	Backlinks []models.NoteRef `json:"backlinks"`
}

// Service coordinates note writes with the relation and search indexes.
type Service struct {
	db       index.NoteIndex
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	onChange func(kind, id string)
}

// NewService creates a new note store over db.
func NewService(db index.NoteIndex, opts ...Option) *Service {
	s := &Service{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noteInput struct {
	Title string
}

func (in noteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title,
			validation.Required.Error("title must not be empty"),
			validation.RuneLength(1, MaxTitleLen),
		),
	)
}

func normalizeTitle(title string) (string, error) {
	in := noteInput{Title: strings.TrimSpace(title)}
	if err := in.Validate(); err != nil {
		return "", apperr.WrapValidation(err)
	}
	return in.Title, nil
}

// Create stores a new note and derives its links, tags and search document.
func (s *Service) Create(ctx context.Context, title, content string) (*models.Note, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	note := models.Note{
		ID:        s.newID(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.Write(ctx, func(tx *index.Tx) error {
		if owner, err := tx.TitleOwner(title); err != nil {
			return err
		} else if owner != "" {
			return titleTaken(title)
		}
		if err := tx.InsertNote(note); err != nil {
			return err
		}
		return derive(tx, note)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("note written",
		slog.String("op", "create"),
		slog.String("note_id", note.ID),
		slog.String("title", note.Title),
	)
	s.notify(ChangeCreated, note.ID)
	return &note, nil
}

// Update replaces the title and content of an existing note. Derived state is
// rebuilt even when nothing changed.
func (s *Service) Update(ctx context.Context, id, title, content string) (*models.Note, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	var note *models.Note
	err = s.db.Write(ctx, func(tx *index.Tx) error {
		current, err := tx.NoteByID(id)
		if err != nil {
			return err
		}
		if owner, err := tx.TitleOwner(title); err != nil {
			return err
		} else if owner != "" && owner != id {
			return titleTaken(title)
		}
		current.Title = title
		current.Content = content
		current.UpdatedAt = s.now().UTC()
		if err := tx.UpdateNote(*current); err != nil {
			return err
		}
		note = current
		return derive(tx, *current)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("note written",
		slog.String("op", "update"),
		slog.String("note_id", note.ID),
		slog.String("title", note.Title),
	)
	s.notify(ChangeUpdated, note.ID)
	return note, nil
}

// Delete removes a note and everything derived from it. It returns the number
// of notes removed; an unknown id yields 0 and no error.
func (s *Service) Delete(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := s.db.Write(ctx, func(tx *index.Tx) error {
		var err error
		removed, err = tx.DeleteNote(id)
		return err
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("note deleted", slog.String("op", "delete"), slog.String("note_id", id))
		s.notify(ChangeDeleted, id)
	}
	return removed, nil
}

// Get returns a note by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Note, error) {
	return s.db.GetNote(ctx, id)
}

// NoteByTitle returns the note with exactly the given title.
func (s *Service) NoteByTitle(ctx context.Context, title string) (*models.Note, error) {
	return s.db.NoteByTitle(ctx, strings.TrimSpace(title))
}

// Detail returns a note with its outgoing links, tags and backlinks.
func (s *Service) Detail(ctx context.Context, id string) (*NoteDetail, error) {
	note, err := s.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	links, err := s.db.Links(ctx, id)
	if err != nil {
		return nil, err
	}
	tags, err := s.db.Tags(ctx, id)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(ctx, note.Title)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Note:      *note,
		Links:     nonNilSlice(links),
		Tags:      nonNilSlice(tags),
		Backlinks: nonNilSlice(bl),
	}, nil
}

// List returns summaries of all notes, most recently updated first.
func (s *Service) List(ctx context.Context) ([]models.NoteSummary, error) {
	items, err := s.db.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(items), nil
}

// Backlinks returns the notes linking to the note with the given id.
func (s *Service) Backlinks(ctx context.Context, id string) ([]models.NoteRef, error) {
	note, err := s.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.BacklinksOf(ctx, note.Title)
}

// BacklinksOf returns the notes whose content links to title. The title does
// not have to belong to an existing note.
func (s *Service) BacklinksOf(ctx context.Context, title string) ([]models.NoteRef, error) {
	refs, err := s.db.Backlinks(ctx, title)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(refs), nil
}

// Tags returns every tag with the number of notes carrying it.
func (s *Service) Tags(ctx context.Context) ([]models.TagCount, error) {
	tags, err := s.db.TagCounts(ctx)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(tags), nil
}

// Search runs a ranked full-text query. Malformed queries fail with
// apperr.ErrSearchSyntax.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	return s.db.Search(ctx, query, limit)
}

// Graph returns all notes as nodes and every resolvable link as an edge.
func (s *Service) Graph(ctx context.Context) (*models.Graph, error) {
	return s.db.Graph(ctx)
}

// Recent returns up to limit notes, most recently updated first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Note, error) {
	return s.db.RecentNotes(ctx, limit)
}

// MatchNotes returns full notes ranked by a full-text query.
func (s *Service) MatchNotes(ctx context.Context, query string, limit int) ([]models.Note, error) {
	return s.db.SearchNotes(ctx, query, limit)
}

// MatchTitles returns notes whose title contains substr, ignoring case.
func (s *Service) MatchTitles(ctx context.Context, substr string, limit int) ([]models.Note, error) {
	return s.db.FindByTitle(ctx, substr, limit)
}

func (s *Service) notify(kind, id string) {
	if s.onChange != nil {
		s.onChange(kind, id)
	}
}

// derive rebuilds the link, tag and search rows of note inside tx.
func derive(tx *index.Tx, note models.Note) error {
	links := parser.ExtractLinks(note.Content)
	tags := parser.ExtractTags(note.Content)
	if err := tx.ReplaceRelations(note.ID, links, tags); err != nil {
		return err
	}
	return tx.IndexText(note.ID, note.Title, note.Content)
}

func titleTaken(title string) error {
	return apperr.Validation("title %q is already used by another note", title)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
