// Package retrieval selects the notes handed to the text-generation model as
// context and runs the question-answering round-trip.
package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lore/internal/apperr"
	"github.com/starford/lore/internal/models"
)

const (
	// DefaultTopK is the number of search hits requested when none is given.
	DefaultTopK = 5
	// MaxTopK bounds TopK; it matches the search result cap.
	MaxTopK = 50
	// IncludeAllLimit is the number of recent notes used in include-all mode.
	IncludeAllLimit = 50
	// MaxEntryRunes is the content length kept per context entry.
	MaxEntryRunes = 4000
)

// Source is the read surface of the note store the assembler draws from.
type Source interface {
	Get(ctx context.Context, id string) (*models.Note, error)
	Recent(ctx context.Context, limit int) ([]models.Note, error)
	MatchNotes(ctx context.Context, query string, limit int) ([]models.Note, error)
	MatchTitles(ctx context.Context, substr string, limit int) ([]models.Note, error)
}

// Request describes what context to assemble.
type Request struct {
	Prompt     string
	NoteID     string
	TopK       int
	IncludeAll bool
}

// Validate checks the request. A zero TopK means DefaultTopK.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Prompt, validation.By(notBlank)),
		validation.Field(&r.TopK, validation.Min(0), validation.Max(MaxTopK)),
	)
}

func notBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be blank")
	}
	return nil
}

// Result is an assembled context set.
type Result struct {
	Entries []models.ContextEntry
	// Degraded is set when the full-text query was rejected and the
	// title-substring fallback supplied the hits instead.
	Degraded bool
}

// Assembler builds bounded, de-duplicated context sets. It never mutates
// the store.
type Assembler struct {
	src    Source
	logger *slog.Logger
}

// NewAssembler creates an Assembler reading from src.
func NewAssembler(src Source, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{src: src, logger: logger}
}

// Assemble collects context for req: the anchor note first, then either the
// most recent notes or the full-text hits for the prompt. Each note appears
// at most once, at its first position.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.WrapValidation(err)
	}
	topK := req.TopK
	if topK == 0 {
		topK = DefaultTopK
	}

	set := newContextSet()
	res := &Result{}

	if req.NoteID != "" {
		anchor, err := a.src.Get(ctx, req.NoteID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			a.logger.Warn("context anchor not found", slog.String("note_id", req.NoteID))
		case err != nil:
			return nil, err
		default:
			set.add(*anchor)
		}
	}

	if req.IncludeAll {
		notes, err := a.src.Recent(ctx, IncludeAllLimit)
		if err != nil {
			return nil, err
		}
		set.add(notes...)
		res.Entries = set.entries
		return res, nil
	}

	if query := searchQuery(req.Prompt); query != "" {
		notes, err := a.src.MatchNotes(ctx, query, topK)
		if errors.Is(err, apperr.ErrSearchSyntax) {
			a.logger.Warn("context search degraded to title match",
				slog.String("query", query),
				slog.String("error", err.Error()),
			)
			res.Degraded = true
			notes, err = a.src.MatchTitles(ctx, strings.TrimSpace(req.Prompt), topK)
		}
		if err != nil {
			return nil, err
		}
		set.add(notes...)
	}

	res.Entries = set.entries
	return res, nil
}

// searchQuery turns a prompt into a full-text query by blanking quote
// characters.
func searchQuery(prompt string) string {
	q := strings.NewReplacer(`"`, " ", `'`, " ").Replace(prompt)
	return strings.TrimSpace(q)
}

type contextSet struct {
	seen    map[string]struct{}
	entries []models.ContextEntry
}

func newContextSet() *contextSet {
	return &contextSet{
		seen:    make(map[string]struct{}),
		entries: []models.ContextEntry{},
	}
}

func (s *contextSet) add(notes ...models.Note) {
	for _, n := range notes {
		if _, ok := s.seen[n.ID]; ok {
			continue
		}
		s.seen[n.ID] = struct{}{}
		s.entries = append(s.entries, models.ContextEntry{
			ID:      n.ID,
			Title:   n.Title,
			Content: truncateRunes(n.Content, MaxEntryRunes),
		})
	}
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
