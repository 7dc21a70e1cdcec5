package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/lore/internal/apperr"
	"github.com/starford/lore/internal/models"
	"github.com/starford/lore/internal/testutil"
)

type fakeSource struct {
	notes     map[string]models.Note
	recent    []models.Note
	matches   []models.Note
	matchErr  error
	gotQuery  string
	gotLimit  int
	gotTitle  string
	titleHits []models.Note
}

func (f *fakeSource) Get(_ context.Context, id string) (*models.Note, error) {
	n, ok := f.notes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &n, nil
}

func (f *fakeSource) Recent(_ context.Context, limit int) ([]models.Note, error) {
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeSource) MatchNotes(_ context.Context, query string, limit int) ([]models.Note, error) {
	f.gotQuery, f.gotLimit = query, limit
	return f.matches, f.matchErr
}

func (f *fakeSource) MatchTitles(_ context.Context, substr string, limit int) ([]models.Note, error) {
	f.gotTitle, f.gotLimit = substr, limit
	return f.titleHits, nil
}

func note(id string) models.Note {
	return models.Note{ID: id, Title: "Title " + id, Content: "content " + id}
}

func ids(entries []models.ContextEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestAssemble_BlankPrompt(t *testing.T) {
	a := NewAssembler(&fakeSource{}, testutil.DiscardLogger())
	for _, p := range []string{"", "  \n\t"} {
		_, err := a.Assemble(context.Background(), Request{Prompt: p})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
}

func TestAssemble_TopKOutOfRange(t *testing.T) {
	a := NewAssembler(&fakeSource{}, testutil.DiscardLogger())
	_, err := a.Assemble(context.Background(), Request{Prompt: "q", TopK: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = a.Assemble(context.Background(), Request{Prompt: "q", TopK: MaxTopK + 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAssemble_AnchorFirstWithoutDuplicates(t *testing.T) {
	src := &fakeSource{
		notes:   map[string]models.Note{"a": note("a")},
		matches: []models.Note{note("b"), note("a"), note("c")},
	}
	a := NewAssembler(src, testutil.DiscardLogger())

	res, err := a.Assemble(context.Background(), Request{Prompt: "query", NoteID: "a", TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(res.Entries))
	assert.Equal(t, 3, src.gotLimit)
	assert.False(t, res.Degraded)
}

func TestAssemble_DefaultTopK(t *testing.T) {
	src := &fakeSource{}
	a := NewAssembler(src, testutil.DiscardLogger())
	_, err := a.Assemble(context.Background(), Request{Prompt: "query"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, src.gotLimit)
}

func TestAssemble_UnknownAnchorSkipped(t *testing.T) {
	src := &fakeSource{matches: []models.Note{note("b")}}
	a := NewAssembler(src, testutil.DiscardLogger())

	res, err := a.Assemble(context.Background(), Request{Prompt: "query", NoteID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(res.Entries))
}

func TestAssemble_IncludeAllSkipsSearch(t *testing.T) {
	recent := make([]models.Note, 0, 60)
	for i := 0; i < 60; i++ {
		recent = append(recent, note(strings.Repeat("r", i+1)))
	}
	recent[3] = note("a")
	src := &fakeSource{
		notes:  map[string]models.Note{"a": note("a")},
		recent: recent,
	}
	a := NewAssembler(src, testutil.DiscardLogger())

	res, err := a.Assemble(context.Background(), Request{Prompt: "q", NoteID: "a", TopK: 2, IncludeAll: true})
	require.NoError(t, err)
	assert.Len(t, res.Entries, IncludeAllLimit)
	assert.Equal(t, "a", res.Entries[0].ID)
	assert.Empty(t, src.gotQuery, "search must not run in include-all mode")
}

func TestAssemble_QuotesStrippedFromQuery(t *testing.T) {
	src := &fakeSource{}
	a := NewAssembler(src, testutil.DiscardLogger())

	_, err := a.Assemble(context.Background(), Request{Prompt: `what's "raft"`})
	require.NoError(t, err)
	assert.NotContains(t, src.gotQuery, `"`)
	assert.NotContains(t, src.gotQuery, `'`)
	assert.Equal(t, []string{"what", "s", "raft"}, strings.Fields(src.gotQuery))
}

func TestAssemble_QuotesOnlyPromptSkipsSearch(t *testing.T) {
	src := &fakeSource{}
	a := NewAssembler(src, testutil.DiscardLogger())

	res, err := a.Assemble(context.Background(), Request{Prompt: `"'"`})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Empty(t, src.gotQuery)
	assert.Empty(t, src.gotTitle)
}

func TestAssemble_SyntaxErrorFallsBackToTitles(t *testing.T) {
	src := &fakeSource{
		notes:     map[string]models.Note{"a": note("a")},
		matchErr:  apperr.ErrSearchSyntax,
		titleHits: []models.Note{note("a"), note("t")},
	}
	a := NewAssembler(src, testutil.DiscardLogger())

	res, err := a.Assemble(context.Background(), Request{Prompt: " what? ", NoteID: "a", TopK: 4})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "what?", src.gotTitle)
	assert.Equal(t, 4, src.gotLimit)
	assert.Equal(t, []string{"a", "t"}, ids(res.Entries))
}

func TestAssemble_OtherErrorsPropagate(t *testing.T) {
	boom := errors.New("disk on fire")
	src := &fakeSource{matchErr: boom}
	a := NewAssembler(src, testutil.DiscardLogger())

	_, err := a.Assemble(context.Background(), Request{Prompt: "q"})
	assert.ErrorIs(t, err, boom)
}

func TestAssemble_TruncatesContent(t *testing.T) {
	long := models.Note{ID: "l", Title: "Long", Content: strings.Repeat("ж", MaxEntryRunes+10)}
	src := &fakeSource{matches: []models.Note{long}}
	a := NewAssembler(src, testutil.DiscardLogger())

	res, err := a.Assemble(context.Background(), Request{Prompt: "q"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, MaxEntryRunes, len([]rune(res.Entries[0].Content)))
}

func TestAssemble_AgainstStore(t *testing.T) {
	store := testutil.TestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, "Alpha", "raft consensus notes")
	require.NoError(t, err)
	_, err = store.Create(ctx, "Beta", "more about raft")
	require.NoError(t, err)
	_, err = store.Create(ctx, "bad query log", "unrelated")
	require.NoError(t, err)

	asm := NewAssembler(store, testutil.DiscardLogger())

	res, err := asm.Assemble(ctx, Request{Prompt: "raft", NoteID: a.ID, TopK: 3})
	require.NoError(t, err)
	require.NotEmpty(t, res.Entries)
	assert.Equal(t, a.ID, res.Entries[0].ID)
	seen := map[string]int{}
	for _, e := range res.Entries {
		seen[e.ID]++
	}
	assert.Equal(t, 1, seen[a.ID])
	assert.Len(t, res.Entries, 2)

	// The same text that fails on the direct search path still yields a context.
	_, err = store.Search(ctx, `bad"""query`, 10)
	require.ErrorIs(t, err, apperr.ErrSearchSyntax)
	_, err = asm.Assemble(ctx, Request{Prompt: `bad"""query`})
	require.NoError(t, err)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "hi", truncateRunes("hi", 4))
	assert.Equal(t, "", truncateRunes("abc", 0))
}

