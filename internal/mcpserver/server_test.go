package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/lore/internal/models"
	"github.com/starford/lore/internal/notestore"
	"github.com/starford/lore/internal/retrieval"
	"github.com/starford/lore/internal/testutil"
)

type noGenerator struct{}

func (noGenerator) Generate(context.Context, string, string) (string, error) { return "", nil }

func testServer(t *testing.T) (*Server, *notestore.Service) {
	t.Helper()
	notes := testutil.TestStore(t)
	ask := retrieval.NewService(notes, noGenerator{}, retrieval.WithLogger(testutil.DiscardLogger()))
	return New(notes, ask, "test"), notes
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so dispatch to the handlers directly.
	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "update_note":
		result, err = srv.updateNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "list_tags":
		result, err = srv.listTags(ctx, req)
	case "build_context":
		result, err = srv.buildContext(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func resultJSON[T any](t *testing.T, r *mcp.CallToolResult) T {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var v T
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return v
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	created := resultJSON[models.Note](t, callTool(t, srv, "create_note", map[string]any{
		"title":   "Test",
		"content": "Hello #greeting",
	}))
	if created.ID == "" || created.Title != "Test" {
		t.Errorf("created = %+v", created)
	}

	byID := resultJSON[notestore.NoteDetail](t, callTool(t, srv, "read_note", map[string]any{"id": created.ID}))
	if byID.Content != "Hello #greeting" || len(byID.Tags) != 1 {
		t.Errorf("read by id = %+v", byID)
	}

	byTitle := resultJSON[notestore.NoteDetail](t, callTool(t, srv, "read_note", map[string]any{"title": "Test"}))
	if byTitle.ID != created.ID {
		t.Errorf("read by title id = %q", byTitle.ID)
	}
}

func TestCreateNote_Duplicate(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_note", map[string]any{"title": "Dup"})
	r := callTool(t, srv, "create_note", map[string]any{"title": "Dup"})
	if !r.IsError {
		t.Error("expected error for duplicate title")
	}
}

func TestUpdateNote(t *testing.T) {
	srv, notes := testServer(t)
	n, err := notes.Create(context.Background(), "Old", "v1")
	if err != nil {
		t.Fatal(err)
	}

	updated := resultJSON[models.Note](t, callTool(t, srv, "update_note", map[string]any{
		"id":      n.ID,
		"title":   "New",
		"content": "v2",
	}))
	if updated.Title != "New" || updated.Content != "v2" {
		t.Errorf("updated = %+v", updated)
	}

	r := callTool(t, srv, "update_note", map[string]any{"id": "missing", "title": "X"})
	if !r.IsError {
		t.Error("expected error for unknown id")
	}
}

func TestListNotesAndTags(t *testing.T) {
	srv, notes := testServer(t)
	ctx := context.Background()
	_, _ = notes.Create(ctx, "a", "#x")
	_, _ = notes.Create(ctx, "b", "#x #y")

	list := resultJSON[[]models.NoteSummary](t, callTool(t, srv, "list_notes", map[string]any{}))
	if len(list) != 2 || list[0].Title != "b" {
		t.Errorf("list = %+v", list)
	}

	tags := resultJSON[[]models.TagCount](t, callTool(t, srv, "list_tags", map[string]any{}))
	if len(tags) != 2 || tags[0] != (models.TagCount{Tag: "x", Count: 2}) {
		t.Errorf("tags = %+v", tags)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "read_note", map[string]any{"id": "nope"}); !r.IsError {
		t.Error("expected error for missing note")
	}
	if r := callTool(t, srv, "read_note", map[string]any{}); !r.IsError {
		t.Error("expected error without id or title")
	}
}

func TestSearchNotes(t *testing.T) {
	srv, notes := testServer(t)
	_, _ = notes.Create(context.Background(), "Fox", "the quick brown fox")

	hits := resultJSON[[]models.SearchResult](t, callTool(t, srv, "search_notes", map[string]any{
		"query": "quick",
		"limit": 5,
	}))
	if len(hits) != 1 || hits[0].Title != "Fox" {
		t.Errorf("hits = %+v", hits)
	}

	r := callTool(t, srv, "search_notes", map[string]any{"query": `bad"""query`})
	if !r.IsError {
		t.Error("expected syntax error")
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, notes := testServer(t)
	ctx := context.Background()
	b, _ := notes.Create(ctx, "b", "")

	if text := resultText(callTool(t, srv, "get_backlinks", map[string]any{"id": b.ID})); text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}

	_, _ = notes.Create(ctx, "a", "links to [[b]]")
	refs := resultJSON[[]models.NoteRef](t, callTool(t, srv, "get_backlinks", map[string]any{"id": b.ID}))
	if len(refs) != 1 || refs[0].Title != "a" {
		t.Errorf("backlinks = %+v", refs)
	}
}

func TestBuildContext(t *testing.T) {
	srv, notes := testServer(t)
	ctx := context.Background()
	anchor, _ := notes.Create(ctx, "Anchor", "raft")
	_, _ = notes.Create(ctx, "Other", "raft too")

	res := resultJSON[struct {
		Entries  []models.ContextEntry `json:"entries"`
		Degraded bool                  `json:"degraded"`
	}](t, callTool(t, srv, "build_context", map[string]any{
		"prompt":  "raft",
		"note_id": anchor.ID,
		"top_k":   3,
	}))
	if len(res.Entries) != 2 || res.Entries[0].ID != anchor.ID {
		t.Errorf("entries = %+v", res.Entries)
	}

	if r := callTool(t, srv, "build_context", map[string]any{"prompt": "  "}); !r.IsError {
		t.Error("expected validation error for blank prompt")
	}
}

func TestNoteContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_note_contract", map[string]any{}))
	if !strings.Contains(text, "[[Title]]") {
		t.Errorf("contract missing link syntax")
	}

	contents, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != NoteFormatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
