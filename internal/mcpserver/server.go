// Package mcpserver exposes the note store and context assembly to LLM
// clients as MCP (Model Context Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/lore/internal/apperr"
	"github.com/starford/lore/internal/notestore"
	"github.com/starford/lore/internal/retrieval"
)

const defaultSearchLimit = 20

// Server wraps the MCP server with lore tools.
type Server struct {
	mcp   *server.MCPServer
	notes *notestore.Service
	ask   *retrieval.Service
}

// New creates a new MCP server with all tools registered.
func New(notes *notestore.Service, ask *retrieval.Service, version string) *Server {
	s := &Server{notes: notes, ask: ask}

	s.mcp = server.NewMCPServer(
		"Lore",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Ranked full-text search over note titles and content. "+
			"Returns id, title and a snippet with <mark> around the match."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Full-text query")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (1-50, default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note with its links, tags and backlinks. Give either id or title."),
		mcp.WithString("id", mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("Exact note title")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Titles must be unique. Read "+NoteFormatURI+
			" or call get_note_contract for the link and tag syntax."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Unique title")),
		mcp.WithString("content", mcp.Description("Note body with [[links]] and #tags")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the title and content of an existing note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New content")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, most recently updated first."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the linked-to note")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List tags with the number of notes carrying each."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("build_context",
		mcp.WithDescription("Select the notes relevant to a question: the anchor note first, "+
			"then full-text hits (or the most recent notes with include_all)."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The question")),
		mcp.WithString("note_id", mcp.Description("Optional anchor note id")),
		mcp.WithNumber("top_k", mcp.Description("Number of search hits (default 5)")),
		mcp.WithBoolean("include_all", mcp.Description("Use the 50 most recent notes instead of search")),
	), s.buildContext)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format: link syntax, tag syntax and an example."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format",
			mcp.WithResourceDescription("How links and tags are written in note content."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.notes.Search(ctx, query, req.GetInt("limit", defaultSearchLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		title := req.GetString("title", "")
		if title == "" {
			return mcp.NewToolResultError("id or title is required"), nil
		}
		n, err := s.notes.NoteByTitle(ctx, title)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id = n.ID
	}
	d, err := s.notes.Detail(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.Create(ctx, title, req.GetString("content", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.Update(ctx, id, title, req.GetString("content", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.notes.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.notes.Backlinks(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(bl)
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.notes.Tags(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tags)
}

type contextResult struct {
	Entries  any  `json:"entries"`
	Degraded bool `json:"degraded"`
}

func (s *Server) buildContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.ask.Assemble(ctx, retrieval.AskRequest{
		Prompt:     prompt,
		NoteID:     req.GetString("note_id", ""),
		TopK:       req.GetInt("top_k", 0),
		IncludeAll: req.GetBool("include_all", false),
	})
	if errors.Is(err, apperr.ErrValidation) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(contextResult{Entries: res.Entries, Degraded: res.Degraded})
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
