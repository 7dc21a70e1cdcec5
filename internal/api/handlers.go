package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lore/internal/models"
	"github.com/starford/lore/internal/notestore"
	"github.com/starford/lore/internal/retrieval"
)

// Notes is the note store surface served over HTTP.
type Notes interface {
	List(ctx context.Context) ([]models.NoteSummary, error)
	Detail(ctx context.Context, id string) (*notestore.NoteDetail, error)
	Create(ctx context.Context, title, content string) (*models.Note, error)
	Update(ctx context.Context, id, title, content string) (*models.Note, error)
	Delete(ctx context.Context, id string) (int64, error)
	Backlinks(ctx context.Context, id string) ([]models.NoteRef, error)
	Tags(ctx context.Context) ([]models.TagCount, error)
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
	Graph(ctx context.Context) (*models.Graph, error)
}

// Asker answers questions over the notes.
type Asker interface {
	Ask(ctx context.Context, req retrieval.AskRequest) (*retrieval.Answer, error)
}

// Handler holds API route handlers.
type Handler struct {
	notes Notes
	asker Asker
}

// NewHandler creates a new Handler. asker may be nil, in which case
// POST /ask is not served.
func NewHandler(notes Notes, asker Asker) *Handler {
	return &Handler{notes: notes, asker: asker}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, most recently updated first
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.notes.List(r.Context())
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a note with links, tags and backlinks
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.notes.Detail(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err, slog.String("note_id", id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.notes.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		writeError(w, "create note", err, slog.String("title", req.Title))
		return
	}
	w.Header().Set("Location", "/api/notes/"+note.ID)
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Replace the title and content of a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		NoteRequest	true	"New title and content"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.notes.Update(r.Context(), id, req.Title, req.Content)
	if err != nil {
		writeError(w, "update note", err, slog.String("note_id", id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}. Deleting an unknown id is not
// an error; the response reports 0 deleted notes.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	DeleteResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.notes.Delete(r.Context(), id)
	if err != nil {
		writeError(w, "delete note", err, slog.String("note_id", id))
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

// Backlinks handles GET /api/notes/{id}/backlinks.
//
//	@Summary		List notes linking to a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	BacklinksResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	refs, err := h.notes.Backlinks(r.Context(), id)
	if err != nil {
		writeError(w, "backlinks", err, slog.String("note_id", id))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: refs})
}

// Tags handles GET /api/tags.
//
//	@Summary		List tags with note counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.notes.Tags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// Search handles GET /api/search. An empty query yields no results.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Search query"
//	@Param			limit	query		int		false	"Max results (1-50)"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.notes.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.notes.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Ask handles POST /api/ask.
//
//	@Summary		Answer a question from the notes
//	@Tags			ask
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AskRequest	true	"Question"
//	@Success		200		{object}	AskResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ask [post]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ans, err := h.asker.Ask(r.Context(), req)
	if err != nil {
		writeError(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}
