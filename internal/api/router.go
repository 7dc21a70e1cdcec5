package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// asker may be nil to leave POST /ask unmounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(notes Notes, asker Asker, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(notes, asker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Get("/{id}", h.GetNote)
		r.Put("/{id}", h.UpdateNote)
		r.Delete("/{id}", h.DeleteNote)
		r.Get("/{id}/backlinks", h.Backlinks)
	})

	r.Get("/tags", h.Tags)
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	if asker != nil {
		r.Post("/ask", h.Ask)
	}
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
