package api

import (
	"github.com/starford/lore/internal/models"
	"github.com/starford/lore/internal/notestore"
	"github.com/starford/lore/internal/retrieval"
)

// NoteRequest is the request body for creating or updating a note.
type NoteRequest struct {
	Title   string `json:"title" example:"Raft" validate:"required"`
	Content string `json:"content" example:"See [[Paxos]] #distributed"`
}

// NoteDetail is a note with its links, tags and backlinks.
type NoteDetail = notestore.NoteDetail

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.NoteSummary `json:"notes" validate:"required"`
	Total int                  `json:"total" example:"42" validate:"required"`
}

// DeleteResponse reports how many notes a delete removed (0 or 1).
type DeleteResponse struct {
	Deleted int64 `json:"deleted" example:"1"`
}

// BacklinksResponse lists the notes linking to a note.
type BacklinksResponse struct {
	Backlinks []models.NoteRef `json:"backlinks" validate:"required"`
}

// TagsResponse lists tags with their note counts.
type TagsResponse struct {
	Tags []models.TagCount `json:"tags" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchResult `json:"results" validate:"required"`
}

// GraphResponse is the link graph.
type GraphResponse = models.Graph

// AskRequest is the body of POST /api/ask.
type AskRequest = retrieval.AskRequest

// AskResponse is the generated answer with the notes used as context.
type AskResponse = retrieval.Answer
