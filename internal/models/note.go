// Package models defines the domain types for lore.
package models

import "time"

// Note is the authoritative record owned by the note store.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteSummary is the lightweight representation returned by list operations.
type NoteSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteRef identifies a note by id and title, as returned by backlink queries.
type NoteRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// TagCount is a tag together with the number of notes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// SearchResult represents one ranked search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// GraphNode is a node in the link graph.
type GraphNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// GraphEdge is a resolved link between two existing notes.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the full link graph projection.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// ContextEntry is one note selected as retrieval context.
type ContextEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}
