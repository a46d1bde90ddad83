package domain

import "time"

// Entry is one embedded document in the vector store, keyed by the
// document's vault-relative path. Modified is the sync watermark: the
// source document's modification time at the moment it was embedded.
type Entry struct {
	ID        string
	Embedding []float32
	Content   string
	Title     string
	Modified  time.Time
	Tags      []string
}

// DocumentInfo describes a live document as reported by the source.
type DocumentInfo struct {
	ID      string
	Title   string
	ModTime time.Time
}

// SearchResult pairs an entry with its similarity to a query vector.
// Ephemeral, never persisted.
type SearchResult struct {
	Entry Entry
	Score float64
}

type StoreStats struct {
	EntryCount  int
	LastIndexed string
}
