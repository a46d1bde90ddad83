// Package store implements the durable vector store: a JSON file on
// disk, a map keyed by document id in memory, and exact brute-force
// cosine search. Brute force is deliberate at this scale; swap in an
// ANN index if collections grow past tens of thousands of entries.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/phuslu/log"

	"vaultindex/internal/domain"
	"vaultindex/internal/port"
)

const storeVersion = "1.0.0"

// ErrNotFound is returned by Get for ids with no entry.
var ErrNotFound = errors.New("entry not found")

// Store is a lazily-loaded vector store persisted as a versioned JSON
// file. Every mutation flushes the whole file synchronously before
// returning. All operations are safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	path       string
	entries    map[string]domain.Entry
	order      []string // insertion order, keeps search ranking deterministic
	loaded     bool
	sampleSize int
}

// New creates an unloaded store backed by the given file path. Nothing
// is read until the first operation.
func New(path string) *Store {
	return &Store{
		path:       path,
		entries:    make(map[string]domain.Entry),
		sampleSize: 10,
	}
}

// WithSampleSize sets how many live documents NeedsFullReindex samples
// for its modification check.
func (s *Store) WithSampleSize(n int) *Store {
	if n > 0 {
		s.sampleSize = n
	}
	return s
}

type storeFile struct {
	Version     string        `json:"version"`
	LastUpdated string        `json:"lastUpdated"`
	Vectors     []storedEntry `json:"vectors"`
}

type storedEntry struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Content   string    `json:"content"`
	Title     string    `json:"title"`
	Modified  string    `json:"modified"`
	Tags      []string  `json:"tags,omitempty"`
}

// Load reads durable state on first call; later calls are no-ops.
// An absent or corrupt file falls back to an empty store: indexing is
// expected to heal it, so this never fails.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
}

// ensureLoaded must be called with s.mu held.
func (s *Store) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("vector store unreadable, starting empty")
		}
		return
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("vector store corrupt, starting empty")
		return
	}

	for _, se := range file.Vectors {
		entry := domain.Entry{
			ID:        se.ID,
			Embedding: se.Embedding,
			Content:   se.Content,
			Title:     se.Title,
			Tags:      se.Tags,
		}
		if se.Tags == nil {
			entry.Tags = []string{}
		}
		if t, err := time.Parse(time.RFC3339Nano, se.Modified); err == nil {
			entry.Modified = t
		}
		if _, exists := s.entries[entry.ID]; !exists {
			s.order = append(s.order, entry.ID)
		}
		s.entries[entry.ID] = entry
	}
	log.Debug().Int("entries", len(s.entries)).Str("path", s.path).Msg("vector store loaded")
}

// flush must be called with s.mu held.
func (s *Store) flush() error {
	file := storeFile{
		Version:     storeVersion,
		LastUpdated: time.Now().Format(time.RFC3339),
		Vectors:     make([]storedEntry, 0, len(s.order)),
	}
	for _, id := range s.order {
		entry := s.entries[id]
		tags := entry.Tags
		if tags == nil {
			tags = []string{}
		}
		file.Vectors = append(file.Vectors, storedEntry{
			ID:        entry.ID,
			Embedding: entry.Embedding,
			Content:   entry.Content,
			Title:     entry.Title,
			Modified:  entry.Modified.Format(time.RFC3339Nano),
			Tags:      tags,
		})
	}

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal vector store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write vector store: %w", err)
	}
	return nil
}

// Upsert inserts or replaces one entry and flushes.
func (s *Store) Upsert(entry domain.Entry) error {
	return s.UpsertBatch([]domain.Entry{entry})
}

// UpsertBatch inserts or replaces entries by id in one flush.
func (s *Store) UpsertBatch(entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	for _, entry := range entries {
		if _, exists := s.entries[entry.ID]; !exists {
			s.order = append(s.order, entry.ID)
		}
		s.entries[entry.ID] = entry
	}
	return s.flush()
}

// Remove deletes an entry if present and flushes. Removing an absent
// id is a no-op.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	if _, exists := s.entries[id]; !exists {
		return nil
	}
	delete(s.entries, id)
	s.removeFromOrder(id)
	return s.flush()
}

// Get returns the entry for id, or ErrNotFound. Never flushes.
func (s *Store) Get(id string) (domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	entry, ok := s.entries[id]
	if !ok {
		return domain.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, nil
}

// Search scores every entry with a non-empty embedding against the
// query vector and returns the top k by cosine similarity, descending,
// ties broken by insertion order. An empty query or k <= 0 returns nil
// without scanning.
func (s *Store) Search(query []float32, k int) []domain.SearchResult {
	if len(query) == 0 || k <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	results := make([]domain.SearchResult, 0, len(s.order))
	for _, id := range s.order {
		entry := s.entries[id]
		if len(entry.Embedding) == 0 {
			continue
		}
		results = append(results, domain.SearchResult{
			Entry: entry,
			Score: CosineSimilarity(query, entry.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

// NeedsFullReindex reports whether the store looks out of sync with
// the live document set: empty store, entry count drift, or a stale
// watermark in a bounded random sample. The sample check is a cheap
// heuristic, not exhaustive; use FindModified when completeness
// matters.
func (s *Store) NeedsFullReindex(src port.DocumentSource) (bool, error) {
	docs, err := src.ListAll()
	if err != nil {
		return false, fmt.Errorf("list documents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	if len(s.entries) == 0 {
		return len(docs) > 0, nil
	}
	if len(docs) != len(s.entries) {
		return true, nil
	}

	sample := s.sampleSize
	if sample > len(docs) {
		sample = len(docs)
	}
	for _, i := range rand.Perm(len(docs))[:sample] {
		doc := docs[i]
		entry, ok := s.entries[doc.ID]
		if !ok || doc.ModTime.After(entry.Modified) {
			return true, nil
		}
	}
	return false, nil
}

// FindModified exhaustively returns every live document that has no
// entry or whose modification time is past the stored watermark.
func (s *Store) FindModified(src port.DocumentSource) ([]domain.DocumentInfo, error) {
	docs, err := src.ListAll()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	var modified []domain.DocumentInfo
	for _, doc := range docs {
		entry, ok := s.entries[doc.ID]
		if !ok || doc.ModTime.After(entry.Modified) {
			modified = append(modified, doc)
		}
	}
	return modified, nil
}

// PurgeDeleted removes every entry whose document no longer exists in
// the source. Flushes only when something was removed. Returns the
// number removed.
func (s *Store) PurgeDeleted(src port.DocumentSource) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	var purged []string
	for _, id := range s.order {
		if !src.Exists(id) {
			purged = append(purged, id)
		}
	}
	if len(purged) == 0 {
		return 0, nil
	}

	for _, id := range purged {
		delete(s.entries, id)
		s.removeFromOrder(id)
	}
	if err := s.flush(); err != nil {
		return 0, err
	}
	log.Info().Int("purged", len(purged)).Msg("removed entries for deleted documents")
	return len(purged), nil
}

// Stats returns the entry count and the most recent watermark, or
// "never" for an empty store.
func (s *Store) Stats() domain.StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	stats := domain.StoreStats{
		EntryCount:  len(s.entries),
		LastIndexed: "never",
	}
	var latest time.Time
	for _, entry := range s.entries {
		if entry.Modified.After(latest) {
			latest = entry.Modified
		}
	}
	if !latest.IsZero() {
		stats.LastIndexed = latest.Format("2006-01-02 15:04:05")
	}
	return stats
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return len(s.entries)
}

// Clear empties the store and flushes.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	s.entries = make(map[string]domain.Entry)
	s.order = nil
	return s.flush()
}

// removeFromOrder must be called with s.mu held.
func (s *Store) removeFromOrder(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// CosineSimilarity computes dot(a,b) / (||a|| * ||b||). Mismatched
// lengths or a zero-norm operand yield exactly 0 rather than an error:
// a stored vector from a different model generation simply never
// ranks.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
