package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"vaultindex/internal/adapter/cache"
	"vaultindex/internal/adapter/store"
	"vaultindex/internal/domain"
)

type fakeSource struct {
	mu       sync.Mutex
	content  map[string]string
	modTime  map[string]time.Time
	readErrs map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		content:  make(map[string]string),
		modTime:  make(map[string]time.Time),
		readErrs: make(map[string]error),
	}
}

func (f *fakeSource) add(id, content string, mod time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[id] = content
	f.modTime[id] = mod
}

func (f *fakeSource) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.content, id)
	delete(f.modTime, id)
}

func (f *fakeSource) ListAll() ([]domain.DocumentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.content))
	for id := range f.content {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([]domain.DocumentInfo, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, domain.DocumentInfo{
			ID:      id,
			Title:   id,
			ModTime: f.modTime[id],
		})
	}
	return docs, nil
}

func (f *fakeSource) Read(id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErrs[id]; err != nil {
		return "", err
	}
	return f.content[id], nil
}

func (f *fakeSource) Exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.content[id]
	return ok
}

type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	failCalls map[int]error // 1-based call number -> error
	block     chan struct{} // when set, EmbedBatch waits for a signal
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	block := e.block
	e.mu.Unlock()

	if block != nil {
		<-block
	}
	if err := e.failCalls[call]; err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = []float32{float32(len(text)), 1, 0}
	}
	return vecs, nil
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *fakeEmbedder) Dimension() int { return 3 }

func (e *fakeEmbedder) ModelName() string { return "fake" }

func (e *fakeEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func newTestIndexer(t *testing.T, src *fakeSource, emb *fakeEmbedder, opts IndexerOptions) (*Indexer, *store.Store) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "vectors.json"))
	return NewIndexer(st, src, emb, opts), st
}

func TestIndexAll(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	for i := 1; i <= 3; i++ {
		src.add(fmt.Sprintf("doc%d.md", i), fmt.Sprintf("note number %d", i), now)
	}
	idx, st := newTestIndexer(t, src, &fakeEmbedder{}, IndexerOptions{})

	n, err := idx.IndexAll(context.Background())
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 indexed, got %d", n)
	}
	if st.Count() != 3 {
		t.Errorf("expected 3 entries, got %d", st.Count())
	}

	entry, err := st.Get("doc1.md")
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Modified.Equal(now) {
		t.Errorf("watermark not set to source mod time")
	}
	if len(entry.Embedding) != 3 {
		t.Errorf("missing embedding: %v", entry.Embedding)
	}
}

func TestIndexAllEmptySource(t *testing.T) {
	idx, _ := newTestIndexer(t, newFakeSource(), &fakeEmbedder{}, IndexerOptions{})
	n, err := idx.IndexAll(context.Background())
	if err != nil || n != 0 {
		t.Errorf("expected (0, nil), got (%d, %v)", n, err)
	}
}

func TestIndexAllIdempotent(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	src.add("a.md", "alpha", now)
	src.add("b.md", "beta", now)
	idx, st := newTestIndexer(t, src, &fakeEmbedder{}, IndexerOptions{})

	if _, err := idx.IndexAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	needs, err := st.NeedsFullReindex(src)
	if err != nil {
		t.Fatal(err)
	}
	if needs {
		t.Error("store should be fresh before second run")
	}

	n, err := idx.IndexAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || st.Count() != 2 {
		t.Errorf("second run changed entry set: n=%d count=%d", n, st.Count())
	}
}

func TestIndexAllSkipsUnreadableDocument(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	for i := 1; i <= 5; i++ {
		src.add(fmt.Sprintf("doc%d.md", i), fmt.Sprintf("note %d", i), now)
	}
	src.readErrs["doc3.md"] = errors.New("permission denied")
	idx, st := newTestIndexer(t, src, &fakeEmbedder{}, IndexerOptions{})

	n, err := idx.IndexAll(context.Background())
	if err != nil {
		t.Fatalf("read failure must not abort the run: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 indexed, got %d", n)
	}
	if _, err := st.Get("doc3.md"); err == nil {
		t.Error("unreadable doc must not get an entry")
	}
	if _, err := st.Get("doc4.md"); err != nil {
		t.Error("siblings of the failed doc must be indexed")
	}
}

func TestIndexAllFailedBatchContributesNothing(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	for i := 1; i <= 4; i++ {
		src.add(fmt.Sprintf("doc%d.md", i), fmt.Sprintf("note %d", i), now)
	}
	emb := &fakeEmbedder{failCalls: map[int]error{1: errors.New("rate limited")}}
	idx, st := newTestIndexer(t, src, emb, IndexerOptions{BatchSize: 2})

	n, err := idx.IndexAll(context.Background())
	if err != nil {
		t.Fatalf("batch failure must not abort the run: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 indexed (second batch only), got %d", n)
	}
	// The failed batch left no watermark, so a modified scan retries it.
	modified, err := st.FindModified(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(modified) != 2 {
		t.Errorf("expected failed batch to remain modified, got %v", modified)
	}
}

func TestIndexAllSkipsEmptyDocuments(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	src.add("real.md", "actual text", now)
	src.add("empty.md", "---\nonly: frontmatter\n---\n", now)
	idx, st := newTestIndexer(t, src, &fakeEmbedder{}, IndexerOptions{})

	n, err := idx.IndexAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 indexed, got %d", n)
	}
	if _, err := st.Get("empty.md"); err == nil {
		t.Error("empty document must not get an entry")
	}
}

func TestIndexAllPurgesDeletedFirst(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	src.add("keep.md", "kept", now)
	src.add("gone.md", "doomed", now)
	idx, st := newTestIndexer(t, src, &fakeEmbedder{}, IndexerOptions{})

	if _, err := idx.IndexAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.remove("gone.md")

	if _, err := idx.IndexAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Get("gone.md"); err == nil {
		t.Error("orphaned entry survived a full sync")
	}
	if st.Count() != 1 {
		t.Errorf("expected 1 entry, got %d", st.Count())
	}
}

func TestIndexAllSingleFlight(t *testing.T) {
	src := newFakeSource()
	src.add("a.md", "alpha", time.Now())
	emb := &fakeEmbedder{block: make(chan struct{})}
	idx, st := newTestIndexer(t, src, emb, IndexerOptions{})

	done := make(chan int)
	go func() {
		n, _ := idx.IndexAll(context.Background())
		done <- n
	}()

	// Wait until the first run is inside the provider call.
	for emb.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	n, err := idx.IndexAll(context.Background())
	if err != nil {
		t.Fatalf("overlapping request must not error: %v", err)
	}
	if n != 0 {
		t.Errorf("overlapping request must report 0, got %d", n)
	}
	if st.Count() != 0 {
		t.Error("overlapping request must not touch the store")
	}

	close(emb.block)
	if first := <-done; first != 1 {
		t.Errorf("first run should have indexed 1, got %d", first)
	}
}

func TestIndexModified(t *testing.T) {
	src := newFakeSource()
	start := time.Now()
	src.add("a.md", "alpha", start)
	src.add("b.md", "beta", start)
	idx, st := newTestIndexer(t, src, &fakeEmbedder{}, IndexerOptions{})

	if _, err := idx.IndexAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Nothing changed.
	n, err := idx.IndexModified(context.Background())
	if err != nil || n != 0 {
		t.Errorf("expected (0, nil) with nothing modified, got (%d, %v)", n, err)
	}

	// Touch one document and add another.
	src.add("a.md", "alpha rewritten", start.Add(time.Minute))
	src.add("c.md", "gamma", start.Add(time.Minute))

	n, err = idx.IndexModified(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 re-indexed, got %d", n)
	}

	entry, err := st.Get("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Modified.Equal(start.Add(time.Minute)) {
		t.Error("watermark not advanced after re-index")
	}
	if st.Count() != 3 {
		t.Errorf("expected 3 entries, got %d", st.Count())
	}
}

func TestIndexOne(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	src.add("a.md", "alpha", now)
	src.add("empty.md", "", now)
	idx, st := newTestIndexer(t, src, &fakeEmbedder{}, IndexerOptions{})

	ok, err := idx.IndexOne(context.Background(), domain.DocumentInfo{ID: "a.md", Title: "a", ModTime: now})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected success for readable document")
	}
	if st.Count() != 1 {
		t.Errorf("expected 1 entry, got %d", st.Count())
	}

	ok, err = idx.IndexOne(context.Background(), domain.DocumentInfo{ID: "empty.md", Title: "empty", ModTime: now})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected failure for empty document")
	}
}

func TestIndexOneProviderFailure(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	src.add("a.md", "alpha", now)
	emb := &fakeEmbedder{failCalls: map[int]error{1: errors.New("provider down")}}
	idx, _ := newTestIndexer(t, src, emb, IndexerOptions{})

	ok, err := idx.IndexOne(context.Background(), domain.DocumentInfo{ID: "a.md", Title: "a", ModTime: now})
	if err != nil {
		t.Fatalf("provider failure is absorbed, not returned: %v", err)
	}
	if ok {
		t.Error("expected failure when provider is down")
	}
}

func TestIndexAllUsesEmbedCache(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	src.add("a.md", "alpha", now)
	src.add("b.md", "beta", now)

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), "fake")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	emb := &fakeEmbedder{}
	idx, st := newTestIndexer(t, src, emb, IndexerOptions{Cache: c})

	if _, err := idx.IndexAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := emb.callCount()

	// Force a full re-embed of unchanged content: the cache answers,
	// the provider is not called again.
	if err := st.Clear(); err != nil {
		t.Fatal(err)
	}
	n, err := idx.IndexAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 indexed from cache, got %d", n)
	}
	if emb.callCount() != callsAfterFirst {
		t.Errorf("provider called %d times after cache warm, expected %d",
			emb.callCount(), callsAfterFirst)
	}
}

func TestIndexerProgress(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	for i := 0; i < 7; i++ {
		src.add(fmt.Sprintf("doc%d.md", i), "text", now)
	}

	var reports [][2]int
	idx, _ := newTestIndexer(t, src, &fakeEmbedder{}, IndexerOptions{
		BatchSize: 3,
		Progress: func(processed, total int) {
			reports = append(reports, [2]int{processed, total})
		},
	})
	if _, err := idx.IndexAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(reports) != 3 {
		t.Fatalf("expected 3 progress reports, got %d", len(reports))
	}
	last := reports[len(reports)-1]
	if last[0] != 7 || last[1] != 7 {
		t.Errorf("final report should be (7, 7), got %v", last)
	}
}
