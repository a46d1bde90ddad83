package cache

import (
	"path/filepath"
	"testing"
)

func TestCacheRoundTrip(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), "test-model")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	if _, ok := c.Get("hello"); ok {
		t.Error("expected miss on empty cache")
	}

	vec := []float32{0.1, 0.2, 0.3}
	if err := c.Put("hello", vec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok := c.Get("hello")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if len(got) != 3 || got[1] != 0.2 {
		t.Errorf("wrong vector: %v", got)
	}

	if _, ok := c.Get("other text"); ok {
		t.Error("different text should miss")
	}
}

func TestCacheModelScoping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	a, err := Open(path, "model-a")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Put("text", []float32{1}); err != nil {
		t.Fatal(err)
	}
	a.Close()

	b, err := Open(path, "model-b")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok := b.Get("text"); ok {
		t.Error("cache entries must not leak across models")
	}
}

func TestCachePutEmptyVector(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), "m")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Put("text", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("text"); ok {
		t.Error("empty vectors must not be cached")
	}
}
