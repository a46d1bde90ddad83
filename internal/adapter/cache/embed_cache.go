// Package cache memoizes embeddings by content hash so text that has
// not changed is never re-sent to the provider. Entries live in a
// BoltDB file, in a bucket scoped to the embedding model, so switching
// models invalidates the cache naturally.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

type EmbedCache struct {
	db     *bbolt.DB
	bucket []byte
}

// Open opens (creating if needed) the cache file and the bucket for
// the given model.
func Open(path, model string) (*EmbedCache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open embed cache: %w", err)
	}

	bucket := []byte("embeddings:" + model)
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}

	return &EmbedCache{db: db, bucket: bucket}, nil
}

// Get returns the cached vector for the text, if any. A corrupted
// record counts as a miss.
func (c *EmbedCache) Get(text string) ([]float32, bool) {
	var vec []float32
	found := false
	c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(c.bucket).Get(cacheKey(text))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &vec); err != nil {
			return nil
		}
		found = len(vec) > 0
		return nil
	})
	if !found {
		return nil, false
	}
	return vec, true
}

// Put stores a vector under the text's content hash.
func (c *EmbedCache) Put(text string, vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(c.bucket).Put(cacheKey(text), data)
	})
}

func (c *EmbedCache) Close() error {
	return c.db.Close()
}

func cacheKey(text string) []byte {
	hash := sha256.Sum256([]byte(text))
	return []byte(hex.EncodeToString(hash[:]))
}
