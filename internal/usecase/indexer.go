package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"

	"vaultindex/internal/adapter/cache"
	"vaultindex/internal/adapter/markdown"
	"vaultindex/internal/adapter/store"
	"vaultindex/internal/domain"
	"vaultindex/internal/port"
)

// Indexer drives full and incremental syncs between the document
// source and the vector store. At most one sync runs at a time; a
// request that arrives while one is in flight reports zero documents
// processed instead of queueing.
type Indexer struct {
	store    *store.Store
	source   port.DocumentSource
	embedder port.Embedder
	opts     IndexerOptions

	indexing atomic.Bool
}

// IndexerOptions carries tuning knobs. Zero values get defaults.
type IndexerOptions struct {
	// BatchSize bounds how many documents go into one embedding call.
	BatchSize int
	// BatchDelay is the throttle between successive batches, to stay
	// under provider rate limits. Zero disables it.
	BatchDelay time.Duration
	// ContentCap bounds the text snapshot stored per entry, in runes.
	ContentCap int
	// Cache, when set, is consulted by content hash before the
	// provider is called.
	Cache *cache.EmbedCache
	// Progress, when set, is called as documents complete.
	Progress func(processed, total int)
}

func NewIndexer(st *store.Store, src port.DocumentSource, emb port.Embedder, opts IndexerOptions) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.ContentCap <= 0 {
		opts.ContentCap = 3000
	}
	return &Indexer{
		store:    st,
		source:   src,
		embedder: emb,
		opts:     opts,
	}
}

// IndexAll re-indexes the whole document set: purges entries for
// deleted documents, embeds everything live, and commits the result in
// one bulk upsert. Returns the number of documents successfully
// embedded. Returns 0 immediately if a sync is already running.
func (i *Indexer) IndexAll(ctx context.Context) (int, error) {
	if !i.indexing.CompareAndSwap(false, true) {
		log.Debug().Msg("index already running, skipping")
		return 0, nil
	}
	defer i.indexing.Store(false)

	// Purge first so the rest of the run sees a store consistent with
	// the live document set.
	if _, err := i.store.PurgeDeleted(i.source); err != nil {
		return 0, err
	}

	docs, err := i.source.ListAll()
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	entries := i.embedDocuments(ctx, docs)
	if err := i.store.UpsertBatch(entries); err != nil {
		return 0, err
	}
	log.Info().Int("indexed", len(entries)).Int("total", len(docs)).Msg("full index complete")
	return len(entries), nil
}

// IndexModified re-indexes only documents that are new or whose
// modification time passed their stored watermark. Returns 0
// immediately if nothing changed or a sync is already running.
func (i *Indexer) IndexModified(ctx context.Context) (int, error) {
	if !i.indexing.CompareAndSwap(false, true) {
		log.Debug().Msg("index already running, skipping")
		return 0, nil
	}
	defer i.indexing.Store(false)

	docs, err := i.store.FindModified(i.source)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	entries := i.embedDocuments(ctx, docs)
	if err := i.store.UpsertBatch(entries); err != nil {
		return 0, err
	}
	log.Info().Int("indexed", len(entries)).Msg("incremental index complete")
	return len(entries), nil
}

// IndexOne indexes a single document through the same pipeline.
// Reports false when the document preprocessed to empty text or the
// provider failed; store write failures are returned as errors.
func (i *Indexer) IndexOne(ctx context.Context, doc domain.DocumentInfo) (bool, error) {
	entries := i.embedDocuments(ctx, []domain.DocumentInfo{doc})
	if len(entries) == 0 {
		return false, nil
	}
	if err := i.store.UpsertBatch(entries); err != nil {
		return false, err
	}
	return true, nil
}

// pendingDoc is a document that survived read and preprocessing and is
// waiting for its embedding.
type pendingDoc struct {
	doc  domain.DocumentInfo
	text string
	tags []string
}

// embedDocuments runs the batch pipeline over docs and returns the
// entries that embedded successfully. Read failures skip the document;
// provider failures skip the batch; nothing here aborts the run.
func (i *Indexer) embedDocuments(ctx context.Context, docs []domain.DocumentInfo) []domain.Entry {
	var entries []domain.Entry
	processed := 0

	for start := 0; start < len(docs); start += i.opts.BatchSize {
		if start > 0 && i.opts.BatchDelay > 0 {
			select {
			case <-time.After(i.opts.BatchDelay):
			case <-ctx.Done():
				log.Warn().Int("processed", processed).Msg("index interrupted between batches")
				return entries
			}
		}

		end := start + i.opts.BatchSize
		if end > len(docs) {
			end = len(docs)
		}

		entries = append(entries, i.embedBatch(ctx, docs[start:end])...)

		processed += end - start
		if i.opts.Progress != nil {
			i.opts.Progress(processed, len(docs))
		}
	}

	return entries
}

// embedBatch turns one batch of documents into entries. The provider
// is called once for every text the cache could not answer.
func (i *Indexer) embedBatch(ctx context.Context, docs []domain.DocumentInfo) []domain.Entry {
	var pending []pendingDoc
	for _, doc := range docs {
		content, err := i.source.Read(doc.ID)
		if err != nil {
			log.Warn().Err(err).Str("doc", doc.ID).Msg("skipping unreadable document")
			continue
		}

		text := markdown.Preprocess(doc.Title, doc.ID, content)
		if text == "" {
			log.Debug().Str("doc", doc.ID).Msg("skipping document with no indexable text")
			continue
		}

		pending = append(pending, pendingDoc{
			doc:  doc,
			text: text,
			tags: markdown.ExtractTags(content),
		})
	}
	if len(pending) == 0 {
		return nil
	}

	var entries []domain.Entry
	var uncached []pendingDoc
	for _, p := range pending {
		if i.opts.Cache != nil {
			if vec, ok := i.opts.Cache.Get(p.text); ok {
				entries = append(entries, i.buildEntry(p, vec))
				continue
			}
		}
		uncached = append(uncached, p)
	}
	if len(uncached) == 0 {
		return entries
	}

	texts := make([]string, len(uncached))
	for idx, p := range uncached {
		texts[idx] = p.text
	}

	vecs, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// The whole batch failed; these documents keep no watermark
		// and are picked up again by the next modified scan.
		log.Error().Err(err).Int("docs", len(uncached)).Msg("embedding batch failed")
		return entries
	}

	for idx, vec := range vecs {
		if len(vec) == 0 {
			log.Warn().Str("doc", uncached[idx].doc.ID).Msg("provider returned empty embedding, dropping document")
			continue
		}
		entries = append(entries, i.buildEntry(uncached[idx], vec))
		if i.opts.Cache != nil {
			if err := i.opts.Cache.Put(uncached[idx].text, vec); err != nil {
				log.Debug().Err(err).Msg("embed cache write failed")
			}
		}
	}
	return entries
}

func (i *Indexer) buildEntry(p pendingDoc, vec []float32) domain.Entry {
	return domain.Entry{
		ID:        p.doc.ID,
		Embedding: vec,
		Content:   markdown.Truncate(p.text, i.opts.ContentCap),
		Title:     p.doc.Title,
		Modified:  p.doc.ModTime,
		Tags:      p.tags,
	}
}
