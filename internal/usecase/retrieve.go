package usecase

import (
	"context"
	"fmt"

	"vaultindex/internal/adapter/store"
	"vaultindex/internal/domain"
	"vaultindex/internal/port"
)

// Retriever answers semantic queries: it embeds the query text and
// ranks store entries against it. The indexer is not involved.
type Retriever struct {
	store    *store.Store
	embedder port.Embedder
}

func NewRetriever(st *store.Store, emb port.Embedder) *Retriever {
	return &Retriever{store: st, embedder: emb}
}

func (r *Retriever) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.store.Search(vec, k), nil
}
