package orchestrator

import (
	"context"

	"github.com/alexelgier/minerva/internal/extraction"
	"github.com/alexelgier/minerva/internal/graphstore"
	localstore "github.com/alexelgier/minerva/internal/store"
)

// graphSearchAdapter satisfies extraction.GraphSearch over the real
// Neo4j-backed store, translating graphstore.ScoredNode into
// extraction.ScoredNode (same shape, distinct types, since neither
// package imports the other).
type graphSearchAdapter struct {
	store *graphstore.Store
}

// NewGraphSearch adapts a *graphstore.Store to extraction.GraphSearch.
func NewGraphSearch(store *graphstore.Store) extraction.GraphSearch {
	return graphSearchAdapter{store: store}
}

func (a graphSearchAdapter) VectorSearch(ctx context.Context, label string, embedding []float32, k int, threshold float64) ([]extraction.ScoredNode, error) {
	hits, err := a.store.VectorSearch(ctx, label, embedding, k, threshold)
	if err != nil {
		return nil, err
	}
	return convertScoredNodes(hits)
}

// cacheGraphSearchAdapter satisfies extraction.GraphSearch over the
// local embedding cache, for use as a fallback or in tests run without a
// live graph store.
type cacheGraphSearchAdapter struct {
	cache *localstore.EmbeddingCache
}

// NewCacheGraphSearch adapts a *store.EmbeddingCache to
// extraction.GraphSearch.
func NewCacheGraphSearch(cache *localstore.EmbeddingCache) extraction.GraphSearch {
	return cacheGraphSearchAdapter{cache: cache}
}

func (a cacheGraphSearchAdapter) VectorSearch(ctx context.Context, label string, embedding []float32, k int, threshold float64) ([]extraction.ScoredNode, error) {
	hits, err := a.cache.VectorSearch(ctx, label, embedding, k, threshold)
	if err != nil {
		return nil, err
	}
	out := make([]extraction.ScoredNode, len(hits))
	for i, h := range hits {
		out[i] = extraction.ScoredNode{UUID: h.UUID, Label: h.Label, Score: h.Score}
	}
	return out, nil
}

func convertScoredNodes(hits []graphstore.ScoredNode) ([]extraction.ScoredNode, error) {
	out := make([]extraction.ScoredNode, len(hits))
	for i, h := range hits {
		out[i] = extraction.ScoredNode{UUID: h.UUID, Label: h.Label, Score: h.Score}
	}
	return out, nil
}

// fallbackGraphSearch tries primary first; if it errors or returns no
// hits, it falls back to secondary. Concretely wires the embedding
// cache as the local mirror EMBEDDING_MODEL-backed search falls back to
// when the graph store's native vector index is unavailable.
type fallbackGraphSearch struct {
	primary, secondary extraction.GraphSearch
}

// NewFallbackGraphSearch composes primary and secondary into one
// extraction.GraphSearch, trying primary first on every call.
func NewFallbackGraphSearch(primary, secondary extraction.GraphSearch) extraction.GraphSearch {
	return fallbackGraphSearch{primary: primary, secondary: secondary}
}

func (f fallbackGraphSearch) VectorSearch(ctx context.Context, label string, embedding []float32, k int, threshold float64) ([]extraction.ScoredNode, error) {
	hits, err := f.primary.VectorSearch(ctx, label, embedding, k, threshold)
	if err == nil && len(hits) > 0 {
		return hits, nil
	}
	return f.secondary.VectorSearch(ctx, label, embedding, k, threshold)
}
