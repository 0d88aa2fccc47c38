package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbeddingCache(t *testing.T) *EmbeddingCache {
	t.Helper()
	c, err := OpenEmbeddingCache(":memory:", 4)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestEmbeddingCache_StaleOnFirstSight(t *testing.T) {
	c := newTestEmbeddingCache(t)
	ctx := context.Background()

	stale, err := c.Stale(ctx, "concept-1", "hash-a")
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestEmbeddingCache_PutThenFresh(t *testing.T) {
	c := newTestEmbeddingCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "concept-1", "hash-a", []float32{1, 0, 0, 0}))

	stale, err := c.Stale(ctx, "concept-1", "hash-a")
	require.NoError(t, err)
	assert.False(t, stale)

	stale, err = c.Stale(ctx, "concept-1", "hash-b")
	require.NoError(t, err)
	assert.True(t, stale, "content hash changed, cached embedding is stale")
}

func TestEmbeddingCache_NearestFindsClosestVector(t *testing.T) {
	c := newTestEmbeddingCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "concept-close", "h1", []float32{1, 0, 0, 0}))
	require.NoError(t, c.Put(ctx, "concept-far", "h2", []float32{0, 0, 0, 1}))

	matches, err := c.Nearest(ctx, []float32{0.9, 0.1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "concept-close", matches[0].UUID)
}

func TestEmbeddingCache_RejectsWrongDimension(t *testing.T) {
	c := newTestEmbeddingCache(t)
	err := c.Put(context.Background(), "concept-1", "hash-a", []float32{1, 2})
	require.Error(t, err)
}
