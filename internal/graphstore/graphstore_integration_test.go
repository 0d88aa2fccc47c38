//go:build integration

package graphstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexelgier/minerva/internal/domain"
)

// requires a live Neo4j reachable at GRAPH_TEST_URI; skipped otherwise.
func testStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("GRAPH_TEST_URI")
	if uri == "" {
		t.Skip("GRAPH_TEST_URI not set, skipping graphstore integration test")
	}
	user := os.Getenv("GRAPH_TEST_USER")
	pass := os.Getenv("GRAPH_TEST_PASSWORD")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := New(ctx, uri, user, pass)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func TestCreateEntity_IdempotentByUUID(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	p := domain.Person{EntityBase: domain.EntityBase{UUID: "integration-person-1", Name: "Ana"}}

	uuid1, err := store.CreateEntity(ctx, p)
	require.NoError(t, err)
	uuid2, err := store.CreateEntity(ctx, p)
	require.NoError(t, err)

	require.Equal(t, uuid1, uuid2)
}

func TestCreateFullRelation_RepeatIsNoOp(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	a := domain.Person{EntityBase: domain.EntityBase{UUID: "integration-rel-a", Name: "A"}}
	b := domain.Person{EntityBase: domain.EntityBase{UUID: "integration-rel-b", Name: "B"}}
	_, err := store.CreateEntity(ctx, a)
	require.NoError(t, err)
	_, err = store.CreateEntity(ctx, b)
	require.NoError(t, err)

	rel := domain.Relation{
		UUID: "integration-rel-node", EdgeUUID: "integration-rel-edge",
		SourceUUID: a.UUID, TargetUUID: b.UUID, Type: "RELATES_TO",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	nodeUUID1, edgeUUID1, err := store.CreateFullRelation(ctx, rel)
	require.NoError(t, err)
	nodeUUID2, edgeUUID2, err := store.CreateFullRelation(ctx, rel)
	require.NoError(t, err)

	require.Equal(t, nodeUUID1, nodeUUID2)
	require.Equal(t, edgeUUID1, edgeUUID2)

	require.NoError(t, store.DeleteRelation(ctx, rel.UUID))
}

func TestCreateChunkTree_BuildsHasChunkContainsAndNextSibling(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	journal := &domain.JournalEntry{UUID: "integration-journal-chunks", Date: "2026-07-31", CreatedAt: time.Now()}
	require.NoError(t, store.CreateJournalEntry(ctx, journal))

	leaf1 := domain.Chunk{UUID: "integration-chunk-leaf-1", JournalID: journal.UUID, Span: domain.Span{Start: 0, End: 10, Text: "First."}, ParentUUID: "integration-chunk-root", IsLeaf: true, NextSibling: "integration-chunk-leaf-2"}
	leaf2 := domain.Chunk{UUID: "integration-chunk-leaf-2", JournalID: journal.UUID, Span: domain.Span{Start: 11, End: 20, Text: "Second."}, ParentUUID: "integration-chunk-root", IsLeaf: true}
	root := domain.Chunk{UUID: "integration-chunk-root", JournalID: journal.UUID, Span: domain.Span{Start: 0, End: 20, Text: "First. Second."}, Children: []string{leaf1.UUID, leaf2.UUID}, IsLeaf: false}

	require.NoError(t, store.CreateChunkTree(ctx, journal.UUID, []domain.Chunk{root, leaf1, leaf2}))
	require.NoError(t, store.CreateChunkTree(ctx, journal.UUID, []domain.Chunk{root, leaf1, leaf2}))
}
