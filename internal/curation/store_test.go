package curation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexelgier/minerva/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnqueueAndPendingCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Enqueue(ctx, []NewItem{
		{ID: "i1", JournalID: "j1", Phase: domain.PhaseEntity, Kind: domain.KindEntity, Payload: json.RawMessage(`{}`), Spans: json.RawMessage(`[]`)},
		{ID: "i2", JournalID: "j1", Phase: domain.PhaseEntity, Kind: domain.KindEntity, Payload: json.RawMessage(`{}`), Spans: json.RawMessage(`[]`)},
	})
	require.NoError(t, err)

	count, err := s.PendingCount(ctx, "j1", domain.PhaseEntity)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDecide_ApproveMakesItemApproved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, []NewItem{
		{ID: "i1", JournalID: "j1", Phase: domain.PhaseEntity, Kind: domain.KindEntity, Payload: json.RawMessage(`{"name":"Ana"}`), Spans: json.RawMessage(`[]`)},
	}))

	curated := json.RawMessage(`{"name":"Ana","kind":"Person"}`)
	require.NoError(t, s.Decide(ctx, "j1", "i1", domain.DecisionApprove, curated))

	count, err := s.PendingCount(ctx, "j1", domain.PhaseEntity)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	approved, err := s.Approved(ctx, "j1", domain.PhaseEntity)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, domain.StatusApproved, approved[0].Status)
	assert.JSONEq(t, string(curated), string(approved[0].CuratedPayload))
	assert.NotNil(t, approved[0].DecidedAt)
}

func TestDecide_RejectedItemIsExcludedFromApproved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, []NewItem{
		{ID: "i1", JournalID: "j1", Phase: domain.PhaseRelation, Kind: domain.KindRelation, Payload: json.RawMessage(`{}`), Spans: json.RawMessage(`[]`)},
	}))
	require.NoError(t, s.Decide(ctx, "j1", "i1", domain.DecisionReject, nil))

	approved, err := s.Approved(ctx, "j1", domain.PhaseRelation)
	require.NoError(t, err)
	assert.Empty(t, approved)
}

func TestDecide_AlreadyDecidedItemIsImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, []NewItem{
		{ID: "i1", JournalID: "j1", Phase: domain.PhaseEntity, Kind: domain.KindEntity, Payload: json.RawMessage(`{}`), Spans: json.RawMessage(`[]`)},
	}))
	require.NoError(t, s.Decide(ctx, "j1", "i1", domain.DecisionApprove, json.RawMessage(`{"a":1}`)))

	err := s.Decide(ctx, "j1", "i1", domain.DecisionReject, nil)
	require.Error(t, err)

	approved, err := s.Approved(ctx, "j1", domain.PhaseEntity)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.JSONEq(t, `{"a":1}`, string(approved[0].CuratedPayload))
}

func TestMarkPhaseComplete_RefusesWhilePending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, []NewItem{
		{ID: "i1", JournalID: "j1", Phase: domain.PhaseEntity, Kind: domain.KindEntity, Payload: json.RawMessage(`{}`), Spans: json.RawMessage(`[]`)},
	}))

	err := s.MarkPhaseComplete(ctx, "j1", domain.PhaseEntity)
	require.Error(t, err)

	complete, err := s.IsPhaseComplete(ctx, "j1", domain.PhaseEntity)
	require.NoError(t, err)
	assert.False(t, complete)

	require.NoError(t, s.Decide(ctx, "j1", "i1", domain.DecisionApprove, json.RawMessage(`{}`)))
	require.NoError(t, s.MarkPhaseComplete(ctx, "j1", domain.PhaseEntity))

	complete, err = s.IsPhaseComplete(ctx, "j1", domain.PhaseEntity)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestMarkPhaseComplete_EmptyPhaseCompletesImmediately(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkPhaseComplete(ctx, "j2", domain.PhaseRelation))
	complete, err := s.IsPhaseComplete(ctx, "j2", domain.PhaseRelation)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestDecide_UnknownItemErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Decide(ctx, "j1", "does-not-exist", domain.DecisionApprove, nil)
	require.Error(t, err)
}
