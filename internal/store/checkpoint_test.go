package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexelgier/minerva/internal/domain"
)

func newTestCheckpointStore(t *testing.T) *CheckpointStore {
	t.Helper()
	s, err := OpenCheckpointStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testState(workflowID string, stage domain.Stage) *domain.PipelineState {
	return &domain.PipelineState{
		WorkflowID: workflowID,
		Stage:      stage,
		JournalEntry: &domain.JournalEntry{
			UUID: "journal-1",
			Date: "2025-09-15",
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestCheckpointStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestCheckpointStore(t)
	ctx := context.Background()

	state := testState("2025-09-15:journal-1", domain.StageSubmitted)
	require.NoError(t, s.Save(ctx, state))

	loaded, ok, err := s.Load(ctx, state.WorkflowID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StageSubmitted, loaded.Stage)
	assert.Equal(t, "journal-1", loaded.JournalEntry.UUID)
}

func TestCheckpointStore_SaveAdvancesToLatestStage(t *testing.T) {
	s := newTestCheckpointStore(t)
	ctx := context.Background()

	state := testState("2025-09-15:journal-1", domain.StageSubmitted)
	require.NoError(t, s.Save(ctx, state))

	state.Stage = domain.StageEntityProcessing
	require.NoError(t, s.Save(ctx, state))

	loaded, ok, err := s.Load(ctx, state.WorkflowID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StageEntityProcessing, loaded.Stage)
}

func TestCheckpointStore_LoadUnknownWorkflow(t *testing.T) {
	s := newTestCheckpointStore(t)
	_, ok, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckpointStore_ListActiveExcludesTerminalStages(t *testing.T) {
	s := newTestCheckpointStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testState("wf-active", domain.StageWaitEntityCuration)))
	require.NoError(t, s.Save(ctx, testState("wf-done", domain.StageCompleted)))

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"wf-active"}, active)
}
