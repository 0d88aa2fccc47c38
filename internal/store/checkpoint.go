// Package store is the orchestrator's durable side-state: the
// checkpoint table a workflow's PipelineState survives a crash in, and a
// local vector mirror used to avoid re-embedding unchanged vault notes.
// Adapted from GoKitt's sqlite_store.go: the same composite
// (id, version) + is_current temporal-versioning idiom that package used
// for Note, applied here to PipelineState instead.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/alexelgier/minerva/internal/codec"
	"github.com/alexelgier/minerva/internal/domain"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS pipeline_checkpoints (
	workflow_id TEXT NOT NULL,
	version     INTEGER NOT NULL,
	stage       TEXT NOT NULL,
	state_json  BLOB NOT NULL,
	valid_from  TEXT NOT NULL,
	is_current  INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (workflow_id, version)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_current ON pipeline_checkpoints(workflow_id) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_checkpoints_stage ON pipeline_checkpoints(stage) WHERE is_current = 1;
`

// CheckpointStore persists one PipelineState per workflow, versioned the
// way GoKitt's notes table kept history: every Save inserts a new
// (workflow_id, version) row and flips the previous current row's
// is_current off in the same transaction, so a crash between the two
// writes is impossible to observe — either both happened or neither did.
type CheckpointStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// OpenCheckpointStore opens (or creates) the sqlite database at path and
// applies the schema.
func OpenCheckpointStore(path string) (*CheckpointStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrConfig, "store: open checkpoint database", err)
	}
	if _, err := db.Exec(checkpointSchema); err != nil {
		db.Close()
		return nil, domain.NewPipelineError(domain.ErrConfig, "store: apply checkpoint schema", err)
	}
	return &CheckpointStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *CheckpointStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save writes state as the new current checkpoint for its WorkflowID.
// Idempotent in effect, not in storage: calling it twice with an
// unchanged state still appends a version row, but Load always
// returns the latest, so replaying an already-checkpointed transition is
// safe.
func (s *CheckpointStore) Save(ctx context.Context, state *domain.PipelineState) error {
	data, err := codec.EncodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "store: save checkpoint begin tx", err)
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM pipeline_checkpoints WHERE workflow_id = ?`, state.WorkflowID).Scan(&version)
	if err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "store: save checkpoint read version", err)
	}
	version++

	if _, err := tx.ExecContext(ctx, `UPDATE pipeline_checkpoints SET is_current = 0 WHERE workflow_id = ? AND is_current = 1`, state.WorkflowID); err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "store: save checkpoint demote previous", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pipeline_checkpoints (workflow_id, version, stage, state_json, valid_from, is_current)
		VALUES (?, ?, ?, ?, ?, 1)`,
		state.WorkflowID, version, string(state.Stage), []byte(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "store: save checkpoint insert", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "store: save checkpoint commit", err)
	}
	return nil
}

// Load returns the current checkpoint for workflowID, or (nil, false) if
// no workflow with that ID has ever been checkpointed.
func (s *CheckpointStore) Load(ctx context.Context, workflowID string) (*domain.PipelineState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT state_json FROM pipeline_checkpoints WHERE workflow_id = ? AND is_current = 1`,
		workflowID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewPipelineError(domain.ErrTransport, "store: load checkpoint", err)
	}
	state, err := codec.DecodeState(data)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

// ListActive returns the workflow IDs whose current checkpoint is in a
// non-terminal stage, so a freshly started worker pool knows which
// workflows to resume.
func (s *CheckpointStore) ListActive(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT workflow_id FROM pipeline_checkpoints
		WHERE is_current = 1 AND stage NOT IN (?, ?, ?)`,
		string(domain.StageCompleted), string(domain.StageCancelled), string(domain.StageFailed))
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrTransport, "store: list active", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: list active scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
