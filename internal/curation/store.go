// Package curation is the durable, embeddable row store that gates a
// journal's progress through the pipeline on human review. It tolerates
// concurrent readers (the orchestrator polling) and writers (a curation
// UI deciding) through one store-wide RWMutex: writers take the write
// lock for their per-row statements, readers share the read lock.
package curation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/alexelgier/minerva/internal/domain"
)

// schema matches the column layout: one row per curation item, plus a
// phase_completions table recording when mark_phase_complete succeeded.
const schema = `
CREATE TABLE IF NOT EXISTS curation_items (
	id TEXT PRIMARY KEY,
	journal_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload BLOB NOT NULL,
	spans BLOB NOT NULL,
	context BLOB,
	status TEXT NOT NULL,
	curated_payload BLOB,
	created_at TEXT NOT NULL,
	decided_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_curation_journal_phase ON curation_items(journal_id, phase);
CREATE INDEX IF NOT EXISTS idx_curation_status ON curation_items(journal_id, phase, status);

CREATE TABLE IF NOT EXISTS phase_completions (
	journal_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	PRIMARY KEY (journal_id, phase)
);
`

// Store is the Curation Store.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and applies schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrConfig, "curation: open database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, domain.NewPipelineError(domain.ErrConfig, "curation: apply schema", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// NewItem is the shape enqueue accepts per item: the caller has already
// codec-encoded Payload/Spans/Context into opaque JSON.
type NewItem struct {
	ID        string
	JournalID string
	Phase     domain.CurationPhase
	Kind      domain.CurationKind
	Payload   json.RawMessage
	Spans     json.RawMessage
	Context   json.RawMessage
}

// Enqueue inserts items as pending curation rows. INSERT OR IGNORE keys on
// id, so retrying SUBMIT_ENTITY_CURATION/SUBMIT_RELATION_CURATION with the
// same deterministic item IDs after a partial failure cannot enqueue a
// mapping twice.
func (s *Store) Enqueue(ctx context.Context, items []NewItem) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "curation: enqueue begin tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO curation_items (id, journal_id, phase, kind, payload, spans, context, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "curation: enqueue prepare", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.ID, item.JournalID, string(item.Phase), string(item.Kind),
			[]byte(item.Payload), []byte(item.Spans), nullableBytes(item.Context),
			string(domain.StatusPending), now); err != nil {
			return domain.NewPipelineError(domain.ErrTransport, "curation: enqueue insert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "curation: enqueue commit", err)
	}
	return nil
}

func nullableBytes(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

// PendingCount returns the number of curation items still awaiting a
// decision for (journalID, phase).
func (s *Store) PendingCount(ctx context.Context, journalID string, phase domain.CurationPhase) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM curation_items
		WHERE journal_id = ? AND phase = ? AND status = ?`,
		journalID, string(phase), string(domain.StatusPending)).Scan(&count)
	if err != nil {
		return 0, domain.NewPipelineError(domain.ErrTransport, "curation: pending_count", err)
	}
	return count, nil
}

// Approved returns every approved or edited item for (journalID, phase),
// each carrying its CuratedPayload; pending and rejected items are
// excluded.
func (s *Store) Approved(ctx context.Context, journalID string, phase domain.CurationPhase) ([]domain.CurationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, journal_id, phase, kind, payload, spans, context, status, curated_payload, created_at, decided_at
		FROM curation_items
		WHERE journal_id = ? AND phase = ? AND status IN (?, ?)`,
		journalID, string(phase), string(domain.StatusApproved), string(domain.StatusEdited))
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrTransport, "curation: approved query", err)
	}
	defer rows.Close()

	var items []domain.CurationItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, domain.NewPipelineError(domain.ErrTransport, "curation: approved scan", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPipelineError(domain.ErrTransport, "curation: approved rows", err)
	}
	return items, nil
}

// Pending returns every still-pending item for (journalID, phase), for a
// curation UI (or minervactl curation list) to present for review.
func (s *Store) Pending(ctx context.Context, journalID string, phase domain.CurationPhase) ([]domain.CurationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, journal_id, phase, kind, payload, spans, context, status, curated_payload, created_at, decided_at
		FROM curation_items
		WHERE journal_id = ? AND phase = ? AND status = ?`,
		journalID, string(phase), string(domain.StatusPending))
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrTransport, "curation: pending query", err)
	}
	defer rows.Close()

	var items []domain.CurationItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, domain.NewPipelineError(domain.ErrTransport, "curation: pending scan", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPipelineError(domain.ErrTransport, "curation: pending rows", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (domain.CurationItem, error) {
	var item domain.CurationItem
	var phase, kind, status, createdAt string
	var context, curatedPayload sql.NullString
	var decidedAt sql.NullString
	var payload, spans string

	if err := row.Scan(&item.ID, &item.JournalID, &phase, &kind, &payload, &spans, &context,
		&status, &curatedPayload, &createdAt, &decidedAt); err != nil {
		return item, err
	}

	item.Phase = domain.CurationPhase(phase)
	item.Kind = domain.CurationKind(kind)
	item.Status = domain.CurationStatus(status)
	item.Payload = json.RawMessage(payload)
	item.Spans = json.RawMessage(spans)
	if context.Valid {
		item.Context = json.RawMessage(context.String)
	}
	if curatedPayload.Valid {
		item.CuratedPayload = json.RawMessage(curatedPayload.String)
	}

	createdAtT, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return item, fmt.Errorf("curation: parse created_at: %w", err)
	}
	item.CreatedAt = createdAtT

	if decidedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, decidedAt.String)
		if err != nil {
			return item, fmt.Errorf("curation: parse decided_at: %w", err)
		}
		item.DecidedAt = &t
	}
	return item, nil
}

// Decide records a human decision on one item. A previously decided item
// is immutable: Decide on an already-decided row is a no-op that returns
// an error rather than overwriting the prior decision.
func (s *Store) Decide(ctx context.Context, journalID, itemID string, decision domain.Decision, curatedPayload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var currentStatus string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM curation_items WHERE id = ? AND journal_id = ?`, itemID, journalID).Scan(&currentStatus)
	if err == sql.ErrNoRows {
		return domain.NewPipelineError(domain.ErrConsistency, fmt.Sprintf("curation: decide: no item %s for journal %s", itemID, journalID), nil)
	}
	if err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "curation: decide lookup", err)
	}
	if currentStatus != string(domain.StatusPending) {
		return domain.NewPipelineError(domain.ErrConsistency, fmt.Sprintf("curation: decide: item %s already decided", itemID), nil)
	}

	newStatus, err := statusForDecision(decision)
	if err != nil {
		return domain.NewPipelineError(domain.ErrSchema, "curation: decide", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		UPDATE curation_items SET status = ?, curated_payload = ?, decided_at = ?
		WHERE id = ? AND journal_id = ?`,
		string(newStatus), nullableBytes(curatedPayload), now, itemID, journalID)
	if err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "curation: decide update", err)
	}
	return nil
}

func statusForDecision(d domain.Decision) (domain.CurationStatus, error) {
	switch d {
	case domain.DecisionApprove:
		return domain.StatusApproved, nil
	case domain.DecisionReject:
		return domain.StatusRejected, nil
	case domain.DecisionEdit:
		return domain.StatusEdited, nil
	default:
		return "", fmt.Errorf("unknown decision %q", d)
	}
}

// MarkPhaseComplete records (journalID, phase) as complete. It refuses
// while any item in that phase is still pending.
func (s *Store) MarkPhaseComplete(ctx context.Context, journalID string, phase domain.CurationPhase) error {
	pending, err := s.PendingCount(ctx, journalID, phase)
	if err != nil {
		return err
	}
	if pending > 0 {
		return domain.NewPipelineError(domain.ErrConsistency,
			fmt.Sprintf("curation: cannot mark phase %s complete for journal %s: %d items still pending", phase, journalID, pending), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO phase_completions (journal_id, phase, completed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(journal_id, phase) DO UPDATE SET completed_at = excluded.completed_at`,
		journalID, string(phase), now)
	if err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "curation: mark_phase_complete", err)
	}
	return nil
}

// IsPhaseComplete reports whether MarkPhaseComplete has been recorded for
// (journalID, phase).
func (s *Store) IsPhaseComplete(ctx context.Context, journalID string, phase domain.CurationPhase) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM phase_completions WHERE journal_id = ? AND phase = ?`,
		journalID, string(phase)).Scan(&count)
	if err != nil {
		return false, domain.NewPipelineError(domain.ErrTransport, "curation: is_phase_complete", err)
	}
	return count > 0, nil
}
