// Package orchestrator is the durable, suspendable per-journal state
// machine: SUBMITTED through COMPLETED (or CANCELLED/FAILED), checkpointed
// at every transition so a crash or restart resumes from the last
// completed stage instead of re-running the pipeline from scratch.
// Grounded on evalgo-org-eve's phase-gated coordinator and worker pool:
// each stage is one activity with its own retry policy, and a workflow
// suspends at a WAIT state the same way that coordinator blocks a
// dependency chain on an external signal.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alexelgier/minerva/internal/curation"
	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/extraction"
)

// idNamespace seeds every deterministic UUID this package derives, from
// curation item IDs to the relation/feeling-entity node and edge UUIDs
// DB_WRITE mints. Fixed so the same (workflow, index) or (item, role)
// pair always yields the same UUID across retries and process restarts.
var idNamespace = uuid.MustParse("9f6a1b3e-4c2d-4e8a-9b5f-6a1c2d3e4f50")

// GraphStore is the subset of *graphstore.Store the orchestrator drives.
type GraphStore interface {
	UpsertDay(ctx context.Context, date string) (string, error)
	LinkJournalToDay(ctx context.Context, journalUUID, date string) error
	CreateJournalEntry(ctx context.Context, j *domain.JournalEntry) error
	CreateChunkTree(ctx context.Context, journalUUID string, chunks []domain.Chunk) error
	CreateEntity(ctx context.Context, e domain.Entity) (string, error)
	CreateFullRelation(ctx context.Context, r domain.Relation) (nodeUUID, edgeUUID string, err error)
	CreateConceptRelation(ctx context.Context, srcUUID, tgtUUID string, relType domain.ConceptRelationType, summaryShort string) error
	CreateMentionsBatch(ctx context.Context, mentions []domain.Mention) error
}

// CurationStore is the subset of *curation.Store the orchestrator drives.
type CurationStore interface {
	Enqueue(ctx context.Context, items []curation.NewItem) error
	PendingCount(ctx context.Context, journalID string, phase domain.CurationPhase) (int, error)
	Approved(ctx context.Context, journalID string, phase domain.CurationPhase) ([]domain.CurationItem, error)
	MarkPhaseComplete(ctx context.Context, journalID string, phase domain.CurationPhase) error
}

// Checkpoints is the subset of *store.CheckpointStore the orchestrator
// drives.
type Checkpoints interface {
	Save(ctx context.Context, state *domain.PipelineState) error
	Load(ctx context.Context, workflowID string) (*domain.PipelineState, bool, error)
	ListActive(ctx context.Context) ([]string, error)
}

// Registry is the subset of *extraction.Registry the orchestrator drives.
type Registry interface {
	RunEntityPhase(ctx context.Context, ec *extraction.Context) (extraction.Result, error)
	RunRelationPhase(ctx context.Context, ec *extraction.Context) (extraction.Result, error)
}

// Orchestrator runs one journal's pipeline state machine to completion,
// suspending at WAIT states until a human curates, and checkpointing
// after every stage so a killed worker loses at most the in-flight
// stage's work.
type Orchestrator struct {
	Graph       GraphStore
	Curation    CurationStore
	Checkpoints Checkpoints
	Registry    Registry

	LLM    extraction.LLM
	Vault  extraction.VaultIndex
	Search extraction.GraphSearch
	Spans  extraction.SpanResolver
	Log    logrus.FieldLogger

	// PollInterval, HeartbeatInterval, and WaitDeadline govern the two
	// WAIT states. Defaults (set by New) are 30s / 2min / 7 days, per
	// §4.6's per-state table; §5 separately mentions a 5-day polling cap,
	// which this package treats as superseded by §4.6's more specific
	// figure for this state machine.
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	WaitDeadline      time.Duration

	// MaxAttempts bounds the retry-with-backoff wrapper around every
	// stage's activity, per the "retry... up to 3 times" policy C1 uses
	// and §4.6 generalizes to every other retryable stage.
	MaxAttempts int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds an Orchestrator with the default WAIT timing and retry
// budget. Callers needing shorter test timing set the Poll*/Wait* fields
// directly on the returned value.
func New(graph GraphStore, curationStore CurationStore, checkpoints Checkpoints, registry Registry,
	llm extraction.LLM, vault extraction.VaultIndex, search extraction.GraphSearch, spans extraction.SpanResolver,
	log logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		Graph:             graph,
		Curation:          curationStore,
		Checkpoints:       checkpoints,
		Registry:          registry,
		LLM:               llm,
		Vault:             vault,
		Search:            search,
		Spans:             spans,
		Log:               log,
		PollInterval:      30 * time.Second,
		HeartbeatInterval: 2 * time.Minute,
		WaitDeadline:      7 * 24 * time.Hour,
		MaxAttempts:       3,
		cancels:           make(map[string]context.CancelFunc),
	}
}

func (o *Orchestrator) logger() logrus.FieldLogger {
	if o.Log != nil {
		return o.Log
	}
	return logrus.StandardLogger()
}

// Submit registers a new workflow for (journalUUID, date, rawText),
// checkpointing it at SUBMITTED. Submitting an already-known workflow ID
// is a no-op: it returns the existing workflow ID without touching its
// state, so re-submitting the same journal never resets in-flight
// progress.
func (o *Orchestrator) Submit(ctx context.Context, journalUUID, date, rawText string) (string, error) {
	workflowID := domain.WorkflowID(date, journalUUID)

	if _, ok, err := o.Checkpoints.Load(ctx, workflowID); err != nil {
		return "", err
	} else if ok {
		return workflowID, nil
	}

	entry := &domain.JournalEntry{
		UUID:      journalUUID,
		Date:      date,
		RawText:   rawText,
		CreatedAt: time.Now().UTC(),
	}
	// journaltext.Apply is left to runSubmitted, not called here: Submit
	// only registers the workflow, and RawText is parsed inside the state
	// machine's first stage.

	state := &domain.PipelineState{
		WorkflowID:   workflowID,
		Stage:        domain.StageSubmitted,
		JournalEntry: entry,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := o.Checkpoints.Save(ctx, state); err != nil {
		return "", err
	}
	return workflowID, nil
}

// Run drives workflowID's state machine until it reaches a terminal
// stage (COMPLETED, CANCELLED, FAILED) or a non-terminal error aborts
// it. Safe to call again after a crash: it reloads the last checkpoint
// and resumes from there, never re-running a stage that already
// committed its transition.
func (o *Orchestrator) Run(parent context.Context, workflowID string) error {
	ctx, cancel := context.WithCancel(parent)
	o.mu.Lock()
	o.cancels[workflowID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, workflowID)
		o.mu.Unlock()
		cancel()
	}()

	for {
		state, ok, err := o.Checkpoints.Load(ctx, workflowID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewPipelineError(domain.ErrConsistency, "orchestrator: unknown workflow "+workflowID, nil)
		}

		switch state.Stage {
		case domain.StageCompleted, domain.StageCancelled, domain.StageFailed:
			return nil
		}

		next, stageErr := o.dispatch(ctx, state)
		if stageErr != nil {
			return o.handleStageError(ctx, state, stageErr)
		}

		state.Stage = next
		state.UpdatedAt = time.Now().UTC()
		if err := o.Checkpoints.Save(ctx, state); err != nil {
			return err
		}
		if next == domain.StageCompleted {
			return nil
		}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, state *domain.PipelineState) (domain.Stage, error) {
	switch state.Stage {
	case domain.StageSubmitted:
		return o.runSubmitted(ctx, state)
	case domain.StageEntityProcessing:
		return o.runEntityProcessing(ctx, state)
	case domain.StageSubmitEntityCuration:
		return o.runSubmitEntityCuration(ctx, state)
	case domain.StageWaitEntityCuration:
		return o.runWait(ctx, state, domain.PhaseEntity, domain.StageRelationProcessing)
	case domain.StageRelationProcessing:
		return o.runRelationProcessing(ctx, state)
	case domain.StageSubmitRelationCuration:
		return o.runSubmitRelationCuration(ctx, state)
	case domain.StageWaitRelationCuration:
		return o.runWait(ctx, state, domain.PhaseRelation, domain.StageDBWrite)
	case domain.StageDBWrite:
		return o.runDBWrite(ctx, state)
	default:
		return "", domain.NewPipelineError(domain.ErrConsistency, fmt.Sprintf("orchestrator: unknown stage %q", state.Stage), nil)
	}
}

// handleStageError records the failure on state and moves it to a
// terminal stage: CANCELLED for a cooperative cancellation, FAILED for
// everything else (including a retry budget exhausted on a normally
// retryable error). Curation rows are left untouched either way, so a
// FAILED workflow's review progress survives for a manual resubmission.
func (o *Orchestrator) handleStageError(ctx context.Context, state *domain.PipelineState, err error) error {
	state.ErrorCount++
	state.ErrorKind = domain.KindOf(err)
	state.LastError = truncate(err.Error(), 500)
	state.UpdatedAt = time.Now().UTC()

	if state.ErrorKind == domain.ErrCancelled {
		state.Stage = domain.StageCancelled
	} else {
		state.Stage = domain.StageFailed
	}
	if saveErr := o.Checkpoints.Save(context.WithoutCancel(ctx), state); saveErr != nil {
		return saveErr
	}
	return err
}

// Cancel requests cooperative cancellation of workflowID's in-flight
// Run, if one is active in this process. A no-op if the workflow is not
// currently running here (e.g. it is mid-WAIT in another process, or
// already terminal) — the caller should re-check Status afterward.
func (o *Orchestrator) Cancel(workflowID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[workflowID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

// Status projects workflowID's current checkpoint into a
// domain.WorkflowStatus. RelationsCommitted is computed live from the
// curation store once the workflow has reached DB_WRITE or later, since
// PipelineState itself does not persist a commit count.
func (o *Orchestrator) Status(ctx context.Context, workflowID string) (domain.WorkflowStatus, error) {
	state, ok, err := o.Checkpoints.Load(ctx, workflowID)
	if err != nil {
		return domain.WorkflowStatus{}, err
	}
	if !ok {
		return domain.WorkflowStatus{}, domain.NewPipelineError(domain.ErrConsistency, "orchestrator: unknown workflow "+workflowID, nil)
	}

	status := domain.WorkflowStatus{
		WorkflowID:   state.WorkflowID,
		Stage:        state.Stage,
		ErrorKind:    state.ErrorKind,
		ShortMessage: state.LastError,
		Counts: domain.Counts{
			EntitiesExtracted:  len(state.EntitiesExtracted),
			EntitiesCommitted:  len(state.EntitiesCurated),
			RelationsExtracted: len(state.RelationsExtracted),
		},
	}
	if stageOrder(state.Stage) >= stageOrder(domain.StageDBWrite) && state.JournalEntry != nil {
		if approved, err := o.Curation.Approved(ctx, state.JournalEntry.UUID, domain.PhaseRelation); err == nil {
			status.Counts.RelationsCommitted = len(approved)
		}
	}
	return status, nil
}

var stageSequence = []domain.Stage{
	domain.StageSubmitted, domain.StageEntityProcessing, domain.StageSubmitEntityCuration,
	domain.StageWaitEntityCuration, domain.StageRelationProcessing, domain.StageSubmitRelationCuration,
	domain.StageWaitRelationCuration, domain.StageDBWrite, domain.StageCompleted,
}

func stageOrder(s domain.Stage) int {
	for i, candidate := range stageSequence {
		if candidate == s {
			return i
		}
	}
	return -1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// runWithRetry retries fn up to attempts times with exponential backoff
// (1s, 2s, 4s, ... capped at 30s), stopping early on a non-retryable
// error or context cancellation. Mirrors C1's own retry policy,
// generalized to every other stage per §4.6.
func runWithRetry(ctx context.Context, attempts int, fn func() error) error {
	backoff := time.Second
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !domain.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.NewPipelineError(domain.ErrCancelled, "orchestrator: retry wait cancelled", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
	return err
}

// deterministicID derives a stable curation-item ID from a workflow,
// kind, and index — the same triple every time this stage's checkpointed
// output is re-submitted, so a retried Enqueue after a partial failure
// produces the exact same IDs rather than minting duplicates.
func deterministicID(workflowID, kind string, index int) string {
	seed := fmt.Sprintf("%s:%s:%d", workflowID, kind, index)
	return uuid.NewSHA1(idNamespace, []byte(seed)).String()
}

// deterministicNodeID derives a stable node/edge UUID from a curation
// item's own durable ID and a role tag (e.g. "relation-node",
// "relation-edge"), so DB_WRITE mints the same UUID on every retry of
// the same approved item.
func deterministicNodeID(itemID, role string) string {
	return uuid.NewSHA1(idNamespace, []byte(itemID+":"+role)).String()
}

func (o *Orchestrator) newExtractionContext(state *domain.PipelineState) *extraction.Context {
	return &extraction.Context{
		Journal: state.JournalEntry,
		Chunks:  state.Chunks,
		LLM:     o.LLM,
		Vault:   o.Vault,
		Graph:   o.Search,
		Spans:   o.Spans,
		Log:     o.logger(),
	}
}
