package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexelgier/minerva/internal/chunker"
	"github.com/alexelgier/minerva/internal/curation"
	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/extraction"
	"github.com/alexelgier/minerva/internal/journaltext"
	"github.com/alexelgier/minerva/internal/span"
)

// runSubmitted parses the journal's raw text, builds its chunk tree, and
// persists the day/journal/chunk skeleton. All four graph writes are
// MERGE-idempotent, so the whole block can simply be retried.
func (o *Orchestrator) runSubmitted(ctx context.Context, state *domain.PipelineState) (domain.Stage, error) {
	entry := state.JournalEntry
	if entry.Narration == "" {
		journaltext.Apply(entry)
	}

	err := runWithRetry(ctx, o.MaxAttempts, func() error {
		if _, err := o.Graph.UpsertDay(ctx, entry.Date); err != nil {
			return err
		}
		if err := o.Graph.LinkJournalToDay(ctx, entry.UUID, entry.Date); err != nil {
			return err
		}
		if err := o.Graph.CreateJournalEntry(ctx, entry); err != nil {
			return err
		}
		chunks := chunker.Build(entry.UUID, entry.Narration)
		if err := o.Graph.CreateChunkTree(ctx, entry.UUID, chunks); err != nil {
			return err
		}
		state.Chunks = chunks
		return nil
	})
	if err != nil {
		return "", err
	}
	return domain.StageEntityProcessing, nil
}

// runEntityProcessing runs the entity-phase extraction stages (people
// through place) and checkpoints their output for curation.
func (o *Orchestrator) runEntityProcessing(ctx context.Context, state *domain.PipelineState) (domain.Stage, error) {
	ec := o.newExtractionContext(state)

	var result extraction.Result
	err := runWithRetry(ctx, o.MaxAttempts, func() error {
		r, err := o.Registry.RunEntityPhase(ctx, ec)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return "", err
	}
	state.EntitiesExtracted = result.Entities
	return domain.StageSubmitEntityCuration, nil
}

// runSubmitEntityCuration enqueues every extracted entity mapping as a
// pending curation item, gating the entity phase.
func (o *Orchestrator) runSubmitEntityCuration(ctx context.Context, state *domain.PipelineState) (domain.Stage, error) {
	items := make([]curation.NewItem, len(state.EntitiesExtracted))
	for i, m := range state.EntitiesExtracted {
		payload, err := domain.EncodeEntity(m.Entity)
		if err != nil {
			return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: encode entity mapping", err)
		}
		spans, err := json.Marshal(m.Spans)
		if err != nil {
			return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: encode entity spans", err)
		}
		items[i] = curation.NewItem{
			ID:        deterministicID(state.WorkflowID, "entity", i),
			JournalID: state.JournalEntry.UUID,
			Phase:     domain.PhaseEntity,
			Kind:      domain.KindEntity,
			Payload:   payload,
			Spans:     spans,
		}
	}

	err := runWithRetry(ctx, o.MaxAttempts, func() error {
		return o.Curation.Enqueue(ctx, items)
	})
	if err != nil {
		return "", err
	}
	return domain.StageWaitEntityCuration, nil
}

// runWait polls the curation store's pending count for phase every
// PollInterval, logging a heartbeat at most every HeartbeatInterval,
// until pending reaches zero (advancing to nextStage), the workflow is
// cancelled, or WaitDeadline elapses (a terminal DeadlineExceeded
// error).
func (o *Orchestrator) runWait(ctx context.Context, state *domain.PipelineState, phase domain.CurationPhase, nextStage domain.Stage) (domain.Stage, error) {
	deadline := time.Now().Add(o.WaitDeadline)
	lastHeartbeat := time.Now()

	ticker := time.NewTicker(o.PollInterval)
	defer ticker.Stop()

	for {
		pending, err := o.Curation.PendingCount(ctx, state.JournalEntry.UUID, phase)
		if err != nil {
			return "", err
		}
		if pending == 0 {
			if err := o.Curation.MarkPhaseComplete(ctx, state.JournalEntry.UUID, phase); err != nil {
				return "", err
			}
			return nextStage, nil
		}
		if time.Now().After(deadline) {
			return "", domain.NewPipelineError(domain.ErrDeadlineExceeded,
				fmt.Sprintf("orchestrator: %s curation deadline exceeded for %s", phase, state.WorkflowID), nil)
		}

		select {
		case <-ctx.Done():
			return "", domain.NewPipelineError(domain.ErrCancelled, "orchestrator: workflow cancelled during wait", ctx.Err())
		case now := <-ticker.C:
			if now.Sub(lastHeartbeat) >= o.HeartbeatInterval {
				o.logger().WithField("workflow_id", state.WorkflowID).
					WithField("phase", phase).
					WithField("pending", pending).
					Info("orchestrator: waiting on curation")
				lastHeartbeat = now
			}
		}
	}
}

// runRelationProcessing loads the entity phase's approved curation
// items into state.EntitiesCurated, then runs the relation-phase stages
// (feelings, relation, concept relation) against that curated set.
func (o *Orchestrator) runRelationProcessing(ctx context.Context, state *domain.PipelineState) (domain.Stage, error) {
	approved, err := o.Curation.Approved(ctx, state.JournalEntry.UUID, domain.PhaseEntity)
	if err != nil {
		return "", err
	}
	curated := make([]domain.Entity, 0, len(approved))
	for _, item := range approved {
		raw := item.CuratedPayload
		if len(raw) == 0 {
			raw = item.Payload
		}
		e, err := domain.DecodeEntity(raw)
		if err != nil {
			return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: decode curated entity", err)
		}
		curated = append(curated, e)
	}
	state.EntitiesCurated = curated

	ec := o.newExtractionContext(state)
	ec.CuratedEntities = curated
	extraction.PopulateCuratedContext(ec)

	var result extraction.Result
	err = runWithRetry(ctx, o.MaxAttempts, func() error {
		r, err := o.Registry.RunRelationPhase(ctx, ec)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return "", err
	}
	state.RelationsExtracted = result.Curatables
	return domain.StageSubmitRelationCuration, nil
}

// runSubmitRelationCuration enqueues every relation-phase curatable
// (feelings, relations, concept relations) as a pending curation item,
// gating the relation phase.
func (o *Orchestrator) runSubmitRelationCuration(ctx context.Context, state *domain.PipelineState) (domain.Stage, error) {
	items := make([]curation.NewItem, len(state.RelationsExtracted))
	for i, m := range state.RelationsExtracted {
		payload, err := json.Marshal(m.Payload)
		if err != nil {
			return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: encode curatable payload", err)
		}
		spans, err := json.Marshal(m.Spans)
		if err != nil {
			return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: encode curatable spans", err)
		}
		var contextJSON json.RawMessage
		if len(m.Context) > 0 {
			contextJSON, err = json.Marshal(m.Context)
			if err != nil {
				return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: encode curatable context", err)
			}
		}
		items[i] = curation.NewItem{
			ID:        deterministicID(state.WorkflowID, "relation", i),
			JournalID: state.JournalEntry.UUID,
			Phase:     domain.PhaseRelation,
			Kind:      m.Kind,
			Payload:   payload,
			Spans:     spans,
			Context:   contextJSON,
		}
	}

	err := runWithRetry(ctx, o.MaxAttempts, func() error {
		return o.Curation.Enqueue(ctx, items)
	})
	if err != nil {
		return "", err
	}
	return domain.StageWaitRelationCuration, nil
}

// mentionTarget pairs a committed node's UUID with the source spans it
// should be mentioned from.
type mentionTarget struct {
	uuid  string
	spans []domain.Span
}

// runDBWrite materializes every approved entity and relation-phase item
// into the graph store, batches the resulting Mentions from leaf chunks
// only (an interior chunk's span always contains its descendants', so
// deriving mentions from every level would duplicate each one up the
// tree), and marks the relation curation phase complete. The whole block
// is safe to retry: every graph write below is idempotent by UUID, and
// curation-item IDs (hence the node/edge UUIDs derived from them) never
// change between retries.
func (o *Orchestrator) runDBWrite(ctx context.Context, state *domain.PipelineState) (domain.Stage, error) {
	err := runWithRetry(ctx, o.MaxAttempts, func() error {
		return o.dbWriteOnce(ctx, state)
	})
	if err != nil {
		return "", err
	}
	return domain.StageCompleted, nil
}

func (o *Orchestrator) dbWriteOnce(ctx context.Context, state *domain.PipelineState) error {
	entitySpans := make(map[string][]domain.Span, len(state.EntitiesExtracted))
	for _, m := range state.EntitiesExtracted {
		entitySpans[m.Entity.Base().UUID] = m.Spans
	}

	var mentionTargets []mentionTarget
	for _, e := range state.EntitiesCurated {
		if _, err := o.Graph.CreateEntity(ctx, e); err != nil {
			return err
		}
		if spans, ok := entitySpans[e.Base().UUID]; ok {
			mentionTargets = append(mentionTargets, mentionTarget{uuid: e.Base().UUID, spans: spans})
		}
	}

	approved, err := o.Curation.Approved(ctx, state.JournalEntry.UUID, domain.PhaseRelation)
	if err != nil {
		return err
	}

	for _, item := range approved {
		raw := item.CuratedPayload
		if len(raw) == 0 {
			raw = item.Payload
		}
		payload, err := domain.DecodeCuratablePayload(item.Kind, raw)
		if err != nil {
			return domain.NewPipelineError(domain.ErrSchema, "orchestrator: decode curated relation payload", err)
		}
		var spans []domain.Span
		if err := json.Unmarshal(item.Spans, &spans); err != nil {
			return domain.NewPipelineError(domain.ErrSchema, "orchestrator: decode curation item spans", err)
		}

		targetUUID, err := o.writeCurationPayload(ctx, state, item.ID, item.Kind, payload)
		if err != nil {
			return err
		}
		if targetUUID != "" {
			mentionTargets = append(mentionTargets, mentionTarget{uuid: targetUUID, spans: spans})
		}
	}

	mentionTargets = append(mentionTargets, o.implicitMentionTargets(state)...)

	leaves := leafChunksOf(state.Chunks)
	var mentions []domain.Mention
	for _, t := range mentionTargets {
		mentions = append(mentions, deriveMentions(leaves, t.spans, t.uuid)...)
	}
	if err := o.Graph.CreateMentionsBatch(ctx, mentions); err != nil {
		return err
	}

	return o.Curation.MarkPhaseComplete(ctx, state.JournalEntry.UUID, domain.PhaseRelation)
}

// writeCurationPayload materializes one approved relation-phase item
// into the graph store, returning the UUID of the node it should be
// mentioned from (empty for a concept relation, which creates a direct
// edge with no node of its own — its endpoints already get mentions via
// their own entity spans).
func (o *Orchestrator) writeCurationPayload(ctx context.Context, state *domain.PipelineState, itemID string, kind domain.CurationKind, payload any) (string, error) {
	journalTime := state.JournalEntry.CreatedAt

	switch kind {
	case domain.KindRelation:
		p, ok := payload.(domain.RelationPayload)
		if !ok {
			return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: relation payload type mismatch", nil)
		}
		relType := p.Type
		if relType == "" && len(p.ProposedTypes) > 0 {
			relType = p.ProposedTypes[0]
		}
		if relType == "" {
			return "", domain.NewPipelineError(domain.ErrSchema, fmt.Sprintf("orchestrator: relation %s has no type", itemID), nil)
		}
		r := domain.Relation{
			UUID:         deterministicNodeID(itemID, "relation-node"),
			EdgeUUID:     deterministicNodeID(itemID, "relation-edge"),
			SourceUUID:   p.SourceUUID,
			TargetUUID:   p.TargetUUID,
			Type:         relType,
			SummaryShort: p.SummaryShort,
			CreatedAt:    journalTime,
			UpdatedAt:    journalTime,
		}
		nodeUUID, _, err := o.Graph.CreateFullRelation(ctx, r)
		if err != nil {
			return "", err
		}
		return nodeUUID, nil

	case domain.KindFeelingEmotion:
		p, ok := payload.(domain.FeelingEmotionPayload)
		if !ok {
			return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: feeling_emotion payload type mismatch", nil)
		}
		if !domain.IsValidEmotion(p.EmotionType) {
			return "", domain.NewPipelineError(domain.ErrSchema, fmt.Sprintf("orchestrator: unknown emotion type %q", p.EmotionType), nil)
		}
		e := domain.FeelingEmotion{
			EntityBase: domain.EntityBase{
				UUID:         deterministicNodeID(itemID, "feeling-emotion"),
				Partition:    domain.PartitionDomain,
				Name:         fmt.Sprintf("%s: %s", p.PersonUUID, p.EmotionType),
				SummaryShort: p.SummaryShort,
				CreatedAt:    journalTime,
			},
			PersonUUID:  p.PersonUUID,
			EmotionType: p.EmotionType,
			FeelingAt:   journalTime,
		}
		return o.Graph.CreateEntity(ctx, e)

	case domain.KindFeelingConcept:
		p, ok := payload.(domain.FeelingConceptPayload)
		if !ok {
			return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: feeling_concept payload type mismatch", nil)
		}
		e := domain.FeelingConcept{
			EntityBase: domain.EntityBase{
				UUID:         deterministicNodeID(itemID, "feeling-concept"),
				Partition:    domain.PartitionDomain,
				Name:         fmt.Sprintf("%s: %s", p.PersonUUID, p.ConceptUUID),
				SummaryShort: p.SummaryShort,
				CreatedAt:    journalTime,
			},
			PersonUUID:  p.PersonUUID,
			ConceptUUID: p.ConceptUUID,
			Stance:      p.Stance,
		}
		return o.Graph.CreateEntity(ctx, e)

	case domain.KindConceptRelation:
		p, ok := payload.(domain.ConceptRelationPayload)
		if !ok {
			return "", domain.NewPipelineError(domain.ErrSchema, "orchestrator: concept_relation payload type mismatch", nil)
		}
		if !domain.IsValidConceptRelationType(string(p.Type)) {
			return "", domain.NewPipelineError(domain.ErrSchema, fmt.Sprintf("orchestrator: unknown concept relation type %q", p.Type), nil)
		}
		if err := o.Graph.CreateConceptRelation(ctx, p.SourceUUID, p.TargetUUID, p.Type, p.SummaryShort); err != nil {
			return "", err
		}
		return "", nil

	default:
		return "", domain.NewPipelineError(domain.ErrSchema, fmt.Sprintf("orchestrator: unknown curation kind %q", kind), nil)
	}
}

// implicitMentionTargets scans the journal's narration for plain-text
// (non-wikilinked) occurrences of entities already known to the vault,
// beyond whatever the LLM extraction stages happened to propose this
// round. This widens DB_WRITE's mention coverage (spec invariant 5)
// without re-running any extraction stage: known entities not mentioned
// by name in this journal simply produce no additional spans.
func (o *Orchestrator) implicitMentionTargets(state *domain.PipelineState) []mentionTarget {
	if o.Vault == nil || state.JournalEntry == nil {
		return nil
	}
	matcher, err := span.BuildImplicitMatcher(o.Vault.AllKnown())
	if err != nil {
		o.logger().WithError(err).Warn("orchestrator: implicit mention matcher build failed, skipping")
		return nil
	}
	hits := matcher.Scan(state.JournalEntry.Narration)
	if len(hits) == 0 {
		return nil
	}
	byUUID := make(map[string][]domain.Span)
	for _, h := range hits {
		byUUID[h.EntityUUID] = append(byUUID[h.EntityUUID], h.Span)
	}
	targets := make([]mentionTarget, 0, len(byUUID))
	for uuid, spans := range byUUID {
		targets = append(targets, mentionTarget{uuid: uuid, spans: spans})
	}
	return targets
}

func leafChunksOf(chunks []domain.Chunk) []domain.Chunk {
	var leaves []domain.Chunk
	for _, c := range chunks {
		if c.IsLeaf {
			leaves = append(leaves, c)
		}
	}
	return leaves
}

func deriveMentions(leaves []domain.Chunk, spans []domain.Span, targetUUID string) []domain.Mention {
	var out []domain.Mention
	for _, leaf := range leaves {
		for _, sp := range spans {
			if leaf.Span.Contains(sp) {
				out = append(out, domain.Mention{ChunkUUID: leaf.UUID, TargetUUID: targetUUID})
				break
			}
		}
	}
	return out
}
