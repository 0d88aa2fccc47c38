package extraction

import (
	"context"
	"fmt"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/llmgateway"
)

// conceptRelationStage is stage 7 of §4.4: runs once per curated Concept,
// using the same three-section context as stage 2. Every directional
// relation it produces also gets its inverse recorded (or itself again,
// for a symmetric type); self-connections and unknown types are dropped.
type conceptRelationStage struct{}

// NewConceptRelationStage builds the ConceptRelation stage.
func NewConceptRelationStage() Stage { return &conceptRelationStage{} }

func (s *conceptRelationStage) Name() string { return "concept_relation" }

func (s *conceptRelationStage) Run(ctx context.Context, ec *Context) (Result, error) {
	curatedConcepts := curatedEntitiesOfKind(ec.CuratedEntities, domain.EntityConcept)
	if len(curatedConcepts) == 0 {
		return Result{}, nil
	}

	contextSection, conceptPool, err := buildConceptContext(ctx, ec)
	if err != nil {
		return Result{}, err
	}
	byName := make(map[string]VaultEntity, len(conceptPool))
	for _, c := range conceptPool {
		byName[c.Name] = c
	}
	for _, c := range curatedConcepts {
		b := c.Base()
		byName[b.Name] = VaultEntity{UUID: b.UUID, Name: b.Name, Kind: domain.EntityConcept, SummaryShort: b.SummaryShort}
	}

	var result Result
	for _, concept := range curatedConcepts {
		base := concept.Base()
		items, err := s.runForConcept(ctx, ec, base, contextSection)
		if err != nil {
			ec.logger().WithError(err).WithField("concept", base.Name).Warn("extraction: concept_relation: call failed, skipping concept")
			continue
		}
		for _, item := range items {
			target, ok := byName[item.TargetConceptName]
			if !ok {
				continue
			}
			if target.UUID == base.UUID {
				continue // self-connection dropped
			}
			relType := domain.ConceptRelationType(item.Type)
			if !domain.IsValidConceptRelationType(string(relType)) {
				continue // unknown type dropped
			}
			spans := resolveSpans(ec, item.SummaryShort)
			if len(spans) == 0 {
				continue
			}

			result.Curatables = append(result.Curatables, conceptRelationMapping(base.UUID, target.UUID, relType, item.SummaryShort, spans))

			if !domain.IsSymmetric(relType) {
				inverse, _ := domain.Inverse(relType)
				result.Curatables = append(result.Curatables, conceptRelationMapping(target.UUID, base.UUID, inverse, item.SummaryShort, spans))
			}
		}
	}
	return result, nil
}

func (s *conceptRelationStage) runForConcept(ctx context.Context, ec *Context, concept domain.EntityBase, contextSection string) ([]llmConceptRelationCandidate, error) {
	prompt := fmt.Sprintf(
		"%sFocus concept: %s (%s)\n\nFor this concept, identify its relationships to the other concepts listed above, drawn ONLY from this closed set of types: "+
			"GENERALIZES, SPECIFIC_OF, PART_OF, HAS_PART, SUPPORTS, SUPPORTED_BY, OPPOSES, SIMILAR_TO, RELATES_TO.\n\nJOURNAL TEXT:\n%s",
		contextSection, concept.Name, concept.SummaryShort, ec.Journal.Narration)

	var out llmConceptRelationList
	_, err := ec.LLM.Generate(ctx, llmgateway.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: `You read a personal journal entry and relate one focus concept to other known concepts. Return ONLY a JSON object: {"items":[{"target_concept_name":"...","type":"...","summary_short":"..."}]}. No markdown, no explanation.`,
		SchemaName:   "concept_relation",
		Target:       &out,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: concept_relation: %w", err)
	}
	return out.Items, nil
}

func conceptRelationMapping(sourceUUID, targetUUID string, relType domain.ConceptRelationType, summary string, spans []domain.Span) domain.CuratableMapping {
	payload := domain.ConceptRelationPayload{
		SourceUUID:   sourceUUID,
		TargetUUID:   targetUUID,
		Type:         relType,
		SummaryShort: summary,
	}
	return domain.CuratableMapping{
		Kind:    domain.KindConceptRelation,
		Payload: payload,
		Spans:   spans,
		Context: []string{sourceUUID, targetUUID},
	}
}

func curatedEntitiesOfKind(entities []domain.Entity, kind domain.EntityType) []domain.Entity {
	var out []domain.Entity
	for _, e := range entities {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}
