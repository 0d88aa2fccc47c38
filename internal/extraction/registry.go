package extraction

import (
	"context"
	"fmt"

	"github.com/alexelgier/minerva/internal/domain"
)

// Registry holds the fixed, ordered set of extraction stages and runs each
// phase the orchestrator (C6) drives: the entity phase (stages 1-3) and
// the relation phase (stages 4-7), the latter running only once curated
// entities are available.
type Registry struct {
	entityPhase   []Stage
	relationPhase []Stage
}

// NewRegistry builds the default stage registry in specification order.
func NewRegistry() *Registry {
	return &Registry{
		entityPhase: []Stage{
			NewPeopleStage(),
			NewConceptStage(),
			NewProjectStage(),
			NewConsumableStage(),
			NewContentStage(),
			NewEventStage(),
			NewPlaceStage(),
		},
		relationPhase: []Stage{
			NewFeelingEmotionStage(),
			NewFeelingConceptStage(),
			NewRelationStage(),
			NewConceptRelationStage(),
		},
	}
}

// RunEntityPhase runs stages 1-3 (people, concept, the generic entity
// stages) in order. Per the specification's open-question resolution
// (§9), feelings stages do NOT run here even though they only need
// People/Concepts: running them against pre-curation entities would bind
// a feeling to a UUID that curation might later reject, producing a
// dangling reference. They run in RunRelationPhase instead, against the
// curated set.
func (r *Registry) RunEntityPhase(ctx context.Context, ec *Context) (Result, error) {
	return r.runSequential(ctx, ec, r.entityPhase)
}

// RunRelationPhase runs stages 4-7 against a Context whose CuratedEntities
// has already been populated by the orchestrator from C3's approved
// entity-phase items. The caller must also populate ec.People/ec.Concepts
// from CuratedEntities (see PopulateCuratedContext) so the feeling stages,
// which read those fields rather than CuratedEntities directly, see only
// entities a human has approved.
func (r *Registry) RunRelationPhase(ctx context.Context, ec *Context) (Result, error) {
	return r.runSequential(ctx, ec, r.relationPhase)
}

// PopulateCuratedContext derives ec.People and ec.Concepts from
// ec.CuratedEntities, overwriting whatever the entity phase left there.
// Must be called before RunRelationPhase so the feeling stages see the
// post-curation identity of each person/concept, not the pre-curation
// extraction guess.
func PopulateCuratedContext(ec *Context) {
	ec.People = nil
	ec.Concepts = nil
	for _, e := range ec.CuratedEntities {
		switch v := e.(type) {
		case domain.Person:
			ec.People = append(ec.People, v)
		case domain.Concept:
			ec.Concepts = append(ec.Concepts, v)
		}
	}
}

func (r *Registry) runSequential(ctx context.Context, ec *Context, stages []Stage) (Result, error) {
	var total Result
	for _, stage := range stages {
		res, err := stage.Run(ctx, ec)
		if err != nil {
			return Result{}, fmt.Errorf("extraction: stage %s: %w", stage.Name(), err)
		}
		total.merge(res)
	}
	return total, nil
}
