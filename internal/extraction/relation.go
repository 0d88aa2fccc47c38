package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/llmgateway"
)

// relationStage is stage 6 of §4.4: runs over the curated entity set,
// after the entity curation gate, producing general relations with
// proposed subtypes for a human to disambiguate.
type relationStage struct{}

// NewRelationStage builds the Relation stage.
func NewRelationStage() Stage { return &relationStage{} }

func (s *relationStage) Name() string { return "relation" }

func (s *relationStage) Run(ctx context.Context, ec *Context) (Result, error) {
	if len(ec.CuratedEntities) == 0 {
		return Result{}, nil
	}

	names := entityNamesByUUID(ec.CuratedEntities)
	var entityList []string
	for _, e := range ec.CuratedEntities {
		entityList = append(entityList, e.Base().Name)
	}

	prompt := fmt.Sprintf(
		"Known entities in this journal entry: %s\n\n"+
			"For every meaningful relationship between two of these entities evident in the text, propose 1-3 candidate relationship type strings (short, e.g. \"WORKS_WITH\", \"VISITED\", \"ADMIRES\") and a short summary.\n\n"+
			"JOURNAL TEXT:\n%s",
		strings.Join(entityList, ", "), ec.Journal.Narration)

	var out llmRelationList
	_, err := ec.LLM.Generate(ctx, llmgateway.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: `You read a personal journal entry and identify relationships between named entities already known to exist. Return ONLY a JSON object: {"items":[{"source_name":"...","target_name":"...","proposed_types":["..."],"summary_short":"..."}]}. No markdown, no explanation.`,
		SchemaName:   "relation",
		Target:       &out,
	})
	if err != nil {
		return Result{}, fmt.Errorf("extraction: relation: %w", err)
	}

	var result Result
	for _, item := range out.Items {
		srcUUID, ok := names[strings.ToLower(item.SourceName)]
		if !ok {
			continue
		}
		tgtUUID, ok := names[strings.ToLower(item.TargetName)]
		if !ok || tgtUUID == srcUUID {
			continue
		}
		spans := resolveSpans(ec, item.SummaryShort)
		if len(spans) == 0 {
			continue
		}
		payload := domain.RelationPayload{
			SourceUUID:    srcUUID,
			TargetUUID:    tgtUUID,
			ProposedTypes: item.ProposedTypes,
			SummaryShort:  item.SummaryShort,
		}
		result.Curatables = append(result.Curatables, domain.CuratableMapping{
			Kind:    domain.KindRelation,
			Payload: payload,
			Spans:   spans,
			Context: []string{srcUUID, tgtUUID},
		})
	}
	return result, nil
}

func entityNamesByUUID(entities []domain.Entity) map[string]string {
	out := make(map[string]string, len(entities))
	for _, e := range entities {
		b := e.Base()
		out[strings.ToLower(b.Name)] = b.UUID
	}
	return out
}
