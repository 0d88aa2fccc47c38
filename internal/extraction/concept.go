package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/llmgateway"
)

const (
	conceptVectorK         = 10
	conceptVectorThreshold = 0.7
	conceptRecencyWindow   = 30
	conceptRecencyK        = 10
)

// buildConceptContext assembles the three-section prompt context shared by
// the Concept stage (stage 2) and the ConceptRelation stage (stage 7):
// (a) concepts wiki-linked in the journal, (b) concepts found by vector
// search over the narration, (c) concepts last mentioned within 30 days.
// Sections are concatenated in that priority order and de-duplicated by
// UUID, keeping the earliest (highest-priority) section's entry.
func buildConceptContext(ctx context.Context, ec *Context) (string, []VaultEntity, error) {
	seen := make(map[string]bool)
	var ordered []VaultEntity
	add := func(items []VaultEntity) []VaultEntity {
		var added []VaultEntity
		for _, it := range items {
			if seen[it.UUID] {
				continue
			}
			seen[it.UUID] = true
			ordered = append(ordered, it)
			added = append(added, it)
		}
		return added
	}

	linked := add(ec.Vault.WikiLinked(ec.Journal.Narration, domain.EntityConcept))

	embedding, err := ec.LLM.Embed(ctx, ec.Journal.Narration)
	if err != nil {
		return "", nil, fmt.Errorf("extraction: concept context: embed narration: %w", err)
	}
	hits, err := ec.Graph.VectorSearch(ctx, string(domain.EntityConcept), embedding, conceptVectorK, conceptVectorThreshold)
	if err != nil {
		return "", nil, fmt.Errorf("extraction: concept context: vector search: %w", err)
	}
	var bySimilarity []VaultEntity
	for _, hit := range hits {
		if ve, ok := ec.Vault.LookupByUUID(hit.UUID); ok {
			bySimilarity = append(bySimilarity, ve)
		}
	}
	bySimilarity = add(bySimilarity)

	recent := add(ec.Vault.RecentlyMentioned(domain.EntityConcept, conceptRecencyWindow, conceptRecencyK))

	var sb strings.Builder
	if len(linked) > 0 {
		sb.WriteString("WIKI-LINKED CONCEPTS:\n")
		writeConceptList(&sb, linked)
	}
	if len(bySimilarity) > 0 {
		sb.WriteString("SIMILAR CONCEPTS (by meaning):\n")
		writeConceptList(&sb, bySimilarity)
	}
	if len(recent) > 0 {
		sb.WriteString("RECENTLY MENTIONED CONCEPTS:\n")
		writeConceptList(&sb, recent)
	}
	return sb.String(), ordered, nil
}

func writeConceptList(sb *strings.Builder, items []VaultEntity) {
	for _, it := range items {
		sb.WriteString("- ")
		sb.WriteString(it.Name)
		if it.SummaryShort != "" {
			sb.WriteString(": ")
			sb.WriteString(it.SummaryShort)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// conceptStage is stage 2 of §4.4.
type conceptStage struct{}

// NewConceptStage builds the Concept stage.
func NewConceptStage() Stage { return &conceptStage{} }

func (s *conceptStage) Name() string { return "concept" }

func (s *conceptStage) Run(ctx context.Context, ec *Context) (Result, error) {
	contextSection, _, err := buildConceptContext(ctx, ec)
	if err != nil {
		return Result{}, err
	}

	prompt := buildEntityPrompt("concept (idea, belief, topic, or theme)",
		"A concept is an idea, belief, topic, or recurring theme, not a person, place, or physical object.",
		ec.Journal.Narration)
	if contextSection != "" {
		prompt = contextSection + "\n" + prompt
	}

	var out llmEntityList
	_, err = ec.LLM.Generate(ctx, llmgateway.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: entityExtractionSystemPrompt,
		SchemaName:   "concept",
		Target:       &out,
	})
	if err != nil {
		return Result{}, fmt.Errorf("extraction: concept: %w", err)
	}

	var result Result
	for _, c := range out.Items {
		spans := resolveSpans(ec, c.Name)
		if len(spans) == 0 {
			continue
		}
		uuid, short, long, err := resolveIdentity(ctx, ec, c.Name, domain.EntityConcept, c.SummaryShort, c.SummaryLong)
		if err != nil {
			ec.logger().WithError(err).WithField("name", c.Name).Warn("extraction: concept: identity collision, dropping")
			continue
		}
		concept := domain.Concept{EntityBase: domain.EntityBase{
			UUID: uuid, Partition: domain.PartitionDomain, Name: c.Name,
			SummaryShort: short, SummaryLong: long, CreatedAt: newEntityTimestamp(),
		}}
		ec.Concepts = append(ec.Concepts, concept)
		result.Entities = append(result.Entities, domain.EntityMapping{Entity: concept, Spans: spans})
	}
	return result, nil
}
