package extraction

import (
	"context"
	"fmt"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/llmgateway"
)

// peopleNameList is the schema target for the first People call: just
// names, no attributes yet.
type peopleNameList struct {
	Names []string `json:"names"`
}

func (l peopleNameList) Validate() error {
	for _, n := range l.Names {
		if n == "" {
			return fmt.Errorf("empty person name")
		}
	}
	return nil
}

const peopleSystemPrompt = `You read a personal journal entry and list every person mentioned by name.
Return ONLY a JSON object: {"names": ["..."]}. Do not include the journal author unless they refer to themselves by name.
No markdown, no explanation.`

const personHydrationSystemPrompt = `You read a personal journal entry and describe one named person mentioned in it.
Return ONLY a JSON object: {"items": [{"name": "...", "occupation": "...", "summary_short": "...", "summary_long": "..."}]}.
"occupation" may be empty if unstated. summary_short <= 30 words, summary_long <= 100 words.
No markdown, no explanation.`

// peopleStage is stage 1 of §4.4: find Person mentions, then for each one
// found, issue a second LLM call to hydrate attributes from the same
// text. 1 + len(names) LLM calls are made, plus one summary-merge call
// for each name that resolves to an entity already in the vault.
type peopleStage struct{}

// NewPeopleStage builds the People stage. Found people are appended to
// ec.People so later stages (FeelingEmotion, FeelingConcept) can bind
// feelings to a person UUID without re-extracting names.
func NewPeopleStage() Stage { return &peopleStage{} }

func (s *peopleStage) Name() string { return "people" }

func (s *peopleStage) Run(ctx context.Context, ec *Context) (Result, error) {
	var names peopleNameList
	_, err := ec.LLM.Generate(ctx, llmgateway.GenerateRequest{
		Prompt:       "JOURNAL TEXT:\n" + ec.Journal.Narration,
		SystemPrompt: peopleSystemPrompt,
		SchemaName:   "people_names",
		Target:       &names,
	})
	if err != nil {
		return Result{}, fmt.Errorf("extraction: people: %w", err)
	}

	var result Result
	for _, name := range names.Names {
		person, mapping, err := s.hydrate(ctx, ec, name)
		if err != nil {
			ec.logger().WithError(err).WithField("name", name).Warn("extraction: people: hydration failed, dropping")
			continue
		}
		if mapping == nil {
			continue
		}
		ec.People = append(ec.People, person)
		result.Entities = append(result.Entities, *mapping)
	}
	return result, nil
}

func (s *peopleStage) hydrate(ctx context.Context, ec *Context, name string) (domain.Person, *domain.EntityMapping, error) {
	var out llmEntityList
	_, err := ec.LLM.Generate(ctx, llmgateway.GenerateRequest{
		Prompt:       fmt.Sprintf("Describe %q using details from this journal text:\n\n%s", name, ec.Journal.Narration),
		SystemPrompt: personHydrationSystemPrompt,
		SchemaName:   "person_hydration",
		Target:       &out,
	})
	if err != nil {
		return domain.Person{}, nil, err
	}
	if len(out.Items) == 0 {
		return domain.Person{}, nil, fmt.Errorf("hydration returned no items for %q", name)
	}
	c := out.Items[0]

	spans := resolveSpans(ec, name)
	if len(spans) == 0 {
		return domain.Person{}, nil, nil
	}

	uuid, short, long, err := resolveIdentity(ctx, ec, name, domain.EntityPerson, c.SummaryShort, c.SummaryLong)
	if err != nil {
		return domain.Person{}, nil, err
	}

	person := domain.Person{
		EntityBase: domain.EntityBase{
			UUID:         uuid,
			Partition:    domain.PartitionDomain,
			Name:         name,
			SummaryShort: short,
			SummaryLong:  long,
			CreatedAt:    newEntityTimestamp(),
		},
		Occupation: c.Occupation,
	}
	return person, &domain.EntityMapping{Entity: person, Spans: spans}, nil
}
