package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/llmgateway"
)

// feelingEmotionStage is stage 4 of §4.4: requires People from stage 1.
type feelingEmotionStage struct{}

// NewFeelingEmotionStage builds the FeelingEmotion stage.
func NewFeelingEmotionStage() Stage { return &feelingEmotionStage{} }

func (s *feelingEmotionStage) Name() string { return "feeling_emotion" }

func (s *feelingEmotionStage) Run(ctx context.Context, ec *Context) (Result, error) {
	if len(ec.People) == 0 {
		return Result{}, nil
	}

	names := personNames(ec.People)
	prompt := fmt.Sprintf(
		"People mentioned: %s\n\nFor each moment in the text where one of these people feels an emotion, extract who, which emotion, and a short summary of the moment.\n"+
			"emotion_type must be one of: %s\n\nJOURNAL TEXT:\n%s",
		strings.Join(names, ", "), strings.Join(emotionVocabularyList(), ", "), ec.Journal.Narration)

	var out llmFeelingEmotionList
	_, err := ec.LLM.Generate(ctx, llmgateway.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: `You read a personal journal entry and identify moments where a named person feels an emotion. Return ONLY a JSON object: {"items":[{"person_name":"...","emotion_type":"...","summary_short":"..."}]}. No markdown, no explanation.`,
		SchemaName:   "feeling_emotion",
		Target:       &out,
	})
	if err != nil {
		return Result{}, fmt.Errorf("extraction: feeling_emotion: %w", err)
	}

	var result Result
	for _, item := range out.Items {
		person, ok := findPersonByName(ec.People, item.PersonName)
		if !ok {
			ec.logger().WithField("person_name", item.PersonName).Warn("extraction: feeling_emotion: unknown person, dropping")
			continue
		}
		if !domain.IsValidEmotion(item.EmotionType) {
			ec.logger().WithField("emotion_type", item.EmotionType).Warn("extraction: feeling_emotion: unknown emotion type, dropping")
			continue
		}
		spans := resolveSpans(ec, item.SummaryShort)
		if len(spans) == 0 {
			continue
		}
		payload := domain.FeelingEmotionPayload{
			PersonUUID:   person.UUID,
			EmotionType:  item.EmotionType,
			SummaryShort: item.SummaryShort,
		}
		result.Curatables = append(result.Curatables, domain.CuratableMapping{
			Kind:    domain.KindFeelingEmotion,
			Payload: payload,
			Spans:   spans,
			Context: []string{person.UUID},
		})
	}
	return result, nil
}

// feelingConceptStage is stage 5 of §4.4: requires People and Concepts.
type feelingConceptStage struct{}

// NewFeelingConceptStage builds the FeelingConcept stage.
func NewFeelingConceptStage() Stage { return &feelingConceptStage{} }

func (s *feelingConceptStage) Name() string { return "feeling_concept" }

func (s *feelingConceptStage) Run(ctx context.Context, ec *Context) (Result, error) {
	if len(ec.People) == 0 || len(ec.Concepts) == 0 {
		return Result{}, nil
	}

	prompt := fmt.Sprintf(
		"People mentioned: %s\nConcepts mentioned: %s\n\nFor each moment where one of these people expresses a view or stance toward one of these concepts, extract who, which concept, their stance, and a short summary.\n\nJOURNAL TEXT:\n%s",
		strings.Join(personNames(ec.People), ", "), strings.Join(conceptNames(ec.Concepts), ", "), ec.Journal.Narration)

	var out llmFeelingConceptList
	_, err := ec.LLM.Generate(ctx, llmgateway.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: `You read a personal journal entry and identify moments where a named person holds a stance toward a named concept. Return ONLY a JSON object: {"items":[{"person_name":"...","concept_name":"...","stance":"...","summary_short":"..."}]}. No markdown, no explanation.`,
		SchemaName:   "feeling_concept",
		Target:       &out,
	})
	if err != nil {
		return Result{}, fmt.Errorf("extraction: feeling_concept: %w", err)
	}

	var result Result
	for _, item := range out.Items {
		person, ok := findPersonByName(ec.People, item.PersonName)
		if !ok {
			continue
		}
		concept, ok := findConceptByName(ec.Concepts, item.ConceptName)
		if !ok {
			continue
		}
		spans := resolveSpans(ec, item.SummaryShort)
		if len(spans) == 0 {
			continue
		}
		payload := domain.FeelingConceptPayload{
			PersonUUID:   person.UUID,
			ConceptUUID:  concept.UUID,
			Stance:       item.Stance,
			SummaryShort: item.SummaryShort,
		}
		result.Curatables = append(result.Curatables, domain.CuratableMapping{
			Kind:    domain.KindFeelingConcept,
			Payload: payload,
			Spans:   spans,
			Context: []string{person.UUID, concept.UUID},
		})
	}
	return result, nil
}

func personNames(people []domain.Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.Name
	}
	return out
}

func conceptNames(concepts []domain.Concept) []string {
	out := make([]string, len(concepts))
	for i, c := range concepts {
		out[i] = c.Name
	}
	return out
}

func findPersonByName(people []domain.Person, name string) (domain.Person, bool) {
	for _, p := range people {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return domain.Person{}, false
}

func findConceptByName(concepts []domain.Concept, name string) (domain.Concept, bool) {
	for _, c := range concepts {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return domain.Concept{}, false
}

func emotionVocabularyList() []string {
	out := make([]string, 0, len(domain.EmotionVocabulary))
	for k := range domain.EmotionVocabulary {
		out = append(out, k)
	}
	return out
}
