package extraction

import (
	"fmt"
	"strings"
)

// llmEntityCandidate is the schema target shared by every plain entity
// extraction call (Person, Project, Consumable, Content, Event, Place):
// one flat shape, with subtype-specific fields left empty where unused.
type llmEntityCandidate struct {
	Name         string `json:"name"`
	SummaryShort string `json:"summary_short"`
	SummaryLong  string `json:"summary_long"`
	Occupation   string `json:"occupation,omitempty"`
	Status       string `json:"status,omitempty"`
	Date         string `json:"date,omitempty"`
	DurationMin  int    `json:"duration_minutes,omitempty"`
	Location     string `json:"location,omitempty"`
}

type llmEntityList struct {
	Items []llmEntityCandidate `json:"items"`
}

func (l llmEntityList) Validate() error {
	for _, item := range l.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("entity candidate with empty name")
		}
	}
	return nil
}

// entityExtractionSystemPrompt instructs the model to return a flat
// {"items": [...]} shape regardless of which kind is being asked for.
const entityExtractionSystemPrompt = `You are an information extraction assistant reading a personal journal entry.
Return ONLY a JSON object: {"items": [...]}. Each item has at minimum "name", "summary_short" (<=30 words), "summary_long" (<=100 words).
No markdown, no explanation. Start with { and end with }.`

// buildEntityPrompt constructs the user prompt for one plain entity kind.
func buildEntityPrompt(kindLabel, guidance, narration string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract every %s mentioned in the journal text below.\n", kindLabel)
	sb.WriteString(guidance)
	sb.WriteString("\n\nJOURNAL TEXT:\n")
	sb.WriteString(narration)
	return sb.String()
}

// llmFeelingEmotionCandidate is the schema target for the FeelingEmotion stage.
type llmFeelingEmotionCandidate struct {
	PersonName   string `json:"person_name"`
	EmotionType  string `json:"emotion_type"`
	SummaryShort string `json:"summary_short"`
}

type llmFeelingEmotionList struct {
	Items []llmFeelingEmotionCandidate `json:"items"`
}

func (l llmFeelingEmotionList) Validate() error {
	for _, item := range l.Items {
		if item.PersonName == "" || item.EmotionType == "" {
			return fmt.Errorf("feeling_emotion candidate missing person_name or emotion_type")
		}
	}
	return nil
}

// llmFeelingConceptCandidate is the schema target for the FeelingConcept stage.
type llmFeelingConceptCandidate struct {
	PersonName   string `json:"person_name"`
	ConceptName  string `json:"concept_name"`
	Stance       string `json:"stance,omitempty"`
	SummaryShort string `json:"summary_short"`
}

type llmFeelingConceptList struct {
	Items []llmFeelingConceptCandidate `json:"items"`
}

func (l llmFeelingConceptList) Validate() error {
	for _, item := range l.Items {
		if item.PersonName == "" || item.ConceptName == "" {
			return fmt.Errorf("feeling_concept candidate missing person_name or concept_name")
		}
	}
	return nil
}

// llmRelationCandidate is the schema target for the general Relation
// stage (C4 stage 6).
type llmRelationCandidate struct {
	SourceName    string   `json:"source_name"`
	TargetName    string   `json:"target_name"`
	ProposedTypes []string `json:"proposed_types"`
	SummaryShort  string   `json:"summary_short"`
}

type llmRelationList struct {
	Items []llmRelationCandidate `json:"items"`
}

func (l llmRelationList) Validate() error {
	for _, item := range l.Items {
		if item.SourceName == "" || item.TargetName == "" || len(item.ProposedTypes) == 0 {
			return fmt.Errorf("relation candidate missing source_name, target_name, or proposed_types")
		}
	}
	return nil
}

// llmConceptRelationCandidate is the schema target for the
// ConceptRelation stage (C4 stage 7).
type llmConceptRelationCandidate struct {
	TargetConceptName string `json:"target_concept_name"`
	Type              string `json:"type"`
	SummaryShort      string `json:"summary_short"`
}

type llmConceptRelationList struct {
	Items []llmConceptRelationCandidate `json:"items"`
}

func (l llmConceptRelationList) Validate() error {
	for _, item := range l.Items {
		if item.TargetConceptName == "" || item.Type == "" {
			return fmt.Errorf("concept_relation candidate missing target_concept_name or type")
		}
	}
	return nil
}
