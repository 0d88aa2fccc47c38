package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/llmgateway"
)

// buildEntityFunc constructs the concrete Entity value for one candidate,
// given the identity resolved for it (uuid + merged summaries).
type buildEntityFunc func(c llmEntityCandidate, base domain.EntityBase) domain.Entity

// genericEntityStage implements stages 3 in §4.4 ("Project, Consumable,
// Content, Event, Place") — one LLM call, identity resolution against the
// vault, span resolution, emit as EntityMapping. All five share this shape
// because the specification names them "the same template" explicitly.
type genericEntityStage struct {
	name      string
	kind      domain.EntityType
	guidance  string
	build     buildEntityFunc
}

func newGenericEntityStage(name string, kind domain.EntityType, guidance string, build buildEntityFunc) *genericEntityStage {
	return &genericEntityStage{name: name, kind: kind, guidance: guidance, build: build}
}

func (s *genericEntityStage) Name() string { return s.name }

func (s *genericEntityStage) Run(ctx context.Context, ec *Context) (Result, error) {
	var out llmEntityList
	_, err := ec.LLM.Generate(ctx, llmgateway.GenerateRequest{
		Prompt:       buildEntityPrompt(s.name, s.guidance, ec.Journal.Narration),
		SystemPrompt: entityExtractionSystemPrompt,
		SchemaName:   string(s.kind),
		Target:       &out,
	})
	if err != nil {
		return Result{}, fmt.Errorf("extraction: %s: %w", s.name, err)
	}

	var result Result
	for _, c := range out.Items {
		spans := resolveSpans(ec, c.Name)
		if len(spans) == 0 {
			continue
		}

		uuid, short, long, err := resolveIdentity(ctx, ec, c.Name, s.kind, c.SummaryShort, c.SummaryLong)
		if err != nil {
			ec.logger().WithError(err).WithField("name", c.Name).Warn("extraction: identity collision, dropping candidate")
			continue
		}

		base := domain.EntityBase{
			UUID:         uuid,
			Partition:    domain.PartitionDomain,
			Name:         c.Name,
			SummaryShort: short,
			SummaryLong:  long,
			CreatedAt:    newEntityTimestamp(),
		}
		result.Entities = append(result.Entities, domain.EntityMapping{Entity: s.build(c, base), Spans: spans})
	}
	return result, nil
}

// NewProjectStage builds the Project generic stage.
func NewProjectStage() Stage {
	return newGenericEntityStage("project", domain.EntityProject,
		`Each item also needs "status", one of: not-started, active, on-hold, completed, cancelled.`,
		func(c llmEntityCandidate, base domain.EntityBase) domain.Entity {
			status := domain.ProjectStatus(c.Status)
			if !validProjectStatus(status) {
				status = domain.ProjectActive
			}
			return domain.Project{EntityBase: base, Status: status}
		})
}

func validProjectStatus(s domain.ProjectStatus) bool {
	switch s {
	case domain.ProjectNotStarted, domain.ProjectActive, domain.ProjectOnHold, domain.ProjectCompleted, domain.ProjectCancelled:
		return true
	default:
		return false
	}
}

// NewConsumableStage builds the Consumable generic stage (food, drink,
// medication — anything the journal describes being used up).
func NewConsumableStage() Stage {
	return newGenericEntityStage("consumable", domain.EntityConsumable,
		"A consumable is something used up: food, drink, medication, or similar.",
		func(c llmEntityCandidate, base domain.EntityBase) domain.Entity {
			return domain.Consumable{EntityBase: base}
		})
}

// NewContentStage builds the Content generic stage (books, articles,
// videos referenced or consumed).
func NewContentStage() Stage {
	return newGenericEntityStage("content", domain.EntityContent,
		"Content is a book, article, video, podcast, or similar authored work referenced in the text.",
		func(c llmEntityCandidate, base domain.EntityBase) domain.Entity {
			return domain.Content{EntityBase: base}
		})
}

// NewEventStage builds the Event generic stage.
func NewEventStage() Stage {
	return newGenericEntityStage("event", domain.EntityEvent,
		`Each item also needs "date" (YYYY-MM-DD), "duration_minutes" (integer, 0 if unknown), and "location" (string, empty if unknown).`,
		func(c llmEntityCandidate, base domain.EntityBase) domain.Entity {
			date, _ := time.Parse("2006-01-02", c.Date)
			return domain.Event{
				EntityBase: base,
				Date:       date,
				Duration:   time.Duration(c.DurationMin) * time.Minute,
				Location:   c.Location,
			}
		})
}

// NewPlaceStage builds the Place generic stage.
func NewPlaceStage() Stage {
	return newGenericEntityStage("place", domain.EntityPlace,
		"A place is a location named or described in the text: a city, building, room, or landmark.",
		func(c llmEntityCandidate, base domain.EntityBase) domain.Entity {
			return domain.Place{EntityBase: base}
		})
}
