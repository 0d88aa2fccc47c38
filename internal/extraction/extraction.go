// Package extraction is the registry of stage handlers that turn a
// journal's narration into typed, span-resolved candidates awaiting human
// curation. Each stage is (Context) -> ([]domain.EntityMapping,
// []domain.CuratableMapping); stages run in a fixed order because later
// stages depend on entities or concepts earlier stages found.
package extraction

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/llmgateway"
)

// LLM is the subset of *llmgateway.Gateway a stage needs. Stages depend on
// this interface, not the concrete gateway, so they can be tested against a
// fake.
type LLM interface {
	Generate(ctx context.Context, req llmgateway.GenerateRequest) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VaultEntity is the minimal shape an identity lookup needs: enough to
// decide whether a name refers to something already known, and of what
// kind.
type VaultEntity struct {
	UUID         string
	Name         string
	Kind         domain.EntityType
	SummaryShort string
	SummaryLong  string
	Aliases      []string // additional surface forms from frontmatter, beyond Name
	LastMention  string   // journal date (YYYY-MM-DD) of most recent Mention, if known
}

// VaultIndex is the read-side identity and recall surface a stage
// consults: has this name been seen before, what concepts are wiki-linked
// from this text, and what has been mentioned recently.
type VaultIndex interface {
	// Lookup finds an existing entity by case-insensitive name match,
	// regardless of kind, so a stage can detect a cross-type collision
	// rather than silently reusing a UUID under the wrong type.
	Lookup(name string) (VaultEntity, bool)
	// LookupByUUID finds an existing entity by UUID, used to resolve
	// graph vector-search hits (which return UUIDs, not names) back into
	// a VaultEntity.
	LookupByUUID(uuid string) (VaultEntity, bool)
	// WikiLinked returns vault entities of kind referenced via a [[link]]
	// anywhere in text.
	WikiLinked(text string, kind domain.EntityType) []VaultEntity
	// RecentlyMentioned returns up to k entities of kind whose last known
	// mention falls within the trailing withinDays days, most recent first.
	RecentlyMentioned(kind domain.EntityType, withinDays, k int) []VaultEntity
	// AllKnown returns every entity the index currently holds, regardless
	// of kind or recency — the dictionary an implicit mention scanner
	// compiles its automaton from.
	AllKnown() []VaultEntity
}

// ScoredNode is one vector-search hit, shaped to match
// graphstore.ScoredNode without importing the graphstore package directly.
type ScoredNode struct {
	UUID  string
	Label string
	Score float64
}

// GraphSearch is the vector-search surface a stage consults to build
// semantic context (the concept stage's "similar to this narration"
// section).
type GraphSearch interface {
	VectorSearch(ctx context.Context, label string, embedding []float32, k int, threshold float64) ([]ScoredNode, error)
}

// SpanResolver locates a candidate text fragment back in the source
// narration.
type SpanResolver interface {
	Resolve(candidate, source string) []domain.Span
}

// Context is the shared state one journal's extraction run threads
// through every stage. People and Concepts are populated by stages 1 and 2
// respectively and read by the stages that depend on them; CuratedEntities
// is populated by the orchestrator once the entity curation gate clears,
// ahead of the relation phase.
type Context struct {
	Journal *domain.JournalEntry
	Chunks  []domain.Chunk

	People          []domain.Person
	Concepts        []domain.Concept
	CuratedEntities []domain.Entity

	LLM   LLM
	Vault VaultIndex
	Graph GraphSearch
	Spans SpanResolver
	Log   logrus.FieldLogger
}

func (c *Context) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

// Result is one stage's output: zero or more entity candidates and zero or
// more curatable (non-entity) candidates.
type Result struct {
	Entities   []domain.EntityMapping
	Curatables []domain.CuratableMapping
}

func (r *Result) merge(other Result) {
	r.Entities = append(r.Entities, other.Entities...)
	r.Curatables = append(r.Curatables, other.Curatables...)
}

// Stage is one named extraction step.
type Stage interface {
	Name() string
	Run(ctx context.Context, ec *Context) (Result, error)
}

// resolveSpans resolves candidate against the journal's narration,
// dropping the candidate entirely (with a warning) if no span is found —
// a stage never emits a mapping with zero spans.
func resolveSpans(ec *Context, candidate string) []domain.Span {
	if ec.Spans == nil || ec.Journal == nil {
		return nil
	}
	spans := ec.Spans.Resolve(candidate, ec.Journal.Narration)
	if len(spans) == 0 {
		ec.logger().WithField("candidate", candidate).Warn("extraction: span not found, dropping")
	}
	return spans
}
