package extraction

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/llmgateway"
)

// fakeLLM replays a fixed sequence of JSON responses, one per Generate
// call, decoding into whatever Target the caller passed — mirroring how
// the real gateway's Generate behaves.
type fakeLLM struct {
	responses []string
	calls     int
	embedding []float32
}

func (f *fakeLLM) Generate(ctx context.Context, req llmgateway.GenerateRequest) (string, error) {
	if f.calls >= len(f.responses) {
		return "", assertNoMoreCalls{}
	}
	raw := f.responses[f.calls]
	f.calls++
	if req.Target != nil {
		if err := json.Unmarshal([]byte(raw), req.Target); err != nil {
			return "", err
		}
	}
	return raw, nil
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.embedding, nil
}

type assertNoMoreCalls struct{}

func (assertNoMoreCalls) Error() string { return "fakeLLM: no more canned responses" }

// fakeSpanResolver always resolves the whole candidate as one span
// starting at offset 0 and len(candidate) bytes long, without searching
// source (sufficient for these tests).
type fakeSpanResolver struct{}

func (fakeSpanResolver) Resolve(candidate, source string) []domain.Span {
	if candidate == "" {
		return nil
	}
	return []domain.Span{{Start: 0, End: len(candidate), Text: candidate}}
}

// fakeVault is a tiny in-memory identity/recall index for tests.
type fakeVault struct {
	byName map[string]VaultEntity
}

func newFakeVault() *fakeVault { return &fakeVault{byName: map[string]VaultEntity{}} }

func (v *fakeVault) Lookup(name string) (VaultEntity, bool) {
	e, ok := v.byName[name]
	return e, ok
}

func (v *fakeVault) LookupByUUID(uuid string) (VaultEntity, bool) {
	for _, e := range v.byName {
		if e.UUID == uuid {
			return e, true
		}
	}
	return VaultEntity{}, false
}

func (v *fakeVault) WikiLinked(text string, kind domain.EntityType) []VaultEntity { return nil }

func (v *fakeVault) RecentlyMentioned(kind domain.EntityType, withinDays, k int) []VaultEntity {
	return nil
}

func (v *fakeVault) AllKnown() []VaultEntity {
	out := make([]VaultEntity, 0, len(v.byName))
	for _, e := range v.byName {
		out = append(out, e)
	}
	return out
}

type fakeGraph struct{}

func (fakeGraph) VectorSearch(ctx context.Context, label string, embedding []float32, k int, threshold float64) ([]ScoredNode, error) {
	return nil, nil
}

func testJournal(narration string) *domain.JournalEntry {
	return &domain.JournalEntry{UUID: "j1", Date: "2026-07-31", Narration: narration}
}

func TestPeopleStage_HydratesAndResolvesIdentity(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"names":["Ana"]}`,
		`{"items":[{"name":"Ana","occupation":"librarian","summary_short":"a friend","summary_long":"a close friend from work"}]}`,
	}}
	ec := &Context{
		Journal: testJournal("Had lunch with Ana today."),
		LLM:     llm,
		Vault:   newFakeVault(),
		Spans:   fakeSpanResolver{},
	}

	res, err := NewPeopleStage().Run(context.Background(), ec)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)

	person, ok := res.Entities[0].Entity.(domain.Person)
	require.True(t, ok)
	assert.Equal(t, "Ana", person.Name)
	assert.Equal(t, "librarian", person.Occupation)
	require.Len(t, ec.People, 1)
	assert.Equal(t, 2, llm.calls)
}

func TestResolveIdentity_PreservesUUIDOnSameTypeMatch(t *testing.T) {
	vault := newFakeVault()
	vault.byName["Ana"] = VaultEntity{UUID: "existing-uuid", Name: "Ana", Kind: domain.EntityPerson, SummaryShort: "old short", SummaryLong: "old long"}

	llm := &fakeLLM{responses: []string{`{"summary_short":"merged short","summary_long":"merged long"}`}}
	ec := &Context{LLM: llm, Vault: vault}

	uuid, short, long, err := resolveIdentity(context.Background(), ec, "Ana", domain.EntityPerson, "new short", "new long")
	require.NoError(t, err)
	assert.Equal(t, "existing-uuid", uuid)
	assert.Equal(t, "merged short", short)
	assert.Equal(t, "merged long", long)
}

func TestResolveIdentity_CrossTypeCollisionRejected(t *testing.T) {
	vault := newFakeVault()
	vault.byName["Ana"] = VaultEntity{UUID: "existing-uuid", Name: "Ana", Kind: domain.EntityPerson}
	ec := &Context{Vault: vault}

	_, _, _, err := resolveIdentity(context.Background(), ec, "Ana", domain.EntityConcept, "s", "l")
	require.Error(t, err)
	var collision *ErrCrossTypeCollision
	assert.ErrorAs(t, err, &collision)
}

func TestEventStage_ParsesDateAndDuration(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"items":[{"name":"Conference","summary_short":"a talk","summary_long":"a long talk about go","date":"2026-08-01","duration_minutes":90,"location":"Buenos Aires"}]}`,
	}}
	ec := &Context{
		Journal: testJournal("Went to the Conference in Buenos Aires."),
		LLM:     llm,
		Vault:   newFakeVault(),
		Spans:   fakeSpanResolver{},
	}

	res, err := NewEventStage().Run(context.Background(), ec)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)

	event, ok := res.Entities[0].Entity.(domain.Event)
	require.True(t, ok)
	assert.Equal(t, "Buenos Aires", event.Location)
	assert.Equal(t, 2026, event.Date.Year())
	assert.Equal(t, 90.0, event.Duration.Minutes())
}

func TestRelationStage_SkipsSelfAndUnknownEntities(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"items":[
			{"source_name":"Ana","target_name":"Ana","proposed_types":["KNOWS"],"summary_short":"self"},
			{"source_name":"Ana","target_name":"Ghost","proposed_types":["KNOWS"],"summary_short":"unknown target"},
			{"source_name":"Ana","target_name":"Library","proposed_types":["VISITED"],"summary_short":"visited the library"}
		]}`,
	}}
	ec := &Context{
		Journal: testJournal("Ana visited the Library."),
		LLM:     llm,
		Spans:   fakeSpanResolver{},
		CuratedEntities: []domain.Entity{
			domain.Person{EntityBase: domain.EntityBase{UUID: "p1", Name: "Ana"}},
			domain.Place{EntityBase: domain.EntityBase{UUID: "pl1", Name: "Library"}},
		},
	}

	res, err := NewRelationStage().Run(context.Background(), ec)
	require.NoError(t, err)
	require.Len(t, res.Curatables, 1)
	payload, ok := res.Curatables[0].Payload.(domain.RelationPayload)
	require.True(t, ok)
	assert.Equal(t, "p1", payload.SourceUUID)
	assert.Equal(t, "pl1", payload.TargetUUID)
}

func TestConceptRelationStage_RecordsInverse(t *testing.T) {
	llm := &fakeLLM{
		embedding: []float32{0.1, 0.2},
		responses: []string{
			`{"items":[{"target_concept_name":"Stoicism","type":"GENERALIZES","summary_short":"broader than stoicism"}]}`,
		},
	}
	ec := &Context{
		Journal: testJournal("Reflecting on discipline and stoicism."),
		LLM:     llm,
		Vault:   newFakeVault(),
		Graph:   fakeGraph{},
		Spans:   fakeSpanResolver{},
		CuratedEntities: []domain.Entity{
			domain.Concept{EntityBase: domain.EntityBase{UUID: "c-discipline", Name: "Discipline"}},
			domain.Concept{EntityBase: domain.EntityBase{UUID: "c-stoicism", Name: "Stoicism"}},
		},
	}
	ec.Vault.(*fakeVault).byName["Discipline"] = VaultEntity{UUID: "c-discipline", Name: "Discipline", Kind: domain.EntityConcept}
	ec.Vault.(*fakeVault).byName["Stoicism"] = VaultEntity{UUID: "c-stoicism", Name: "Stoicism", Kind: domain.EntityConcept}

	res, err := NewConceptRelationStage().Run(context.Background(), ec)
	require.NoError(t, err)
	require.Len(t, res.Curatables, 2)

	forward := res.Curatables[0].Payload.(domain.ConceptRelationPayload)
	inverse := res.Curatables[1].Payload.(domain.ConceptRelationPayload)
	assert.Equal(t, domain.RelGeneralizes, forward.Type)
	assert.Equal(t, domain.RelSpecificOf, inverse.Type)
	assert.Equal(t, forward.SourceUUID, inverse.TargetUUID)
	assert.Equal(t, forward.TargetUUID, inverse.SourceUUID)
}
