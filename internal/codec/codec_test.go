package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexelgier/minerva/internal/domain"
)

func TestEncodeDecodeState_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	state := &domain.PipelineState{
		WorkflowID: "2026-07-31:journal-1",
		Stage:      domain.StageWaitEntityCuration,
		JournalEntry: &domain.JournalEntry{
			UUID:    "journal-1",
			Date:    "2026-07-31",
			RawText: "Today I met Ana at the library.",
		},
		EntitiesExtracted: []domain.EntityMapping{
			{
				Entity: domain.Person{
					EntityBase: domain.EntityBase{UUID: "p1", Name: "Ana", CreatedAt: now},
					Occupation: "librarian",
				},
				Spans: []domain.Span{{Start: 12, Text: "Ana", End: 15}},
			},
		},
		EntitiesCurated: []domain.Entity{
			domain.Place{EntityBase: domain.EntityBase{UUID: "pl1", Name: "the library", CreatedAt: now}},
		},
		RelationsExtracted: []domain.CuratableMapping{
			{
				Kind: domain.KindRelation,
				Payload: domain.RelationPayload{
					SourceUUID:    "p1",
					TargetUUID:    "pl1",
					ProposedTypes: []string{"visited"},
					SummaryShort:  "Ana visited the library",
				},
				Spans: []domain.Span{{Start: 0, End: 32, Text: "Today I met Ana at the library."}},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := EncodeState(state)
	require.NoError(t, err)

	decoded, err := DecodeState(data)
	require.NoError(t, err)

	assert.Equal(t, state.WorkflowID, decoded.WorkflowID)
	assert.Equal(t, state.Stage, decoded.Stage)
	require.Len(t, decoded.EntitiesExtracted, 1)

	person, ok := decoded.EntitiesExtracted[0].Entity.(domain.Person)
	require.True(t, ok, "expected decoded entity to be domain.Person, got %T", decoded.EntitiesExtracted[0].Entity)
	assert.Equal(t, "Ana", person.Name)
	assert.Equal(t, "librarian", person.Occupation)

	require.Len(t, decoded.EntitiesCurated, 1)
	place, ok := decoded.EntitiesCurated[0].(domain.Place)
	require.True(t, ok, "expected decoded entity to be domain.Place, got %T", decoded.EntitiesCurated[0])
	assert.Equal(t, "the library", place.Name)

	require.Len(t, decoded.RelationsExtracted, 1)
	payload, ok := decoded.RelationsExtracted[0].Payload.(domain.RelationPayload)
	require.True(t, ok, "expected decoded payload to be domain.RelationPayload, got %T", decoded.RelationsExtracted[0].Payload)
	assert.Equal(t, "p1", payload.SourceUUID)
	assert.Equal(t, "pl1", payload.TargetUUID)
}

func TestDecodeState_UnknownEntityDiscriminator(t *testing.T) {
	bad := []byte(`{
		"workflow_id": "x",
		"stage": "SUBMITTED",
		"journal_entry": null,
		"entities_curated": [{"type": "NotARealKind", "data": {}}]
	}`)
	_, err := DecodeState(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown entity discriminator")
}

func TestEncodeDecodeEntityPayload_RoundTrip(t *testing.T) {
	event := domain.Event{
		EntityBase: domain.EntityBase{UUID: "e1", Name: "Conference"},
		Date:       time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		Location:   "Buenos Aires",
	}
	data, err := EncodeEntityPayload(event)
	require.NoError(t, err)

	decoded, err := DecodeEntityPayload(data)
	require.NoError(t, err)

	got, ok := decoded.(domain.Event)
	require.True(t, ok)
	assert.Equal(t, "Conference", got.Name)
	assert.Equal(t, "Buenos Aires", got.Location)
}

func TestEncodeDecodeCuratablePayload_ConceptRelation(t *testing.T) {
	payload := domain.ConceptRelationPayload{
		SourceUUID:   "c1",
		TargetUUID:   "c2",
		Type:         domain.RelGeneralizes,
		SummaryShort: "c1 generalizes c2",
	}
	data, err := EncodeCuratablePayload(payload)
	require.NoError(t, err)

	decoded, err := DecodeCuratablePayload(domain.KindConceptRelation, data)
	require.NoError(t, err)

	got, ok := decoded.(domain.ConceptRelationPayload)
	require.True(t, ok)
	assert.Equal(t, domain.RelGeneralizes, got.Type)
}

func TestDecodeCuratablePayload_UnknownKind(t *testing.T) {
	_, err := DecodeCuratablePayload(domain.CurationKind("bogus"), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown curation payload discriminator")
}
