package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage is a state in the per-journal durable state machine.
type Stage string

const (
	StageSubmitted              Stage = "SUBMITTED"
	StageEntityProcessing       Stage = "ENTITY_PROCESSING"
	StageSubmitEntityCuration   Stage = "SUBMIT_ENTITY_CURATION"
	StageWaitEntityCuration     Stage = "WAIT_ENTITY_CURATION"
	StageRelationProcessing     Stage = "RELATION_PROCESSING"
	StageSubmitRelationCuration Stage = "SUBMIT_RELATION_CURATION"
	StageWaitRelationCuration   Stage = "WAIT_RELATION_CURATION"
	StageDBWrite                Stage = "DB_WRITE"
	StageCompleted              Stage = "COMPLETED"
	StageCancelled              Stage = "CANCELLED"
	StageFailed                 Stage = "FAILED"
)

// PipelineState is the per-workflow durable checkpoint. Every field here
// must survive a JSON round trip through internal/codec with its concrete type
// intact: EntityMappings and CuratableMappings stay typed, never decay to
// map[string]interface{}.
type PipelineState struct {
	WorkflowID   string        `json:"workflow_id"`
	Stage        Stage         `json:"stage"`
	JournalEntry *JournalEntry `json:"journal_entry"`

	EntitiesExtracted  []EntityMapping    `json:"entities_extracted,omitempty"`
	EntitiesCurated    []Entity           `json:"entities_curated,omitempty"`
	RelationsExtracted []CuratableMapping `json:"relations_extracted,omitempty"`
	RelationsCurated   []CuratableMapping `json:"relations_curated,omitempty"`

	Chunks []Chunk `json:"chunks,omitempty"`

	ErrorCount int       `json:"error_count"`
	LastError  string    `json:"last_error,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MarshalJSON encodes the state, tagging EntitiesCurated entries with their
// concrete EntityType so UnmarshalJSON can reconstruct them.
func (s PipelineState) MarshalJSON() ([]byte, error) {
	type alias PipelineState
	curated := make([]taggedEntity, len(s.EntitiesCurated))
	for i, e := range s.EntitiesCurated {
		tagged, err := encodeEntity(e)
		if err != nil {
			return nil, fmt.Errorf("domain: encode EntitiesCurated[%d]: %w", i, err)
		}
		curated[i] = tagged
	}
	return json.Marshal(struct {
		alias
		EntitiesCurated []taggedEntity `json:"entities_curated,omitempty"`
	}{alias: alias(s), EntitiesCurated: curated})
}

// UnmarshalJSON decodes the state, reconstructing each EntitiesCurated
// entry's concrete Entity type from its discriminator. An unrecognized
// discriminator is an error, never a silent map.
func (s *PipelineState) UnmarshalJSON(data []byte) error {
	type alias PipelineState
	aux := struct {
		*alias
		EntitiesCurated []taggedEntity `json:"entities_curated,omitempty"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	curated := make([]Entity, len(aux.EntitiesCurated))
	for i, tagged := range aux.EntitiesCurated {
		e, err := tagged.decode()
		if err != nil {
			return fmt.Errorf("domain: decode EntitiesCurated[%d]: %w", i, err)
		}
		curated[i] = e
	}
	s.EntitiesCurated = curated
	return nil
}

// EntityMapping is a (entity, spans) pair produced by an extraction stage.
// It is one of the two TypedMapping variants, the other being
// CuratableMapping.
type EntityMapping struct {
	Entity Entity `json:"entity"`
	Spans  []Span `json:"spans"`
}

// MarshalJSON tags Entity with its concrete EntityType so UnmarshalJSON can
// reconstruct the same Go type on the way back.
func (m EntityMapping) MarshalJSON() ([]byte, error) {
	tagged, err := encodeEntity(m.Entity)
	if err != nil {
		return nil, fmt.Errorf("domain: encode EntityMapping.Entity: %w", err)
	}
	return json.Marshal(struct {
		Entity taggedEntity `json:"entity"`
		Spans  []Span       `json:"spans"`
	}{Entity: tagged, Spans: m.Spans})
}

// UnmarshalJSON reconstructs the concrete Entity type from its tag. An
// unrecognized EntityType is an error, not a silent map.
func (m *EntityMapping) UnmarshalJSON(data []byte) error {
	var aux struct {
		Entity taggedEntity `json:"entity"`
		Spans  []Span       `json:"spans"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e, err := aux.Entity.decode()
	if err != nil {
		return fmt.Errorf("domain: decode EntityMapping.Entity: %w", err)
	}
	m.Entity = e
	m.Spans = aux.Spans
	return nil
}

// taggedEntity is the on-the-wire shape for an Entity: a type tag alongside
// the concrete struct's own JSON encoding.
type taggedEntity struct {
	Type EntityType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

func encodeEntity(e Entity) (taggedEntity, error) {
	if e == nil {
		return taggedEntity{}, fmt.Errorf("domain: nil Entity")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return taggedEntity{}, err
	}
	return taggedEntity{Type: e.Kind(), Data: data}, nil
}

func (t taggedEntity) decode() (Entity, error) {
	switch t.Type {
	case EntityPerson:
		var v Person
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EntityPlace:
		var v Place
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EntityConcept:
		var v Concept
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EntityContent:
		var v Content
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EntityConsumable:
		var v Consumable
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EntityEvent:
		var v Event
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EntityProject:
		var v Project
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EntityEmotion:
		var v Emotion
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EntityFeelingEmotion:
		var v FeelingEmotion
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EntityFeelingConcept:
		var v FeelingConcept
		if err := json.Unmarshal(t.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("domain: unknown entity discriminator %q", t.Type)
	}
}

// CuratableMapping is the other TypedMapping variant: a kind-tagged payload
// plus spans and optional context (extra entity UUIDs referenced by the
// payload). Relation, FeelingEmotion, FeelingConcept, and ConceptRelation
// extraction results all travel as CuratableMapping; Kind picks which
// concrete payload type Payload decodes to.
type CuratableMapping struct {
	// ID is the originating extraction stage's synthetic identifier for
	// this mapping (stable across retries of the same ENTITY_PROCESSING
	// or RELATION_PROCESSING run). DB_WRITE derives deterministic UUIDs
	// for relation and feeling-entity nodes from it via uuid.NewSHA1, so
	// a retried write after partial failure mints the same UUID rather
	// than a fresh random one.
	ID      string       `json:"id,omitempty"`
	Kind    CurationKind `json:"kind"`
	Payload any          `json:"payload"`
	Spans   []Span       `json:"spans"`
	Context []string     `json:"context,omitempty"`
}

// MarshalJSON encodes Payload as-is; Kind is the discriminator
// UnmarshalJSON uses to pick the concrete payload type back out.
func (m CuratableMapping) MarshalJSON() ([]byte, error) {
	type alias CuratableMapping
	return json.Marshal(alias(m))
}

// UnmarshalJSON decodes Payload into the concrete payload type named by
// Kind. An unrecognized Kind is an error, never a silent map.
func (m *CuratableMapping) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID      string          `json:"id,omitempty"`
		Kind    CurationKind    `json:"kind"`
		Payload json.RawMessage `json:"payload"`
		Spans   []Span          `json:"spans"`
		Context []string        `json:"context,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	payload, err := decodeCuratablePayload(aux.Kind, aux.Payload)
	if err != nil {
		return fmt.Errorf("domain: decode CuratableMapping.Payload: %w", err)
	}
	m.ID = aux.ID
	m.Kind = aux.Kind
	m.Payload = payload
	m.Spans = aux.Spans
	m.Context = aux.Context
	return nil
}

func decodeCuratablePayload(kind CurationKind, data json.RawMessage) (any, error) {
	switch kind {
	case KindRelation:
		var v RelationPayload
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindFeelingEmotion:
		var v FeelingEmotionPayload
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindFeelingConcept:
		var v FeelingConceptPayload
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindConceptRelation:
		var v ConceptRelationPayload
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("domain: unknown curation payload discriminator %q", kind)
	}
}

// EncodeEntity produces the tagged wire form of an Entity, for callers
// outside this package that need to store or transmit a single entity
// value (the curation store's Payload column, for one).
func EncodeEntity(e Entity) (json.RawMessage, error) {
	tagged, err := encodeEntity(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tagged)
}

// DecodeEntity reconstructs an Entity from bytes produced by EncodeEntity.
// An unrecognized discriminator is an error, never a silent map.
func DecodeEntity(data json.RawMessage) (Entity, error) {
	var tagged taggedEntity
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, err
	}
	return tagged.decode()
}

// DecodeCuratablePayload reconstructs the concrete payload type for a
// CuratableMapping.Payload stored opaquely (e.g. in a CurationItem row),
// given its CurationKind. An unrecognized kind is an error.
func DecodeCuratablePayload(kind CurationKind, data json.RawMessage) (any, error) {
	return decodeCuratablePayload(kind, data)
}

// WorkflowID derives the stable workflow identifier from a journal's date
// and UUID. Submitting a journal whose workflow already exists is a no-op,
// not a duplicate workflow.
func WorkflowID(date, journalUUID string) string {
	return date + ":" + journalUUID
}

// WorkflowStatus is the user-visible projection of a PipelineState exposed
// by the orchestrator's status query and by minervactl status.
type WorkflowStatus struct {
	WorkflowID   string    `json:"workflow_id"`
	Stage        Stage     `json:"stage"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ShortMessage string    `json:"short_message,omitempty"`
	Counts       Counts    `json:"counts"`
}

// Counts summarizes a completed or in-flight workflow's output.
type Counts struct {
	EntitiesExtracted  int `json:"entities_extracted"`
	EntitiesCommitted  int `json:"entities_committed"`
	RelationsExtracted int `json:"relations_extracted"`
	RelationsCommitted int `json:"relations_committed"`
}
