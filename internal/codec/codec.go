// Package codec is the only place PipelineState crosses a JSON boundary:
// into the orchestrator's checkpoint store and back out across a
// suspension. It exists so that boundary stays in one auditable spot
// instead of scattered json.Marshal calls, and so every decode failure
// surfaces as a domain.ErrConsistency-classified PipelineError rather than a
// bare encoding/json error.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/alexelgier/minerva/internal/domain"
)

// EncodeState serializes a PipelineState to its durable checkpoint form.
// PipelineState.MarshalJSON already tags every polymorphic Entity with its
// concrete type, so the result decodes back without ambiguity.
func EncodeState(s *domain.PipelineState) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrConsistency, "encode pipeline state", err)
	}
	return data, nil
}

// DecodeState reconstructs a PipelineState from its checkpoint bytes. Any
// unrecognized entity or payload discriminator inside the blob fails the
// whole decode rather than falling back to a generic map.
func DecodeState(data []byte) (*domain.PipelineState, error) {
	var s domain.PipelineState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, domain.NewPipelineError(domain.ErrConsistency, "decode pipeline state", err)
	}
	return &s, nil
}

// EncodeEntityPayload serializes an Entity for storage in a CurationItem
// of kind=entity. The result carries its own type tag, so
// DecodeEntityPayload never needs the CurationItem.Kind column to know
// which concrete struct to build.
func EncodeEntityPayload(e domain.Entity) (json.RawMessage, error) {
	data, err := domain.EncodeEntity(e)
	if err != nil {
		return nil, fmt.Errorf("codec: encode entity payload: %w", err)
	}
	return data, nil
}

// DecodeEntityPayload is the inverse of EncodeEntityPayload.
func DecodeEntityPayload(data json.RawMessage) (domain.Entity, error) {
	e, err := domain.DecodeEntity(data)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrConsistency, "codec: decode entity payload", err)
	}
	return e, nil
}

// EncodeCuratablePayload serializes a relation-shaped payload (one of
// domain's RelationPayload / FeelingEmotionPayload / FeelingConceptPayload
// / ConceptRelationPayload) for storage in a CurationItem. Kind is stored
// separately on the row and must be passed back into
// DecodeCuratablePayload to reconstruct the right concrete type.
func EncodeCuratablePayload(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode curatable payload: %w", err)
	}
	return data, nil
}

// DecodeCuratablePayload reconstructs the concrete payload type named by
// kind. An unrecognized kind is an error, never a silent map.
func DecodeCuratablePayload(kind domain.CurationKind, data json.RawMessage) (any, error) {
	v, err := domain.DecodeCuratablePayload(kind, data)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrConsistency, "codec: decode curatable payload", err)
	}
	return v, nil
}
