package domain

import (
	"encoding/json"
	"time"
)

// CurationKind is the kind of item sitting in the curation queue.
type CurationKind string

const (
	KindEntity         CurationKind = "entity"
	KindRelation       CurationKind = "relation"
	KindFeelingEmotion CurationKind = "feeling_emotion"
	KindFeelingConcept CurationKind = "feeling_concept"
	KindConceptRelation CurationKind = "concept_relation"
)

// CurationStatus is a CurationItem's decision state.
type CurationStatus string

const (
	StatusPending  CurationStatus = "pending"
	StatusApproved CurationStatus = "approved"
	StatusRejected CurationStatus = "rejected"
	StatusEdited   CurationStatus = "edited"
)

// CurationPhase gates a journal's progression: entity-kind items gate the
// entity phase, every other kind gates the relation phase.
type CurationPhase string

const (
	PhaseEntity   CurationPhase = "entity"
	PhaseRelation CurationPhase = "relation"
	PhaseComplete CurationPhase = "complete"
)

// PhaseForKind returns which phase a CurationItem of the given kind gates.
func PhaseForKind(k CurationKind) CurationPhase {
	if k == KindEntity {
		return PhaseEntity
	}
	return PhaseRelation
}

// CurationItem is one row in the curation store. Payload/Spans/Context are
// stored as opaque, codec-encoded JSON so the store never needs to know
// the concrete extraction types.
type CurationItem struct {
	ID             string          `json:"id"`
	JournalID      string          `json:"journal_id"`
	Phase          CurationPhase   `json:"phase"`
	Kind           CurationKind    `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	Spans          json.RawMessage `json:"spans"`
	Context        json.RawMessage `json:"context,omitempty"`
	Status         CurationStatus  `json:"status"`
	CuratedPayload json.RawMessage `json:"curated_payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty"`
}

// Decision is the human input to CurationStore.Decide.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionEdit    Decision = "edit"
)
