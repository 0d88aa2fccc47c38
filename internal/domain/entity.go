// Package domain holds Minerva's typed knowledge-graph model: entities,
// relations, journals, chunks/spans, curation items, and pipeline state.
// Every concrete type here is what the codec package reconstructs on the
// far side of a workflow suspension — nothing here is a bare map.
package domain

import "time"

// Partition tags every node in the graph store. Declared at creation and
// immutable thereafter.
type Partition string

const (
	PartitionDomain   Partition = "DOMAIN"
	PartitionLexical  Partition = "LEXICAL"
	PartitionTemporal Partition = "TEMPORAL"
)

// EntityType discriminates the polymorphic Entity variants. This is the
// tag the codec package writes alongside an encoded Entity and reads back
// to pick the concrete Go type to decode into.
type EntityType string

const (
	EntityPerson         EntityType = "Person"
	EntityPlace          EntityType = "Place"
	EntityConcept        EntityType = "Concept"
	EntityContent        EntityType = "Content"
	EntityConsumable     EntityType = "Consumable"
	EntityEvent          EntityType = "Event"
	EntityProject        EntityType = "Project"
	EntityEmotion        EntityType = "Emotion"
	EntityFeelingEmotion EntityType = "FeelingEmotion"
	EntityFeelingConcept EntityType = "FeelingConcept"
)

// ProjectStatus is the closed set of Project.status values.
type ProjectStatus string

const (
	ProjectNotStarted ProjectStatus = "not-started"
	ProjectActive     ProjectStatus = "active"
	ProjectOnHold     ProjectStatus = "on-hold"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// EntityBase carries the fields every Entity variant shares: name, both
// summary lengths, creation time, and an optional embedding vector.
type EntityBase struct {
	UUID         string    `json:"uuid"`
	Partition    Partition `json:"partition"`
	Name         string    `json:"name"`
	SummaryShort string    `json:"summary_short"` // <= 30 words
	SummaryLong  string    `json:"summary_long"`  // <= 100 words
	CreatedAt    time.Time `json:"created_at"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

// Entity is the sum type over every concrete entity variant. It is a Go
// interface, not a tagged struct: each variant below is a distinct type so
// reusing one entity's UUID under a different type is a compiler-visible
// type mismatch, not a field left zero. The codec package knows how to tag
// and reconstruct the variant across a suspension boundary.
type Entity interface {
	Base() EntityBase
	Kind() EntityType
}

// Person is a Person entity.
type Person struct {
	EntityBase
	Occupation string `json:"occupation,omitempty"`
}

func (p Person) Base() EntityBase { return p.EntityBase }
func (p Person) Kind() EntityType { return EntityPerson }

// Place is a Place entity.
type Place struct {
	EntityBase
}

func (p Place) Base() EntityBase { return p.EntityBase }
func (p Place) Kind() EntityType { return EntityPlace }

// Concept is a Concept entity.
type Concept struct {
	EntityBase
}

func (c Concept) Base() EntityBase { return c.EntityBase }
func (c Concept) Kind() EntityType { return EntityConcept }

// Content is a book/article/video entity.
type Content struct {
	EntityBase
}

func (c Content) Base() EntityBase { return c.EntityBase }
func (c Content) Kind() EntityType { return EntityContent }

// Consumable is a Consumable entity.
type Consumable struct {
	EntityBase
}

func (c Consumable) Base() EntityBase { return c.EntityBase }
func (c Consumable) Kind() EntityType { return EntityConsumable }

// Event is an Event entity with a date, duration, and location.
type Event struct {
	EntityBase
	Date     time.Time     `json:"date"`
	Duration time.Duration `json:"duration,omitempty"`
	Location string        `json:"location,omitempty"`
}

func (e Event) Base() EntityBase { return e.EntityBase }
func (e Event) Kind() EntityType { return EntityEvent }

// Project is a Project entity with a closed-set status.
type Project struct {
	EntityBase
	Status ProjectStatus `json:"status"`
}

func (p Project) Base() EntityBase { return p.EntityBase }
func (p Project) Kind() EntityType { return EntityProject }

// Emotion is an Emotion *type*, not an instance.
type Emotion struct {
	EntityBase
}

func (e Emotion) Base() EntityBase { return e.EntityBase }
func (e Emotion) Kind() EntityType { return EntityEmotion }

// FeelingEmotion is an instance of someone feeling an emotion at a time.
type FeelingEmotion struct {
	EntityBase
	PersonUUID  string    `json:"person_uuid"`
	EmotionType string    `json:"emotion_type"` // closed enum, see EmotionVocabulary
	FeelingAt   time.Time `json:"feeling_at"`
}

func (f FeelingEmotion) Base() EntityBase { return f.EntityBase }
func (f FeelingEmotion) Kind() EntityType { return EntityFeelingEmotion }

// FeelingConcept is someone holding a view of a concept.
type FeelingConcept struct {
	EntityBase
	PersonUUID  string `json:"person_uuid"`
	ConceptUUID string `json:"concept_uuid"`
	Stance      string `json:"stance,omitempty"`
}

func (f FeelingConcept) Base() EntityBase { return f.EntityBase }
func (f FeelingConcept) Kind() EntityType { return EntityFeelingConcept }

// EmotionVocabulary is the closed set of Emotion-type strings a
// FeelingEmotion may reference.
var EmotionVocabulary = map[string]bool{
	"joy": true, "sadness": true, "anger": true, "fear": true,
	"surprise": true, "disgust": true, "trust": true, "anticipation": true,
	"shame": true, "guilt": true, "pride": true, "gratitude": true,
	"love": true, "contempt": true, "anxiety": true, "relief": true,
	"boredom": true, "curiosity": true, "loneliness": true, "contentment": true,
}

// IsValidEmotion reports whether s is in EmotionVocabulary. The match is
// case-sensitive and every vocabulary entry is lowercase; s is not
// normalized before the lookup.
func IsValidEmotion(s string) bool { return EmotionVocabulary[s] }
