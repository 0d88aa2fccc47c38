package graphstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/alexelgier/minerva/internal/domain"
)

// CreateEntity upserts e by UUID under the label matching its concrete
// type. Re-running with the same UUID is a no-op beyond refreshing
// properties — it never creates a duplicate node or changes the node's
// label.
func (s *Store) CreateEntity(ctx context.Context, e domain.Entity) (string, error) {
	base := e.Base()
	params := entityParams(e)

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `MERGE (n:` + string(e.Kind()) + ` {uuid: $uuid})
SET n += $props
RETURN n.uuid as uuid`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"uuid": base.UUID, "props": params})
		return nil, err
	})
	if err != nil {
		return "", wrapErr("create_entity", err)
	}
	return base.UUID, nil
}

// entityParams flattens an Entity's base fields plus its variant-specific
// fields into the property map MERGE ... SET n += $props writes. Known
// variant fields only — there is no fallback to reflection, since an
// unrecognized Entity implementation is a programmer error, not a data
// condition to tolerate.
func entityParams(e domain.Entity) map[string]any {
	base := e.Base()
	props := map[string]any{
		"uuid":          base.UUID,
		"partition":     string(base.Partition),
		"name":          base.Name,
		"summary_short": base.SummaryShort,
		"summary_long":  base.SummaryLong,
		"created_at":    base.CreatedAt,
	}
	if len(base.Embedding) > 0 {
		props["embedding"] = base.Embedding
	}

	switch v := e.(type) {
	case domain.Person:
		if v.Occupation != "" {
			props["occupation"] = v.Occupation
		}
	case domain.Event:
		props["date"] = v.Date
		if v.Duration > 0 {
			props["duration_seconds"] = v.Duration.Seconds()
		}
		if v.Location != "" {
			props["location"] = v.Location
		}
	case domain.Project:
		props["status"] = string(v.Status)
	case domain.FeelingEmotion:
		props["person_uuid"] = v.PersonUUID
		props["emotion_type"] = v.EmotionType
		props["feeling_at"] = v.FeelingAt
	case domain.FeelingConcept:
		props["person_uuid"] = v.PersonUUID
		props["concept_uuid"] = v.ConceptUUID
		if v.Stance != "" {
			props["stance"] = v.Stance
		}
	}
	return props
}
