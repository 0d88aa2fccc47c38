package graphstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/alexelgier/minerva/internal/domain"
)

// CreateEdgeOnly merges a direct RELATED_TO edge between src and tgt with
// no reified Relation node, carrying proposedTypes for later curation.
// Returns the edge's own UUID.
func (s *Store) CreateEdgeOnly(ctx context.Context, src, tgt string, proposedTypes []string) (string, error) {
	edgeUUID := uuid.NewString()

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
MATCH (a {uuid: $src}), (b {uuid: $tgt})
MERGE (a)-[r:RELATED_TO {uuid: $edgeUUID}]->(b)
SET r.proposed_types = $proposedTypes`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{
			"src": src, "tgt": tgt, "edgeUUID": edgeUUID, "proposedTypes": proposedTypes,
		})
		return nil, err
	})
	if err != nil {
		return "", wrapErr("create_edge_only", err)
	}
	return edgeUUID, nil
}

// CreateFullRelation creates the direct RELATED_TO edge, the reified
// Relation node sharing r.EdgeUUID, and the two HAS_RELATION links
// between the edge's endpoints and the Relation node. Re-running with the
// same r.UUID and r.EdgeUUID is a no-op: both MERGE clauses key on those
// UUIDs, so retrying after a partial DB_WRITE failure cannot duplicate
// either side.
func (s *Store) CreateFullRelation(ctx context.Context, r domain.Relation) (nodeUUID, edgeUUID string, err error) {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
MATCH (a {uuid: $src}), (b {uuid: $tgt})
MERGE (a)-[e:RELATED_TO {uuid: $edgeUUID}]->(b)
SET e.type = $type, e.summary_short = $summaryShort, e.created_at = $createdAt, e.updated_at = $updatedAt
MERGE (rel:Relation {uuid: $relUUID})
SET rel.edge_uuid = $edgeUUID,
    rel.type = $type,
    rel.summary_short = $summaryShort,
    rel.created_at = $createdAt,
    rel.updated_at = $updatedAt
MERGE (a)-[:HAS_RELATION]->(rel)
MERGE (rel)-[:HAS_RELATION]->(b)`

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{
			"src": r.SourceUUID, "tgt": r.TargetUUID,
			"edgeUUID": r.EdgeUUID, "relUUID": r.UUID,
			"type": r.Type, "summaryShort": r.SummaryShort,
			"createdAt": r.CreatedAt, "updatedAt": r.UpdatedAt,
		})
		return nil, err
	})
	if err != nil {
		return "", "", wrapErr("create_full_relation", err)
	}
	return r.UUID, r.EdgeUUID, nil
}

// CreateConceptRelation merges a direct, typed edge between two Concept
// nodes. relType must be one of the closed ConceptRelationType values;
// Neo4j's Cypher has no parameter slot for a relationship type, so the
// caller (DB_WRITE) is responsible for validating relType against
// domain.IsValidConceptRelationType before calling this, the same way
// entityParams trusts its caller never to pass an unrecognized Entity.
// MERGE keys on (source, target, type) so re-running DB_WRITE after a
// partial failure cannot create a duplicate edge.
func (s *Store) CreateConceptRelation(ctx context.Context, srcUUID, tgtUUID string, relType domain.ConceptRelationType, summaryShort string) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
MATCH (a:Concept {uuid: $src}), (b:Concept {uuid: $tgt})
MERGE (a)-[r:` + string(relType) + ` {source_uuid: $src, target_uuid: $tgt}]->(b)
SET r.summary_short = $summaryShort`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{
			"src": srcUUID, "tgt": tgtUUID, "summaryShort": summaryShort,
		})
		return nil, err
	})
	return wrapErr("create_concept_relation", err)
}

// RelationPatch is the set of fields UpdateRelation may change. Zero
// values mean "leave unchanged" — callers set only what they intend to
// change, per the SummaryShort/Type fields actually used in curation.
type RelationPatch struct {
	Type         string
	SummaryShort string
	UpdatedAt    any
}

// UpdateRelation updates the Relation node's mutable fields and mirrors
// {type, summary_short, updated_at} onto its direct edge, keeping both
// representations in agreement.
func (s *Store) UpdateRelation(ctx context.Context, relUUID string, patch RelationPatch) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
MATCH (rel:Relation {uuid: $relUUID})
SET rel.type = coalesce($type, rel.type),
    rel.summary_short = coalesce($summaryShort, rel.summary_short),
    rel.updated_at = coalesce($updatedAt, rel.updated_at)
WITH rel
MATCH ()-[e:RELATED_TO {uuid: rel.edge_uuid}]->()
SET e.type = rel.type, e.summary_short = rel.summary_short, e.updated_at = rel.updated_at`

	var relType, summaryShort any
	if patch.Type != "" {
		relType = patch.Type
	}
	if patch.SummaryShort != "" {
		summaryShort = patch.SummaryShort
	}
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{
			"relUUID": relUUID, "type": relType,
			"summaryShort": summaryShort, "updatedAt": patch.UpdatedAt,
		})
		return nil, err
	})
	return wrapErr("update_relation", err)
}

// DeleteRelation deletes the Relation node identified by relUUID along
// with the direct edge carrying its edge_uuid, leaving zero edges with
// that UUID.
func (s *Store) DeleteRelation(ctx context.Context, relUUID string) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
MATCH (rel:Relation {uuid: $relUUID})
OPTIONAL MATCH ()-[e:RELATED_TO {uuid: rel.edge_uuid}]->()
DELETE e
DETACH DELETE rel`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"relUUID": relUUID})
		return nil, err
	})
	return wrapErr("delete_relation", err)
}
