package graphstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/alexelgier/minerva/internal/domain"
)

// CreateChunkTree persists every chunk in chunks under journalUUID in one
// transaction: a Chunk node per entry, a (JournalEntry)-[:HAS_CHUNK]->(root
// leaf/interior chunks with no parent), a (parent)-[:CONTAINS]->(child)
// edge per Children entry, and a (chunk)-[:NEXT_SIBLING]->(next) edge
// where NextSibling is set. MERGE on uuid throughout, so retrying
// DB_WRITE after a partial failure cannot duplicate nodes or edges.
func (s *Store) CreateChunkTree(ctx context.Context, journalUUID string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		rows[i] = map[string]any{
			"uuid":        c.UUID,
			"start":       c.Span.Start,
			"end":         c.Span.End,
			"text":        c.Span.Text,
			"isLeaf":      c.IsLeaf,
			"parentUUID":  c.ParentUUID,
			"nextSibling": c.NextSibling,
		}
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
MATCH (j:JournalEntry {uuid: $journalUUID})
UNWIND $rows as row
MERGE (c:Chunk {uuid: row.uuid})
SET c.start = row.start, c.end = row.end, c.text = row.text, c.is_leaf = row.isLeaf
WITH j, c, row
FOREACH (_ IN CASE WHEN row.parentUUID = "" THEN [1] ELSE [] END |
  MERGE (j)-[:HAS_CHUNK]->(c))
WITH j, c, row
FOREACH (_ IN CASE WHEN row.parentUUID <> "" THEN [1] ELSE [] END |
  MERGE (p:Chunk {uuid: row.parentUUID})
  MERGE (p)-[:CONTAINS]->(c))
WITH c, row
FOREACH (_ IN CASE WHEN row.nextSibling <> "" THEN [1] ELSE [] END |
  MERGE (n:Chunk {uuid: row.nextSibling})
  MERGE (c)-[:NEXT_SIBLING]->(n))`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"journalUUID": journalUUID, "rows": rows})
		return nil, err
	})
	return wrapErr("create_chunk_tree", err)
}
