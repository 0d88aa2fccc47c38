package graphstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/alexelgier/minerva/internal/domain"
)

// CreateMentionsBatch merges a (Chunk)-[:MENTIONS]->(Entity|Relation) edge
// for every mention in one transaction. UNWIND keeps this a single round
// trip regardless of batch size.
func (s *Store) CreateMentionsBatch(ctx context.Context, mentions []domain.Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	rows := make([]map[string]any, len(mentions))
	for i, m := range mentions {
		rows[i] = map[string]any{"chunkUUID": m.ChunkUUID, "targetUUID": m.TargetUUID}
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
UNWIND $rows as row
MATCH (c:Chunk {uuid: row.chunkUUID})
MATCH (t {uuid: row.targetUUID})
MERGE (c)-[:MENTIONS]->(t)`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		return nil, err
	})
	return wrapErr("create_mentions_batch", err)
}
