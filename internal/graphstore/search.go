package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ScoredNode is one hit from a vector similarity search: the node's UUID,
// its label, and the similarity score.
type ScoredNode struct {
	UUID  string
	Label string
	Score float64
}

// VectorSearch queries the vector index named "<label>_embeddings_index"
// (lowercased) for the k nearest neighbors of embedding, keeping only
// hits scoring at or above threshold.
func (s *Store) VectorSearch(ctx context.Context, label string, embedding []float32, k int, threshold float64) ([]ScoredNode, error) {
	indexName := fmt.Sprintf("%s_embeddings_index", toSnakeLower(label))

	session := s.readSession(ctx)
	defer session.Close(ctx)

	query := `
CALL db.index.vector.queryNodes($indexName, $k, $embedding)
YIELD node, score
WHERE score >= $threshold
RETURN node.uuid as uuid, score as score`

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"indexName": indexName, "k": k, "embedding": embedding, "threshold": threshold,
		})
		if err != nil {
			return nil, err
		}
		var hits []ScoredNode
		for res.Next(ctx) {
			rec := res.Record()
			uuidVal, _ := rec.Get("uuid")
			scoreVal, _ := rec.Get("score")
			hits = append(hits, ScoredNode{
				UUID:  uuidVal.(string),
				Label: label,
				Score: scoreVal.(float64),
			})
		}
		return hits, res.Err()
	})
	if err != nil {
		return nil, wrapErr("vector_search", err)
	}
	return result.([]ScoredNode), nil
}

func toSnakeLower(label string) string {
	out := make([]byte, 0, len(label)*2)
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			c = c - 'A' + 'a'
		}
		out = append(out, c)
	}
	return string(out)
}
