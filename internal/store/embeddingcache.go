package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings"
	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/alexelgier/minerva/internal/domain"
)

const embeddingMapSchema = `
CREATE TABLE IF NOT EXISTS embedding_sources (
	rowid        INTEGER PRIMARY KEY,
	uuid         TEXT NOT NULL UNIQUE,
	content_hash TEXT NOT NULL,
	cached_at    TEXT NOT NULL
);
`

// EmbeddingCache is C8's local mirror of vault-note embeddings: a sqlite
// vec0 virtual table keyed by the same rowid as embedding_sources, the
// side table that records which content hash a cached vector belongs to
// so a caller can skip re-embedding a note whose text has not changed.
// It doubles as a local vector index, usable as a fallback
// extraction.GraphSearch implementation when the graph store's native
// index is unavailable (tests, or a graph store running without the
// Concept/Quote vector indexes provisioned yet).
type EmbeddingCache struct {
	mu  sync.RWMutex
	db  *sql.DB
	dim int
}

// OpenEmbeddingCache opens (or creates) the sqlite database at path,
// sized for dim-dimensional embeddings (the configured EMBEDDING_MODEL's
// output width).
func OpenEmbeddingCache(path string, dim int) (*EmbeddingCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrConfig, "store: open embedding cache", err)
	}
	if _, err := db.Exec(embeddingMapSchema); err != nil {
		db.Close()
		return nil, domain.NewPipelineError(domain.ErrConfig, "store: apply embedding cache schema", err)
	}
	vecSchema := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_items USING vec0(embedding float[%d])`, dim)
	if _, err := db.Exec(vecSchema); err != nil {
		db.Close()
		return nil, domain.NewPipelineError(domain.ErrConfig, "store: create vec0 table", err)
	}
	return &EmbeddingCache{db: db, dim: dim}, nil
}

// Close closes the underlying database handle.
func (c *EmbeddingCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// Stale reports whether uuid has no cached embedding, or its cached one
// was computed from different text (contentHash mismatch) — either way,
// the caller should call Embed and then Put.
func (c *EmbeddingCache) Stale(ctx context.Context, uuid, contentHash string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var cached string
	err := c.db.QueryRowContext(ctx, `SELECT content_hash FROM embedding_sources WHERE uuid = ?`, uuid).Scan(&cached)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, domain.NewPipelineError(domain.ErrTransport, "store: embedding cache stale check", err)
	}
	return cached != contentHash, nil
}

// Put stores (or replaces) uuid's cached embedding and content hash.
func (c *EmbeddingCache) Put(ctx context.Context, uuid, contentHash string, embedding []float32) error {
	if len(embedding) != c.dim {
		return domain.NewPipelineError(domain.ErrSchema,
			fmt.Sprintf("store: embedding cache: expected %d dims, got %d", c.dim, len(embedding)), nil)
	}
	raw, err := sqlitevec.SerializeFloat32(embedding)
	if err != nil {
		return domain.NewPipelineError(domain.ErrSchema, "store: serialize embedding", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "store: embedding cache put begin tx", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx, `SELECT rowid FROM embedding_sources WHERE uuid = ?`, uuid).Scan(&rowID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx, `
			INSERT INTO embedding_sources (uuid, content_hash, cached_at) VALUES (?, ?, ?)`,
			uuid, contentHash, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return domain.NewPipelineError(domain.ErrTransport, "store: embedding cache insert source", err)
		}
		rowID, err = res.LastInsertId()
		if err != nil {
			return domain.NewPipelineError(domain.ErrTransport, "store: embedding cache read rowid", err)
		}
	case err != nil:
		return domain.NewPipelineError(domain.ErrTransport, "store: embedding cache lookup source", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE embedding_sources SET content_hash = ?, cached_at = ? WHERE rowid = ?`,
			contentHash, time.Now().UTC().Format(time.RFC3339Nano), rowID); err != nil {
			return domain.NewPipelineError(domain.ErrTransport, "store: embedding cache update source", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_items WHERE rowid = ?`, rowID); err != nil {
			return domain.NewPipelineError(domain.ErrTransport, "store: embedding cache clear stale vector", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO vec_items (rowid, embedding) VALUES (?, ?)`, rowID, raw); err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "store: embedding cache insert vector", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.NewPipelineError(domain.ErrTransport, "store: embedding cache put commit", err)
	}
	return nil
}

// EmbeddingMatch is one nearest-neighbor hit: a cached UUID and its
// distance to the query vector (lower is more similar).
type EmbeddingMatch struct {
	UUID     string
	Distance float64
}

// Nearest returns up to k UUIDs whose cached embedding is closest to
// embedding, ascending by distance.
func (c *EmbeddingCache) Nearest(ctx context.Context, embedding []float32, k int) ([]EmbeddingMatch, error) {
	raw, err := sqlitevec.SerializeFloat32(embedding)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrSchema, "store: serialize query embedding", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.QueryContext(ctx, `
		SELECT s.uuid, v.distance
		FROM vec_items v
		JOIN embedding_sources s ON s.rowid = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`, raw, k)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrTransport, "store: embedding cache nearest", err)
	}
	defer rows.Close()

	var out []EmbeddingMatch
	for rows.Next() {
		var m EmbeddingMatch
		if err := rows.Scan(&m.UUID, &m.Distance); err != nil {
			return nil, fmt.Errorf("store: embedding cache scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// VectorSearch implements extraction.GraphSearch (and the orchestrator's
// fallbackGraphSearch primary/secondary shape) over the local cache,
// ignoring label since this cache holds one flat pool of vectors rather
// than Neo4j's per-label indexes. vec0 returns a distance, so each hit's
// Score is 1 - distance, and hits scoring below threshold are dropped.
func (c *EmbeddingCache) VectorSearch(ctx context.Context, label string, embedding []float32, k int, threshold float64) ([]ScoredNode, error) {
	matches, err := c.Nearest(ctx, embedding, k)
	if err != nil {
		return nil, err
	}
	var out []ScoredNode
	for _, m := range matches {
		score := 1 - m.Distance
		if score < threshold {
			continue
		}
		out = append(out, ScoredNode{UUID: m.UUID, Label: label, Score: score})
	}
	return out, nil
}

// ScoredNode mirrors graphstore.ScoredNode/extraction.ScoredNode's shape
// so EmbeddingCache can be used in place of either without this package
// importing them (it sits below both in the dependency graph).
type ScoredNode struct {
	UUID  string
	Label string
	Score float64
}
