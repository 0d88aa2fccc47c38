// Package graphstore is the typed adapter in front of the labeled
// property graph: no raw Cypher leaks past this package. Every write is
// idempotent by UUID so the orchestrator can safely retry DB_WRITE after
// a partial failure.
package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/alexelgier/minerva/internal/domain"
)

// Store is the Graph Store Adapter.
type Store struct {
	driver neo4j.DriverWithContext
}

// New connects to the graph database at uri and verifies connectivity
// before returning.
func New(ctx context.Context, uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrConfig, "graphstore: create driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, domain.NewPipelineError(domain.ErrConfig, "graphstore: connect", err)
	}
	return &Store{driver: driver}, nil
}

// Close releases the underlying driver's connections.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

func (s *Store) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewPipelineError(domain.ErrTransport, fmt.Sprintf("graphstore: %s", op), err)
}
