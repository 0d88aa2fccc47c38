package graphstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/alexelgier/minerva/internal/domain"
)

// UpsertDay merges the Year/Month/Day chain for date (YYYY-MM-DD) and
// returns the Day node's UUID (deterministic: the date string itself, so
// repeated calls are idempotent by construction).
func (s *Store) UpsertDay(ctx context.Context, date string) (string, error) {
	year, month, err := splitDate(date)
	if err != nil {
		return "", domain.NewPipelineError(domain.ErrSchema, "graphstore: upsert_day: malformed date", err)
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
MERGE (y:Year {value: $year})
MERGE (m:Month {value: $month, year: $year})
MERGE (y)-[:HAS_MONTH]->(m)
MERGE (d:Day {date: $date})
MERGE (m)-[:HAS_DAY]->(d)
RETURN d.date as date`

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"year": year, "month": month, "date": date})
		return nil, err
	})
	if err != nil {
		return "", wrapErr("upsert_day", err)
	}
	return date, nil
}

// LinkJournalToDay merges a HAS_DAY_ENTRY edge from the Day identified by
// date to the JournalEntry identified by journalUUID.
func (s *Store) LinkJournalToDay(ctx context.Context, journalUUID, date string) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
MATCH (d:Day {date: $date})
MATCH (j:JournalEntry {uuid: $journalUUID})
MERGE (d)-[:HAS_DAY_ENTRY]->(j)`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"date": date, "journalUUID": journalUUID})
		return nil, err
	})
	return wrapErr("link_journal_to_day", err)
}

func splitDate(date string) (year, month int, err error) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("expected YYYY-MM-DD, got %q", date)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}
