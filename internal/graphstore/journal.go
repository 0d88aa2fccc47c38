package graphstore

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/alexelgier/minerva/internal/domain"
)

// CreateJournalEntry upserts a JournalEntry node by UUID, including its
// parsed psychometric vectors. A nil PsychVector is stored as absent
// (property omitted), never as a zero-filled list.
func (s *Store) CreateJournalEntry(ctx context.Context, j *domain.JournalEntry) error {
	props := map[string]any{
		"uuid":       j.UUID,
		"date":       j.Date,
		"raw_text":   j.RawText,
		"narration":  j.Narration,
		"created_at": j.CreatedAt,
	}
	if j.WakeTime != nil {
		props["wake_time"] = *j.WakeTime
	}
	if j.SleepTime != nil {
		props["sleep_time"] = *j.SleepTime
	}
	if len(j.PANASPositive) > 0 {
		props["panas_positive"] = intsToAny(j.PANASPositive)
	}
	if len(j.PANASNegative) > 0 {
		props["panas_negative"] = intsToAny(j.PANASNegative)
	}
	if len(j.BPNS) > 0 {
		props["bpns"] = intsToAny(j.BPNS)
	}
	if len(j.Flourishing) > 0 {
		props["flourishing"] = intsToAny(j.Flourishing)
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `MERGE (j:JournalEntry {uuid: $uuid})
SET j += $props`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"uuid": j.UUID, "props": props})
		return nil, err
	})
	return wrapErr("create_journal_entry", err)
}

func intsToAny(v domain.PsychVector) []any {
	out := make([]any, len(v))
	for i, n := range v {
		out[i] = n
	}
	return out
}

// GetJournalEntry reads back a previously committed JournalEntry by UUID,
// including its psychometric vectors. Returns (nil, false, nil) if no
// such node exists.
func (s *Store) GetJournalEntry(ctx context.Context, uuid string) (*domain.JournalEntry, bool, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	query := `MATCH (j:JournalEntry {uuid: $uuid}) RETURN j`

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"uuid": uuid})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, nil
		}
		node, ok := rec.Get("j")
		if !ok {
			return nil, nil
		}
		return journalFromNode(node.(neo4j.Node))
	})
	if err != nil {
		return nil, false, wrapErr("get_journal_entry", err)
	}
	if result == nil {
		return nil, false, nil
	}
	return result.(*domain.JournalEntry), true, nil
}

func journalFromNode(n neo4j.Node) (*domain.JournalEntry, error) {
	props := n.Props
	j := &domain.JournalEntry{
		UUID:      stringProp(props, "uuid"),
		Date:      stringProp(props, "date"),
		RawText:   stringProp(props, "raw_text"),
		Narration: stringProp(props, "narration"),
	}
	if t, ok := props["created_at"].(time.Time); ok {
		j.CreatedAt = t
	}
	if t, ok := props["wake_time"].(time.Time); ok {
		j.WakeTime = &t
	}
	if t, ok := props["sleep_time"].(time.Time); ok {
		j.SleepTime = &t
	}
	j.PANASPositive = intsFromProp(props, "panas_positive")
	j.PANASNegative = intsFromProp(props, "panas_negative")
	j.BPNS = intsFromProp(props, "bpns")
	j.Flourishing = intsFromProp(props, "flourishing")
	return j, nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func intsFromProp(props map[string]any, key string) domain.PsychVector {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make(domain.PsychVector, len(raw))
	for i, v := range raw {
		switch n := v.(type) {
		case int64:
			out[i] = int(n)
		case int:
			out[i] = n
		}
	}
	return out
}
