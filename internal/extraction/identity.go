package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/llmgateway"
)

// mergedSummary is the schema target for the "summary merge" call: combine
// an existing entity's summaries with freshly extracted ones.
type mergedSummary struct {
	SummaryShort string `json:"summary_short"`
	SummaryLong  string `json:"summary_long"`
}

func (m mergedSummary) Validate() error {
	if m.SummaryShort == "" {
		return fmt.Errorf("merged summary_short is empty")
	}
	return nil
}

// ErrCrossTypeCollision is returned by resolveIdentity when name already
// names an entity of a different kind in the vault.
type ErrCrossTypeCollision struct {
	Name       string
	Existing   domain.EntityType
	Attempted  domain.EntityType
}

func (e *ErrCrossTypeCollision) Error() string {
	return fmt.Sprintf("extraction: %q is a known %s, cannot also be extracted as %s", e.Name, e.Existing, e.Attempted)
}

// resolveIdentity decides the UUID and summaries a freshly extracted
// entity named name (of kind want) should carry. If the vault already
// knows name under want, the UUID is preserved and the summaries merged
// via one LLM call. If the vault knows name under a different kind, the
// extraction is rejected: a name never silently reuses another type's
// UUID. Otherwise a fresh UUID is minted.
func resolveIdentity(ctx context.Context, ec *Context, name string, want domain.EntityType, freshShort, freshLong string) (uuidOut, shortOut, longOut string, err error) {
	existing, found := ec.Vault.Lookup(name)
	if !found {
		return uuid.NewString(), freshShort, freshLong, nil
	}
	if existing.Kind != want {
		return "", "", "", &ErrCrossTypeCollision{Name: name, Existing: existing.Kind, Attempted: want}
	}

	merged, err := mergeSummaries(ctx, ec, existing.SummaryShort, existing.SummaryLong, freshShort, freshLong)
	if err != nil {
		return "", "", "", err
	}
	return existing.UUID, merged.SummaryShort, merged.SummaryLong, nil
}

func mergeSummaries(ctx context.Context, ec *Context, oldShort, oldLong, newShort, newLong string) (mergedSummary, error) {
	prompt := fmt.Sprintf(
		"Existing summary (short): %s\nExisting summary (long): %s\nNewly observed summary (short): %s\nNewly observed summary (long): %s\n\n"+
			"Combine these into one updated short summary (<=30 words) and one updated long summary (<=100 words) that reflects both the established facts and the new observation.",
		oldShort, oldLong, newShort, newLong)

	var out mergedSummary
	_, err := ec.LLM.Generate(ctx, llmgateway.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: summaryMergeSystemPrompt,
		SchemaName:   "merged_summary",
		Target:       &out,
	})
	if err != nil {
		return mergedSummary{}, fmt.Errorf("extraction: summary merge: %w", err)
	}
	return out, nil
}

const summaryMergeSystemPrompt = `You merge two descriptions of the same real-world entity into one updated pair of summaries.
Return ONLY a JSON object: {"summary_short": "...", "summary_long": "..."}. No markdown, no explanation.`

// newEntityTimestamp returns the current UTC time for a freshly minted
// entity. Each call reads the clock, so two entities created within the
// same Run can differ in CreatedAt by microseconds.
func newEntityTimestamp() time.Time { return time.Now().UTC() }
