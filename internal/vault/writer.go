package vault

import (
	"fmt"
	"os"
	"sort"

	"github.com/alexelgier/minerva/internal/domain"
)

// ConceptRelationRef is the minimal shape a concept_relations frontmatter
// entry needs: the related note's name (for the wiki link) and the
// relation type.
type ConceptRelationRef struct {
	TargetName string
	Type       domain.ConceptRelationType
}

// Projection is everything UpdateNote writes into a note's frontmatter.
type Projection struct {
	UUID             string
	Kind             domain.EntityType
	SummaryShort     string
	SummaryLong      string
	Aliases          []string
	ConceptRelations []ConceptRelationRef
}

// UpdateNote rewrites path's frontmatter block to reflect p, preserving
// the existing body and any frontmatter keys this package does not own.
// Idempotent: calling it twice with the same Projection produces the same
// file, the way vault_utils.py's actualizar_frontmatter_con_resumen
// splits on the "---" delimiters, replaces only the frontmatter block,
// and reassembles around the unchanged body.
func UpdateNote(path string, p Projection) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("vault: read %s: %w", path, err)
		}
		raw = nil
	}

	existing, body := splitFrontmatter(string(raw))

	updates := map[string]any{
		EntityIDKey:     p.UUID,
		EntityTypeKey:   string(p.Kind),
		ShortSummaryKey: p.SummaryShort,
		SummaryKey:      p.SummaryLong,
	}
	if len(p.Aliases) > 0 {
		sorted := append([]string(nil), p.Aliases...)
		sort.Strings(sorted)
		updates[AliasesKey] = sorted
	}
	if len(p.ConceptRelations) > 0 {
		rels := make([]string, 0, len(p.ConceptRelations))
		for _, r := range p.ConceptRelations {
			rels = append(rels, fmt.Sprintf("%s:: [[%s]]", r.Type, r.TargetName))
		}
		sort.Strings(rels)
		updates[ConceptRelationsKey] = rels
	}

	merged := mergeFrontmatter(existing, updates)
	out, err := renderFrontmatter(merged, body)
	if err != nil {
		return fmt.Errorf("vault: render frontmatter for %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("vault: write %s: %w", path, err)
	}
	return nil
}
