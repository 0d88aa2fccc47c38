// Package vault projects the knowledge graph onto a directory of Obsidian
// markdown notes: a read-side cache resolving [[links]] and recent
// mentions to entity identities, and a write-side idempotent frontmatter
// updater.
package vault

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter key names, shared by every note this package reads or
// writes. Centralized here so a rename only happens in one place.
const (
	EntityIDKey         = "entity_id"
	EntityTypeKey       = "entity_type"
	ShortSummaryKey     = "short_summary"
	SummaryKey          = "summary"
	AliasesKey          = "aliases"
	ConceptRelationsKey = "concept_relations"
)

const frontmatterDelim = "---"

// splitFrontmatter separates a note's content into its YAML frontmatter
// block (nil if absent) and the remaining body text.
func splitFrontmatter(content string) (fm map[string]any, body string) {
	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, frontmatterDelim) {
		return nil, content
	}
	rest := trimmed[len(frontmatterDelim):]
	idx := strings.Index(rest, "\n"+frontmatterDelim)
	if idx < 0 {
		return nil, content
	}
	block := strings.TrimPrefix(rest[:idx], "\n")
	remainder := rest[idx+len("\n"+frontmatterDelim):]
	remainder = strings.TrimPrefix(remainder, "\n")

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(block), &parsed); err != nil {
		return nil, content
	}
	return parsed, remainder
}

// renderFrontmatter rebuilds a note's full content from a frontmatter map
// and body, reassembling the three-dash delimited block the way
// splitFrontmatter parses it.
func renderFrontmatter(fm map[string]any, body string) (string, error) {
	if len(fm) == 0 {
		return body, nil
	}
	out, err := yaml.Marshal(fm)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(frontmatterDelim)
	b.WriteString("\n")
	b.Write(out)
	b.WriteString(frontmatterDelim)
	b.WriteString("\n")
	b.WriteString(body)
	return b.String(), nil
}

// mergeFrontmatter applies updates on top of an existing frontmatter map
// (creating one if existing is nil), returning the merged result. Keys in
// updates whose value equals the zero value for its type are still
// written: callers decide what to include.
func mergeFrontmatter(existing map[string]any, updates map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}
