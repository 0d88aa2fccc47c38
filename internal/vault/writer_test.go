package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexelgier/minerva/internal/domain"
)

func TestUpdateNote_CreatesFrontmatterOnNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Ana Torres.md")

	err := UpdateNote(path, Projection{
		UUID:         "abc-123",
		Kind:         domain.EntityPerson,
		SummaryShort: "A close friend.",
		SummaryLong:  "A close friend met through work.",
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	fm, _ := splitFrontmatter(string(raw))
	assert.Equal(t, "abc-123", fm[EntityIDKey])
	assert.Equal(t, "Person", fm[EntityTypeKey])
}

func TestUpdateNote_PreservesBodyAndUnrelatedFrontmatter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Ana Torres.md")
	initial := "---\ntags:\n  - journal\nentity_id: old-id\n---\nNarration body stays put.\n"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	err := UpdateNote(path, Projection{
		UUID:         "new-id",
		Kind:         domain.EntityPerson,
		SummaryShort: "short",
		SummaryLong:  "long",
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	fm, body := splitFrontmatter(string(raw))
	assert.Equal(t, "new-id", fm[EntityIDKey])
	assert.Contains(t, fm["tags"], "journal")
	assert.Contains(t, body, "Narration body stays put.")
}

func TestUpdateNote_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")

	p := Projection{UUID: "abc", Kind: domain.EntityConcept, SummaryShort: "s", SummaryLong: "l"}
	require.NoError(t, UpdateNote(path, p))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, UpdateNote(path, p))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestUpdateNote_WritesConceptRelationsAndAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")

	err := UpdateNote(path, Projection{
		UUID:         "abc",
		Kind:         domain.EntityConcept,
		SummaryShort: "s",
		SummaryLong:  "l",
		Aliases:      []string{"Nickname"},
		ConceptRelations: []ConceptRelationRef{
			{TargetName: "Other Concept", Type: domain.RelPartOf},
		},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	fm, _ := splitFrontmatter(string(raw))
	require.NotNil(t, fm[AliasesKey])
	require.NotNil(t, fm[ConceptRelationsKey])
}
