package vault

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexelgier/minerva/internal/domain"
)

func writeNote(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCache_ReloadIndexesByNameAndUUID(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "Ana Torres.md",
		"---\nentity_id: abc-123\nentity_type: Person\nshort_summary: s\nsummary: l\n---\nBody.\n")

	c := New(dir)
	require.NoError(t, c.Reload())

	ve, ok := c.Lookup("ana torres")
	require.True(t, ok)
	assert.Equal(t, "abc-123", ve.UUID)
	assert.Equal(t, domain.EntityPerson, ve.Kind)

	ve2, ok := c.LookupByUUID("abc-123")
	require.True(t, ok)
	assert.Equal(t, "Ana Torres", ve2.Name)
}

func TestCache_LookupMissesReturnFalse(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.Reload())

	_, ok := c.Lookup("nobody")
	assert.False(t, ok)
	_, ok = c.LookupByUUID("nope")
	assert.False(t, ok)
}

func TestCache_WikiLinkedFiltersByKind(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "Ana Torres.md",
		"---\nentity_id: p1\nentity_type: Person\n---\n")
	writeNote(t, dir, "Coffee.md",
		"---\nentity_id: c1\nentity_type: Consumable\n---\n")

	c := New(dir)
	require.NoError(t, c.Reload())

	got := c.WikiLinked("Talked to [[Ana Torres]] over [[Coffee]].", domain.EntityPerson)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].UUID)
}

func TestCache_RecentlyMentionedOrdersMostRecentFirst(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "A.md", "---\nentity_id: a\nentity_type: Concept\n---\n")
	writeNote(t, dir, "B.md", "---\nentity_id: b\nentity_type: Concept\n---\n")

	c := New(dir)
	require.NoError(t, c.Reload())

	today := time.Now().UTC().Format("2006-01-02")
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	c.IndexMentions("a", yesterday)
	c.IndexMentions("b", today)

	got := c.RecentlyMentioned(domain.EntityConcept, 30, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].UUID)
	assert.Equal(t, "a", got[1].UUID)
}

func TestCache_RecentlyMentionedExcludesOutsideWindow(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "A.md", "---\nentity_id: a\nentity_type: Concept\n---\n")

	c := New(dir)
	require.NoError(t, c.Reload())
	c.IndexMentions("a", "2020-01-01")

	got := c.RecentlyMentioned(domain.EntityConcept, 30, 10)
	assert.Empty(t, got)
}

func TestCache_AllKnownReturnsEveryIndexedEntityWithAliases(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "Ana Sorin.md",
		"---\nentity_id: p1\nentity_type: Person\naliases:\n  - Ana\n---\n")
	writeNote(t, dir, "Minerva.md",
		"---\nentity_id: pr1\nentity_type: Project\n---\n")
	writeNote(t, dir, "no-id.md", "---\nentity_type: Person\n---\n")

	c := New(dir)
	require.NoError(t, c.Reload())

	all := c.AllKnown()
	require.Len(t, all, 2)

	byUUID := map[string]string{}
	aliases := map[string][]string{}
	for _, ve := range all {
		byUUID[ve.UUID] = ve.Name
		aliases[ve.UUID] = ve.Aliases
	}
	assert.Equal(t, "Ana Sorin", byUUID["p1"])
	assert.Equal(t, []string{"Ana"}, aliases["p1"])
	assert.Equal(t, "Minerva", byUUID["pr1"])
}
