package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFrontmatter_ParsesBlockAndBody(t *testing.T) {
	content := "---\nentity_id: abc-123\nentity_type: Person\n---\nSome body text.\n"
	fm, body := splitFrontmatter(content)
	require.NotNil(t, fm)
	assert.Equal(t, "abc-123", fm["entity_id"])
	assert.Equal(t, "Person", fm["entity_type"])
	assert.Equal(t, "Some body text.\n", body)
}

func TestSplitFrontmatter_NoFrontmatterReturnsWholeBodyUnchanged(t *testing.T) {
	content := "Just a plain note with no frontmatter.\n"
	fm, body := splitFrontmatter(content)
	assert.Nil(t, fm)
	assert.Equal(t, content, body)
}

func TestRenderFrontmatter_RoundTripsThroughSplit(t *testing.T) {
	fm := map[string]any{"entity_id": "abc-123", "entity_type": "Person"}
	body := "Some body text.\n"
	rendered, err := renderFrontmatter(fm, body)
	require.NoError(t, err)

	gotFM, gotBody := splitFrontmatter(rendered)
	assert.Equal(t, fm["entity_id"], gotFM["entity_id"])
	assert.Equal(t, fm["entity_type"], gotFM["entity_type"])
	assert.Equal(t, body, gotBody)
}

func TestMergeFrontmatter_PreservesUnrelatedKeys(t *testing.T) {
	existing := map[string]any{"tags": []string{"journal"}, "entity_id": "old"}
	updates := map[string]any{"entity_id": "new"}
	merged := mergeFrontmatter(existing, updates)
	assert.Equal(t, "new", merged["entity_id"])
	assert.Equal(t, []string{"journal"}, merged["tags"])
}
