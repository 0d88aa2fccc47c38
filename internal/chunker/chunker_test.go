package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SingleSentenceYieldsOneLeafRoot(t *testing.T) {
	narration := "Just one sentence."
	chunks := Build("j1", narration)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsLeaf)
	assert.Equal(t, "", chunks[0].ParentUUID)
}

func TestBuild_ThreeSentencesProduceBalancedTreeWithOddCarry(t *testing.T) {
	narration := "First one. Second one. Third one."
	chunks := Build("j1", narration)

	var leaves, interior int
	for _, c := range chunks {
		if c.IsLeaf {
			leaves++
		} else {
			interior++
		}
	}
	assert.Equal(t, 3, leaves)
	assert.GreaterOrEqual(t, interior, 1)

	var roots int
	for _, c := range chunks {
		if c.ParentUUID == "" {
			roots++
		}
	}
	assert.Equal(t, 1, roots)
}

func TestBuild_NextSiblingLinksLeftToRight(t *testing.T) {
	narration := "First one. Second one."
	chunks := Build("j1", narration)

	var leaf1 *struct {
		uuid, next string
	}
	for _, c := range chunks {
		if c.IsLeaf && c.Span.Text == "First one." {
			leaf1 = &struct{ uuid, next string }{c.UUID, c.NextSibling}
		}
	}
	require.NotNil(t, leaf1)
	assert.NotEmpty(t, leaf1.next)
}

func TestBuild_EmptyNarrationYieldsNoChunks(t *testing.T) {
	assert.Empty(t, Build("j1", ""))
	assert.Empty(t, Build("j1", "   "))
}

func TestBuild_ParentSpanCoversBothChildren(t *testing.T) {
	narration := "First one. Second one."
	chunks := Build("j1", narration)

	var root *struct {
		start, end int
	}
	for _, c := range chunks {
		if !c.IsLeaf {
			root = &struct{ start, end int }{c.Span.Start, c.Span.End}
		}
	}
	require.NotNil(t, root)
	assert.Equal(t, 0, root.start)
	assert.Equal(t, len(narration), root.end)
}
