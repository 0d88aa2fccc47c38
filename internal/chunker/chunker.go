// Package chunker builds the hierarchical lexical tree over a journal's
// narration: sentence-span leaf chunks, grouped pairwise bottom-up into
// interior chunks until a single root remains.
package chunker

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/alexelgier/minerva/internal/domain"
)

var sentenceBoundary = regexp.MustCompile(`[.!?]+[\s"']*`)

// Build splits narration into sentence-span leaf chunks, then pairs
// adjacent chunks bottom-up (each parent's span covers the combined range
// of its two children) until one root chunk remains, wiring ParentUUID,
// Children, and left-to-right NextSibling links at every level. Returns
// every chunk in the tree, root last.
func Build(journalUUID, narration string) []domain.Chunk {
	leafSpans := splitSentences(narration)
	if len(leafSpans) == 0 {
		return nil
	}

	var all []domain.Chunk
	index := make(map[string]int)
	add := func(c domain.Chunk) {
		index[c.UUID] = len(all)
		all = append(all, c)
	}

	level := make([]domain.Chunk, len(leafSpans))
	for i, sp := range leafSpans {
		level[i] = domain.Chunk{
			UUID:      uuid.NewString(),
			JournalID: journalUUID,
			Span:      sp,
			IsLeaf:    true,
		}
		add(level[i])
	}
	linkSiblings(all, index, level)

	// A node carried forward unpaired (odd level length) already exists in
	// all from a previous level; only genuinely new parent chunks get
	// appended here, so no chunk is ever represented twice.
	for len(level) > 1 {
		var next []domain.Chunk
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			left, right := level[i], level[i+1]
			parent := domain.Chunk{
				UUID:      uuid.NewString(),
				JournalID: journalUUID,
				Span: domain.Span{
					Start: left.Span.Start,
					End:   right.Span.End,
					Text:  narration[left.Span.Start:right.Span.End],
				},
				Children: []string{left.UUID, right.UUID},
				IsLeaf:   false,
			}
			add(parent)
			all[index[left.UUID]].ParentUUID = parent.UUID
			all[index[right.UUID]].ParentUUID = parent.UUID
			next = append(next, parent)
		}
		linkSiblings(all, index, next)
		level = next
	}

	return all
}

// linkSiblings wires NextSibling left-to-right across level, updating
// each chunk's entry in all (located via index) in place.
func linkSiblings(all []domain.Chunk, index map[string]int, level []domain.Chunk) {
	for i := 0; i+1 < len(level); i++ {
		all[index[level[i].UUID]].NextSibling = level[i+1].UUID
	}
}

// splitSentences returns non-empty, trimmed sentence spans over text in
// source order, keeping each span's Start/End as byte offsets into text
// and Text as the original (untrimmed-boundary) substring.
func splitSentences(text string) []domain.Span {
	var spans []domain.Span
	start := 0
	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	for _, loc := range locs {
		end := loc[1]
		spans = append(spans, trimSpan(text, start, end))
		start = end
	}
	if start < len(text) {
		spans = append(spans, trimSpan(text, start, len(text)))
	}

	out := spans[:0]
	for _, sp := range spans {
		if sp.Text != "" {
			out = append(out, sp)
		}
	}
	return out
}

func trimSpan(text string, start, end int) domain.Span {
	raw := text[start:end]
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.Span{Start: start, End: end, Text: ""}
	}
	offset := strings.Index(raw, trimmed)
	return domain.Span{Start: start + offset, End: start + offset + len(trimmed), Text: trimmed}
}
