package span

import (
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/extraction"
)

// stopEN gates single-token aliases: a bare "the" or "and" as an entity's
// only alias would otherwise fire the automaton on nearly every sentence
// in a journal. Journals in this system are written in English or
// Spanish narration mixed with English section headings (spec.md §6's
// own worked example is Spanish); both stopword lists are checked.
var (
	stopEN = stopwords.MustGet("en")
	stopES = stopwords.MustGet("es")
)

func isStopWord(s string) bool {
	return (stopEN != nil && stopEN.Contains(s)) || (stopES != nil && stopES.Contains(s))
}

// priority ranks entity kinds for bestCandidate, preferring a
// Person or Place reading of an ambiguous surface form over a Concept or
// Event one, the same "more specific wins" rule
// pkg/implicit-matcher/dictionary.go used for its fiction-entity kinds,
// carried over to this system's own EntityType set.
func priority(k domain.EntityType) int {
	switch k {
	case domain.EntityPerson:
		return 10
	case domain.EntityPlace:
		return 8
	case domain.EntityProject, domain.EntityEvent:
		return 6
	case domain.EntityContent, domain.EntityConsumable:
		return 4
	case domain.EntityConcept:
		return 2
	default:
		return 1
	}
}

// isJoiner reports whether r is punctuation that commonly appears inside
// names ("Ana Sorin-Paz", "O'Brien") and should be preserved rather than
// treated as a word boundary during canonicalization.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘', '-', '–', '—', '.', '_':
		return true
	default:
		return false
	}
}

// canonicalize lowercases text and collapses every run of non-letter,
// non-digit, non-joiner characters into a single space, so "Ana Sorin"
// and "ana   sorin," canonicalize identically for matching.
func canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		c := unicode.ToLower(r)
		switch c {
		case '’', '‘':
			c = '\''
		case '–', '—':
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastSpace = false
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimRight(out.String(), " ")
}

// offsetMap maps a byte offset in the canonicalized form of original back
// to the corresponding byte offset in original, built the same way the
// forward canonicalize pass runs so the two stay in lockstep.
func offsetMap(original string) []int {
	mapping := make([]int, 0, len(original)+1)
	lastSpace := true
	pos := 0
	for _, r := range original {
		width := len(string(r))
		c := unicode.ToLower(r)
		switch c {
		case '’', '‘':
			c = '\''
		case '–', '—':
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			for i := 0; i < len(string(c)); i++ {
				mapping = append(mapping, pos)
			}
			lastSpace = false
		} else if !lastSpace {
			mapping = append(mapping, pos)
			lastSpace = true
		}
		pos += width
	}
	mapping = append(mapping, pos)
	return mapping
}

func mapOffset(canonOffset int, mapping []int, originalLen int) int {
	if canonOffset < 0 {
		return 0
	}
	if canonOffset >= len(mapping) {
		return originalLen
	}
	return mapping[canonOffset]
}

// ImplicitMention is one plain-text (non-wikilinked) occurrence of a
// known vault entity found in a journal's narration.
type ImplicitMention struct {
	EntityUUID string
	Kind       domain.EntityType
	Span       domain.Span
}

// ImplicitMatcher scans narration text for known entity names and
// aliases that were not marked up as [[wiki links]], using a single
// Aho-Corasick automaton over every known surface form so a journal's
// narration is scanned once regardless of dictionary size. It supplements
// C5's exact/fuzzy span resolution (which locates an LLM-proposed
// fragment) with the complementary direction: locating already-known
// entities the extraction stages' LLM calls did not happen to propose
// this round, so DB_WRITE's mention derivation (invariant 5: every
// committed span has a covering MENTIONS edge) is not limited to what the
// current extraction pass returned.
type ImplicitMatcher struct {
	ac       *ahocorasick.Automaton
	patterns []string
	byIdx    [][]extraction.VaultEntity
}

// BuildImplicitMatcher compiles an ImplicitMatcher over every entity
// AllKnown returns, indexing each entity's name and aliases as surface
// forms. A single-token surface form that is a stop word is skipped, the
// same guard pkg/implicit-matcher/dictionary.go's TokenizeNorm applied,
// so "the" as a lone alias never lights up the whole narration.
func BuildImplicitMatcher(entities []extraction.VaultEntity) (*ImplicitMatcher, error) {
	m := &ImplicitMatcher{}
	index := make(map[string]int)

	add := func(surface string, e extraction.VaultEntity) {
		key := canonicalize(surface)
		if key == "" {
			return
		}
		if !strings.Contains(key, " ") && isStopWord(key) {
			return
		}
		idx, ok := index[key]
		if !ok {
			idx = len(m.patterns)
			m.patterns = append(m.patterns, key)
			m.byIdx = append(m.byIdx, nil)
			index[key] = idx
		}
		m.byIdx[idx] = append(m.byIdx[idx], e)
	}

	for _, e := range entities {
		add(e.Name, e)
		for _, alias := range e.Aliases {
			add(alias, e)
		}
	}

	if len(m.patterns) == 0 {
		return m, nil
	}

	// Standard match kind, not LeftmostLongest: Scan calls
	// FindAllOverlapping because a shorter alias ("Ana") and a longer one
	// ("Ana Sorin") can both legitimately match at the same position, and
	// bestCandidate needs every one of them to pick a winner by entity
	// kind priority, not just whichever the automaton would call longest.
	ac, err := ahocorasick.NewBuilder().
		AddStrings(m.patterns).
		SetMatchKind(ahocorasick.Standard).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	m.ac = ac
	return m, nil
}

// Scan finds every occurrence (including overlapping ones, e.g. "Ana" and
// "Ana Sorin" matching at the same position) of a known entity's name or
// alias in source, resolving an ambiguous pattern (shared by entities of
// different kinds) to the highest-priority candidate via priority, and
// mapping canonicalized match offsets back to byte offsets in source.
func (m *ImplicitMatcher) Scan(source string) []ImplicitMention {
	if m == nil || m.ac == nil {
		return nil
	}
	canon := canonicalize(source)
	mapping := offsetMap(source)

	matches := m.ac.FindAllOverlapping([]byte(canon))
	out := make([]ImplicitMention, 0, len(matches))
	for _, mm := range matches {
		candidates := m.byIdx[mm.PatternID]
		best := bestCandidate(candidates)
		if best == nil {
			continue
		}
		start := mapOffset(mm.Start, mapping, len(source))
		end := mapOffset(mm.End, mapping, len(source))
		if start >= end || end > len(source) {
			continue
		}
		out = append(out, ImplicitMention{
			EntityUUID: best.UUID,
			Kind:       best.Kind,
			Span:       domain.Span{Start: start, End: end, Text: source[start:end]},
		})
	}
	return out
}

func bestCandidate(candidates []extraction.VaultEntity) *extraction.VaultEntity {
	var best *extraction.VaultEntity
	for i := range candidates {
		c := &candidates[i]
		if best == nil || priority(c.Kind) > priority(best.Kind) {
			best = c
		}
	}
	return best
}
