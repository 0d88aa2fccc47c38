// Package span locates LLM-returned text fragments back in a source
// document: exact case-insensitive match first, then a sliding-window
// fuzzy phrase match for multi-word candidates only.
package span

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/alexelgier/minerva/internal/domain"
)

const fuzzyThreshold = 75.0

// Resolver implements extraction.SpanResolver.
type Resolver struct{}

// New builds a Resolver. It is stateless; New exists for symmetry with
// the rest of the tree's New* constructors.
func New() *Resolver { return &Resolver{} }

// Resolve locates candidate in source, returning at most one span: an
// exact case-insensitive match if one exists, else (for multi-word
// candidates only) the highest-scoring sliding-window phrase match at or
// above the fuzzy threshold. A single-word candidate that fails the exact
// match is dropped rather than falling back to partial matching.
func (Resolver) Resolve(candidate, source string) []domain.Span {
	return Resolve(candidate, source)
}

// Resolve is the package-level entry point; Resolver.Resolve defers to it.
func Resolve(candidate, source string) []domain.Span {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil
	}

	if sp, ok := exactMatch(candidate, source); ok {
		return []domain.Span{sp}
	}

	if !containsWhitespace(candidate) {
		return nil
	}

	if sp, ok := fuzzyMatch(candidate, source); ok {
		return []domain.Span{sp}
	}
	return nil
}

func containsWhitespace(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

func exactMatch(candidate, source string) (domain.Span, bool) {
	lowerSource := strings.ToLower(source)
	lowerCandidate := strings.ToLower(candidate)
	idx := strings.Index(lowerSource, lowerCandidate)
	if idx < 0 {
		return domain.Span{}, false
	}
	end := idx + len(candidate)
	return domain.Span{Start: idx, End: end, Text: source[idx:end]}, true
}

// token is one whitespace-delimited word and its byte offsets in source.
type token struct {
	start, end int
}

func tokenize(source string) []token {
	var tokens []token
	inWord := false
	wordStart := 0
	for i, r := range source {
		if unicode.IsSpace(r) {
			if inWord {
				tokens = append(tokens, token{wordStart, i})
				inWord = false
			}
			continue
		}
		if !inWord {
			wordStart = i
			inWord = true
		}
	}
	if inWord {
		tokens = append(tokens, token{wordStart, len(source)})
	}
	return tokens
}

func fuzzyMatch(candidate, source string) (domain.Span, bool) {
	words := strings.Fields(candidate)
	n := len(words)
	minWindow := n - 1
	if minWindow < 1 {
		minWindow = 1
	}
	maxWindow := n + 2

	tokens := tokenize(source)
	lowerCandidate := strings.ToLower(candidate)

	var best domain.Span
	bestScore := 0.0
	found := false

	for windowSize := minWindow; windowSize <= maxWindow; windowSize++ {
		if windowSize > len(tokens) {
			continue
		}
		for i := 0; i+windowSize <= len(tokens); i++ {
			start := tokens[i].start
			end := tokens[i+windowSize-1].end
			windowText := source[start:end]

			score := ratio(strings.ToLower(windowText), lowerCandidate)
			if score > bestScore {
				bestScore = score
				best = domain.Span{Start: start, End: end, Text: windowText}
				found = true
			}
		}
	}

	if !found || bestScore < fuzzyThreshold {
		return domain.Span{}, false
	}
	return best, true
}

// ratio scores a against b on a 0-100 scale, 100 meaning identical,
// derived from Levenshtein edit distance normalized by the longer
// string's length (the same normalization fuzzywuzzy-style ratio
// matchers use).
func ratio(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (1.0 - float64(dist)/float64(maxLen)) * 100.0
}
