package journaltext

import (
	"regexp"
	"strings"
)

var wikiLink = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Link is one [[Name]] or [[Name|alias]] wiki link found in a journal's
// narration text.
type Link struct {
	Target string // text between the brackets before any "|"
	Alias  string // display text after "|", equal to Target if no alias given
}

// ExtractLinks finds every [[Target]]/[[Target|Alias]] occurrence in text,
// in order of appearance.
func ExtractLinks(text string) []Link {
	matches := wikiLink.FindAllStringSubmatch(text, -1)
	links := make([]Link, 0, len(matches))
	for _, m := range matches {
		inner := strings.TrimSpace(m[1])
		if inner == "" {
			continue
		}
		target, alias, found := strings.Cut(inner, "|")
		target = strings.TrimSpace(target)
		if !found {
			alias = target
		} else {
			alias = strings.TrimSpace(alias)
		}
		links = append(links, Link{Target: target, Alias: alias})
	}
	return links
}
