package vault

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/extraction"
	"github.com/alexelgier/minerva/internal/journaltext"
)

// note is one markdown file's parsed state, held in memory.
type note struct {
	path        string // relative to the vault root
	name        string // filename without extension
	frontmatter map[string]any
	body        string
	modTime     time.Time
}

// Cache holds every note under a vault directory in memory, indexed by
// UUID, by bare name, and by relative path, the way docstore.Store indexes
// notes by ID but generalized to a directory of real files with YAML
// frontmatter instead of a single hydration call from the caller.
type Cache struct {
	mu       sync.RWMutex
	root     string
	byUUID   map[string]*note
	byName   map[string]*note // lowercased filename, no extension
	byPath   map[string]*note // lowercased relative path, "/" separators
	mentions map[string][]mention
}

type mention struct {
	uuid string
	date string // YYYY-MM-DD
}

// New builds an empty Cache rooted at dir. Call Reload to populate it.
func New(dir string) *Cache {
	return &Cache{
		root:     dir,
		byUUID:   make(map[string]*note),
		byName:   make(map[string]*note),
		byPath:   make(map[string]*note),
		mentions: make(map[string][]mention),
	}
}

// Reload walks root, parsing every .md file's frontmatter and body into
// memory, replacing whatever was previously cached.
func (c *Cache) Reload() error {
	byUUID := make(map[string]*note)
	byName := make(map[string]*note)
	byPath := make(map[string]*note)

	err := filepath.WalkDir(c.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		fm, body := splitFrontmatter(string(raw))
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		n := &note{
			path:        rel,
			name:        base,
			frontmatter: fm,
			body:        body,
			modTime:     info.ModTime(),
		}

		byName[strings.ToLower(base)] = n
		byPath[strings.ToLower(rel)] = n
		if id, ok := fm[EntityIDKey].(string); ok && id != "" {
			byUUID[id] = n
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byUUID = byUUID
	c.byName = byName
	c.byPath = byPath
	return nil
}

// IndexMentions records that entityUUID was wiki-linked from a journal
// dated date. Called once per resolved journal during pipeline
// processing so RecentlyMentioned has recency data to work from; the
// cache itself never infers mentions from note content, since a note
// links to entities but does not record when it last mentioned them.
func (c *Cache) IndexMentions(entityUUID, date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mentions[entityUUID] = append(c.mentions[entityUUID], mention{uuid: entityUUID, date: date})
}

func noteToVaultEntity(n *note) (extraction.VaultEntity, bool) {
	if n == nil {
		return extraction.VaultEntity{}, false
	}
	id, _ := n.frontmatter[EntityIDKey].(string)
	if id == "" {
		return extraction.VaultEntity{}, false
	}
	kind, _ := n.frontmatter[EntityTypeKey].(string)
	short, _ := n.frontmatter[ShortSummaryKey].(string)
	long, _ := n.frontmatter[SummaryKey].(string)
	return extraction.VaultEntity{
		UUID:         id,
		Name:         n.name,
		Kind:         domain.EntityType(kind),
		SummaryShort: short,
		SummaryLong:  long,
		Aliases:      aliasesOf(n),
	}, true
}

// aliasesOf reads the AliasesKey frontmatter value, which yaml.v3 decodes
// as []any for a YAML sequence, into a plain []string.
func aliasesOf(n *note) []string {
	raw, ok := n.frontmatter[AliasesKey].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Lookup implements extraction.VaultIndex.
func (c *Cache) Lookup(name string) (extraction.VaultEntity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return noteToVaultEntity(c.byName[strings.ToLower(name)])
}

// LookupByUUID implements extraction.VaultIndex.
func (c *Cache) LookupByUUID(uuid string) (extraction.VaultEntity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return noteToVaultEntity(c.byUUID[uuid])
}

// LookupByPath resolves a relative vault path ("folder/Note.md" or
// "folder/Note") to its note, the way linking.py's build_vault_cache
// indexes both a bare filename and a "/"-normalized relative path so a
// link can be resolved either way.
func (c *Cache) LookupByPath(path string) (extraction.VaultEntity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := strings.ToLower(filepath.ToSlash(strings.TrimSuffix(path, ".md")))
	n, ok := c.byPath[p+".md"]
	if !ok {
		n, ok = c.byPath[p]
	}
	if !ok {
		return extraction.VaultEntity{}, false
	}
	return noteToVaultEntity(n)
}

// WikiLinked implements extraction.VaultIndex: it extracts every [[link]]
// in text and resolves the ones naming a known entity of kind.
func (c *Cache) WikiLinked(text string, kind domain.EntityType) []extraction.VaultEntity {
	links := journaltext.ExtractLinks(text)
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []extraction.VaultEntity
	seen := make(map[string]bool)
	for _, link := range links {
		n, ok := c.byName[strings.ToLower(link.Target)]
		if !ok {
			continue
		}
		ve, ok := noteToVaultEntity(n)
		if !ok || ve.Kind != kind || seen[ve.UUID] {
			continue
		}
		seen[ve.UUID] = true
		out = append(out, ve)
	}
	return out
}

// AllKnown implements extraction.VaultIndex: it returns every note in the
// cache that carries an entity_id, regardless of kind or recency — the
// dictionary an implicit mention scanner compiles its automaton from.
func (c *Cache) AllKnown() []extraction.VaultEntity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]extraction.VaultEntity, 0, len(c.byUUID))
	for _, n := range c.byUUID {
		if ve, ok := noteToVaultEntity(n); ok {
			out = append(out, ve)
		}
	}
	return out
}

type recencyHit struct {
	entity extraction.VaultEntity
	date   string
}

// RecentlyMentioned implements extraction.VaultIndex: it reports up to k
// entities of kind last mentioned within the trailing withinDays days of
// now, most-recent first, based on mentions recorded via IndexMentions.
func (c *Cache) RecentlyMentioned(kind domain.EntityType, withinDays, k int) []extraction.VaultEntity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -withinDays).Format("2006-01-02")

	var hits []recencyHit
	for uuid, ms := range c.mentions {
		n, ok := c.byUUID[uuid]
		if !ok {
			continue
		}
		ve, ok := noteToVaultEntity(n)
		if !ok || ve.Kind != kind {
			continue
		}
		var latest string
		for _, m := range ms {
			if m.date > latest {
				latest = m.date
			}
		}
		if latest == "" || latest < cutoff {
			continue
		}
		ve.LastMention = latest
		hits = append(hits, recencyHit{entity: ve, date: latest})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].date > hits[j].date })

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	out := make([]extraction.VaultEntity, len(hits))
	for i, h := range hits {
		out[i] = h.entity
	}
	return out
}
