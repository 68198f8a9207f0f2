package catalog

import (
	"fmt"
	"sort"
	"strings"

	"mangaguide/pkg/models"
)

// Catalog is the verified reference table. It is built once at startup and
// never mutated afterwards; accessors hand out copies.
type Catalog struct {
	entries map[string]models.CatalogEntry
	titles  []string // sorted canonical titles
}

// New validates entries and builds an immutable catalog. Seasons are sorted
// by final episode before validation.
func New(entries []models.CatalogEntry) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[string]models.CatalogEntry, len(entries)),
		titles:  make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		e = cloneEntry(e)
		e.Title = strings.TrimSpace(e.Title)
		e.Status = models.ParseAiringStatus(string(e.Status))
		sort.SliceStable(e.VerifiedSeasons, func(i, j int) bool {
			return e.VerifiedSeasons[i].FinalEpisode < e.VerifiedSeasons[j].FinalEpisode
		})
		if err := Validate(e); err != nil {
			return nil, err
		}
		if _, dup := c.entries[e.Title]; dup {
			return nil, fmt.Errorf("catalog: duplicate title %q", e.Title)
		}
		c.entries[e.Title] = e
		c.titles = append(c.titles, e.Title)
	}
	sort.Strings(c.titles)
	return c, nil
}

// Len returns the number of titles.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.titles)
}

// Titles returns canonical titles in ascending order.
func (c *Catalog) Titles() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.titles...)
}

// Entry returns a copy of the entry with the given canonical title.
func (c *Catalog) Entry(title string) (models.CatalogEntry, bool) {
	if c == nil {
		return models.CatalogEntry{}, false
	}
	e, ok := c.entries[title]
	if !ok {
		return models.CatalogEntry{}, false
	}
	return cloneEntry(e), true
}

// Entries returns copies of all entries ordered by canonical title.
func (c *Catalog) Entries() []models.CatalogEntry {
	if c == nil {
		return nil
	}
	out := make([]models.CatalogEntry, 0, len(c.titles))
	for _, t := range c.titles {
		out = append(out, cloneEntry(c.entries[t]))
	}
	return out
}

// ListQuery filters List results.
type ListQuery struct {
	Q      string // substring of title or alias, case-insensitive
	Status string
	Limit  int
	Offset int
}

// List returns the matching entries page and the total match count.
func (c *Catalog) List(q ListQuery) ([]models.CatalogEntry, int) {
	kw := strings.ToLower(strings.TrimSpace(q.Q))
	status := strings.ToLower(strings.TrimSpace(q.Status))

	var matched []models.CatalogEntry
	for _, e := range c.Entries() {
		if status != "" && string(e.Status) != string(models.ParseAiringStatus(status)) {
			continue
		}
		if kw != "" && !matchesKeyword(e, kw) {
			continue
		}
		matched = append(matched, e)
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	total := len(matched)
	if offset >= total {
		return []models.CatalogEntry{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total
}

func matchesKeyword(e models.CatalogEntry, kw string) bool {
	if strings.Contains(strings.ToLower(e.Title), kw) {
		return true
	}
	for _, a := range e.Aliases {
		if strings.Contains(strings.ToLower(a), kw) {
			return true
		}
	}
	return false
}

func cloneEntry(e models.CatalogEntry) models.CatalogEntry {
	out := e
	out.Aliases = append([]string(nil), e.Aliases...)
	if e.TotalEpisodes != nil {
		out.TotalEpisodes = models.IntPtr(*e.TotalEpisodes)
	}
	out.VerifiedSeasons = make([]models.SeasonRecord, len(e.VerifiedSeasons))
	for i, s := range e.VerifiedSeasons {
		if s.CanonEpisodes != nil {
			s.CanonEpisodes = models.IntPtr(*s.CanonEpisodes)
		}
		if s.Notes != nil {
			s.Notes = models.StringPtr(*s.Notes)
		}
		out.VerifiedSeasons[i] = s
	}
	return out
}
