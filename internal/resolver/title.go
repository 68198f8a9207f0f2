package resolver

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mangaguide/internal/catalog"
	"mangaguide/pkg/models"
)

const (
	minContainRunes = 4 // shorter side of a containment match
	minFuzzyRunes   = 6
	wideFuzzyRunes  = 10 // names this long may differ by two edits, shorter ones by one
)

// Match tiers, strongest first.
const (
	tierNone = iota
	tierFuzzy
	tierAliasContains
	tierTitleContains
	tierAliasExact
	tierTitleExact
)

// TitleMatch explains why a query resolved to an entry.
type TitleMatch struct {
	Entry     models.CatalogEntry
	MatchedOn string // the canonical title or alias that matched
	Tier      int
	Score     int
}

// TitleResolver maps free-text queries to catalog entries.
type TitleResolver struct {
	catalog *catalog.Catalog
	names   []titleNames // sorted by canonical title
}

type titleNames struct {
	title   string
	norm    string
	aliases []aliasName
}

type aliasName struct {
	raw  string
	norm string
}

func NewTitleResolver(c *catalog.Catalog) *TitleResolver {
	r := &TitleResolver{catalog: c}
	for _, t := range c.Titles() {
		e, _ := c.Entry(t)
		n := titleNames{title: t, norm: NormalizeTitle(t)}
		for _, a := range e.Aliases {
			if na := NormalizeTitle(a); na != "" {
				n.aliases = append(n.aliases, aliasName{raw: a, norm: na})
			}
		}
		r.names = append(r.names, n)
	}
	return r
}

// Resolve returns the best scoring entry for query or ErrTitleNotFound.
//
// Candidates are ranked by tier (exact title, exact alias, title
// containment, alias containment, bounded edit distance), then by overlap
// length, then by closeness in length. Remaining ties go to the
// alphabetically first canonical title.
func (r *TitleResolver) Resolve(query string) (TitleMatch, error) {
	q := NormalizeTitle(query)
	if q == "" {
		return TitleMatch{}, fmt.Errorf("%w: empty query", ErrTitleNotFound)
	}

	var (
		best      candidate
		bestTitle string
	)
	for _, n := range r.names {
		c := scoreNames(q, n)
		if c.tier == tierNone {
			continue
		}
		// names are scanned in title order, so strict > keeps the first title on ties
		if c.better(best) {
			best = c
			bestTitle = n.title
		}
	}
	if best.tier == tierNone {
		return TitleMatch{}, fmt.Errorf("%w: %q", ErrTitleNotFound, query)
	}

	e, _ := r.catalog.Entry(bestTitle)
	return TitleMatch{Entry: e, MatchedOn: best.matched, Tier: best.tier, Score: best.overlap}, nil
}

type candidate struct {
	tier     int
	overlap  int
	lenDelta int
	matched  string
}

func (c candidate) better(o candidate) bool {
	if c.tier != o.tier {
		return c.tier > o.tier
	}
	if c.overlap != o.overlap {
		return c.overlap > o.overlap
	}
	return c.lenDelta < o.lenDelta
}

func scoreNames(q string, n titleNames) candidate {
	var best candidate
	consider := func(c candidate) {
		if c.tier != tierNone && (best.tier == tierNone || c.better(best)) {
			best = c
		}
	}
	consider(scoreName(q, n.norm, n.title, tierTitleExact, tierTitleContains))
	for _, a := range n.aliases {
		consider(scoreName(q, a.norm, a.raw, tierAliasExact, tierAliasContains))
	}
	return best
}

func scoreName(q, name, raw string, exactTier, containTier int) candidate {
	qLen, nLen := runeLen(q), runeLen(name)
	delta := qLen - nLen
	if delta < 0 {
		delta = -delta
	}
	if q == name {
		return candidate{tier: exactTier, overlap: nLen, matched: raw}
	}
	shorter, longer := q, name
	if qLen > nLen {
		shorter, longer = name, q
	}
	if runeLen(shorter) >= minContainRunes && containsTokens(longer, shorter) {
		return candidate{tier: containTier, overlap: runeLen(shorter), lenDelta: delta, matched: raw}
	}
	if limit := fuzzyLimit(q, name); limit > 0 && delta <= limit {
		if d := editDistance(q, name, limit); d <= limit {
			return candidate{tier: tierFuzzy, overlap: nLen - d, lenDelta: delta, matched: raw}
		}
	}
	return candidate{}
}

// fuzzyLimit is the edit budget for a typo match, 0 when none is allowed.
// Names must share their first rune and their digits, so "Boruto" never
// becomes "Naruto" and a sequel number is never edited away.
func fuzzyLimit(q, name string) int {
	shortest := min(runeLen(q), runeLen(name))
	if shortest < minFuzzyRunes {
		return 0
	}
	if []rune(q)[0] != []rune(name)[0] || digits(q) != digits(name) {
		return 0
	}
	if shortest < wideFuzzyRunes {
		return 1
	}
	return 2
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// containsTokens reports whether needle's words appear contiguously in
// haystack, so "titan" matches "attack on titan" but "tan" does not.
func containsTokens(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// NormalizeTitle lowercases, strips diacritics and collapses everything that
// is not a letter or digit into single spaces.
func NormalizeTitle(s string) string {
	// transformers carry state, so each call builds its own chain
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteRune(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func runeLen(s string) int {
	return len([]rune(s))
}

// editDistance is Levenshtein distance, giving up once every cell in a row
// exceeds limit (the result is then limit+1).
func editDistance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
