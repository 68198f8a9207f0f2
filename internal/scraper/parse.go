package scraper

import (
	"regexp"
	"strconv"
)

var (
	// MangaUpdates "anime end" notes: "Vol 8, Chap 63", "v.16 c.136"
	noteVolumePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bvol(?:ume)?\.?\s*(\d+)`),
		regexp.MustCompile(`(?i)\bv\.?\s*(\d+)`),
	}
	noteChapterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bchap(?:ter)?\.?\s*(\d+)`),
		regexp.MustCompile(`(?i)\bch\.?\s*(\d+)`),
		regexp.MustCompile(`(?i)\bc\.?\s*(\d+)`),
	}

	// prose: "continue from chapter 64 (volume #8)"
	textChapterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bchapter\s*#?\s*(\d+)`),
		regexp.MustCompile(`(?i)\bch\.?\s*(\d+)`),
	}
	textVolumePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bvolume\s*#?\s*(\d+)`),
		regexp.MustCompile(`(?i)\bvol\.?\s*(\d+)`),
	}
)

// ParseEndNote extracts the chapter and volume where an adaptation ends from
// a terse catalog note. ok is false when no chapter is present.
func ParseEndNote(text string) (chapter int, volume *int, ok bool) {
	return parseWith(text, noteChapterPatterns, noteVolumePatterns)
}

// ParseProse extracts a chapter and optional volume from free text.
func ParseProse(text string) (chapter int, volume *int, ok bool) {
	return parseWith(text, textChapterPatterns, textVolumePatterns)
}

func parseWith(text string, chapterPats, volumePats []*regexp.Regexp) (int, *int, bool) {
	chapter, ok := firstNumber(text, chapterPats)
	if !ok || chapter <= 0 {
		return 0, nil, false
	}
	var volume *int
	if v, ok := firstNumber(text, volumePats); ok && v > 0 {
		volume = &v
	}
	return chapter, volume, true
}

func firstNumber(text string, pats []*regexp.Regexp) (int, bool) {
	for _, p := range pats {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}
