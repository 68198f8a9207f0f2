package scraper

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Finding is where an external source says reading should continue.
type Finding struct {
	Source       string
	MatchedTitle string
	// Chapter is the continuation chapter, one past EndChapter when the
	// source reports where the adaptation ends.
	Chapter    int
	EndChapter int
	Volume     *int
	Detail     string
}

// Source is implemented by each external data source (API, HTML page,
// search engine). Each source maps its own format into a Finding.
type Source interface {
	Name() string
	Lookup(ctx context.Context, title string) (Finding, error)
}

// Aggregator asks its sources in order and returns the first finding.
type Aggregator struct {
	Sources []Source
	logger  *zap.Logger
}

func NewAggregator(logger *zap.Logger, sources ...Source) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{Sources: sources, logger: logger.With(zap.String("component", "scraper"))}
}

// FirstMatch tries each source sequentially. A broken source is logged and
// skipped; the last error is returned when none of them answers.
func (a *Aggregator) FirstMatch(ctx context.Context, title string) (Finding, error) {
	var lastErr error
	for _, src := range a.Sources {
		if err := ctx.Err(); err != nil {
			return Finding{}, newError(src.Name(), ErrorTypeTimeout, "lookup cancelled", err)
		}
		a.logger.Debug("querying source", zap.String("source", src.Name()), zap.String("title", title))
		f, err := src.Lookup(ctx, title)
		if err != nil {
			a.logger.Info("source declined", zap.String("source", src.Name()), zap.Error(err))
			lastErr = err
			continue
		}
		if f.Source == "" {
			f.Source = src.Name()
		}
		return f, nil
	}
	if lastErr == nil {
		lastErr = newError("aggregator", ErrorTypeNoContent, "no sources configured", nil)
	}
	return Finding{}, lastErr
}

// normalizeKey lowercases s, turns every non letter/digit run into one
// space and trims the result.
func normalizeKey(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))

	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteRune(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Slug renders a title the way fan sites build their paths:
// "Jujutsu Kaisen: Season 2" becomes "jujutsu-kaisen-season-2".
func Slug(title string) string {
	return strings.ReplaceAll(normalizeKey(title), " ", "-")
}

// sameTitle reports whether either normalized title contains the other.
func sameTitle(a, b string) bool {
	a, b = normalizeKey(a), normalizeKey(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
