package estimator

import (
	"context"
	"fmt"

	"mangaguide/internal/scraper"
	"mangaguide/pkg/models"
)

// Finder is satisfied by scraper.Aggregator.
type Finder interface {
	FirstMatch(ctx context.Context, title string) (scraper.Finding, error)
}

// WebText turns a page or search-result mention of a chapter into an
// estimate. Fan pages describe where the latest season leaves off, so the
// answer is never better than medium and search snippets are low.
type WebText struct {
	finder Finder
}

func NewWebText(f Finder) *WebText {
	return &WebText{finder: f}
}

func (w *WebText) Name() string { return "web_text" }

func (w *WebText) Estimate(ctx context.Context, title string, episode int) (Estimate, error) {
	f, err := w.finder.FirstMatch(ctx, title)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %w", ErrDeclined, err)
	}

	ceiling := models.ConfidenceLow
	where := "web search results"
	if f.Source == scraper.PageSourceName {
		ceiling = models.ConfidenceMedium
		where = "wheredoestheanimeleaveoff.com"
	}

	reasoning := fmt.Sprintf("Continue reading from chapter %d", f.Chapter)
	if f.Volume != nil {
		reasoning += fmt.Sprintf(" (volume %d)", *f.Volume)
	}
	reasoning += fmt.Sprintf(", where the anime adaptation currently ends. Found on %s.", where)

	return Normalize(Estimate{
		Chapter:      f.Chapter,
		Volume:       f.Volume,
		Confidence:   ceiling,
		Reasoning:    reasoning,
		SpecialNotes: models.StringPtr(fmt.Sprintf("This is where the anime adaptation currently ends, not necessarily where episode %d ends", episode)),
		Method:       models.MethodWebText,
	}, ceiling)
}
