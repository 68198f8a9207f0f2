package catalog

import (
	"errors"
	"fmt"
	"strings"

	"mangaguide/pkg/models"
)

// ErrInvalidEntry wraps every validation failure.
var ErrInvalidEntry = errors.New("invalid catalog entry")

// Validate checks one entry's invariants. Seasons must already be ordered
// by final episode.
func Validate(e models.CatalogEntry) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidEntry)
	}
	if e.TotalEpisodes != nil && *e.TotalEpisodes < 1 {
		return fmt.Errorf("%w: %s: totalEpisodes must be positive", ErrInvalidEntry, e.Title)
	}
	prevEp, prevCh := 0, 1
	for i, s := range e.VerifiedSeasons {
		if s.FinalEpisode <= prevEp {
			return fmt.Errorf("%w: %s: season %d final episode %d not after %d",
				ErrInvalidEntry, e.Title, s.Season, s.FinalEpisode, prevEp)
		}
		if i > 0 && s.ContinueFromChapter <= prevCh {
			return fmt.Errorf("%w: %s: season %d continues at chapter %d, not after %d",
				ErrInvalidEntry, e.Title, s.Season, s.ContinueFromChapter, prevCh)
		}
		if s.ContinueFromChapter < 1 {
			return fmt.Errorf("%w: %s: season %d chapter must be positive", ErrInvalidEntry, e.Title, s.Season)
		}
		if s.ContinueFromVolume < 0 {
			return fmt.Errorf("%w: %s: season %d volume must not be negative", ErrInvalidEntry, e.Title, s.Season)
		}
		if s.CanonEpisodes != nil && *s.CanonEpisodes < 1 {
			return fmt.Errorf("%w: %s: season %d canonEpisodes must be positive", ErrInvalidEntry, e.Title, s.Season)
		}
		prevEp, prevCh = s.FinalEpisode, s.ContinueFromChapter
	}
	return nil
}
