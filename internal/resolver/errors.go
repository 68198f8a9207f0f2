package resolver

import (
	"errors"
	"fmt"

	"mangaguide/pkg/models"
)

var (
	// ErrTitleNotFound means the catalog has no entry for the query. The
	// cascade moves on to external sources.
	ErrTitleNotFound = errors.New("title not found in catalog")
	// ErrRatioUnavailable means the entry's seasons cannot produce a ratio.
	ErrRatioUnavailable = errors.New("adaptation ratio unavailable")

	ErrInvalidEpisode = errors.New("episode does not exist")
	ErrNotYetAired    = errors.New("episode not yet aired")
)

// EpisodeError reports an episode number that is impossible for a known
// anime. It unwraps to ErrInvalidEpisode or ErrNotYetAired.
type EpisodeError struct {
	Title         string
	Episode       int
	TotalEpisodes int
	Status        models.AiringStatus
}

func (e *EpisodeError) Error() string {
	return fmt.Sprintf("%s: episode %d of %d (%s): %v", e.Title, e.Episode, e.TotalEpisodes, e.Status, e.Unwrap())
}

func (e *EpisodeError) Unwrap() error {
	if e.Status == models.StatusOngoing {
		return ErrNotYetAired
	}
	return ErrInvalidEpisode
}
