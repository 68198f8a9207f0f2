package resolver

import "mangaguide/pkg/models"

// ValidateEpisode rejects episode numbers past the known total. With an
// unknown airing status nothing is rejected.
func ValidateEpisode(title string, totalEpisodes *int, status models.AiringStatus, episode int) error {
	if totalEpisodes == nil || episode <= *totalEpisodes {
		return nil
	}
	switch status {
	case models.StatusComplete, models.StatusOngoing:
		return &EpisodeError{Title: title, Episode: episode, TotalEpisodes: *totalEpisodes, Status: status}
	}
	return nil
}
