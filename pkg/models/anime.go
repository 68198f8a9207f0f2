package models

import "strings"

// AiringStatus describes whether an anime has finished airing.
type AiringStatus string

const (
	StatusComplete AiringStatus = "complete"
	StatusOngoing  AiringStatus = "ongoing"
	StatusUnknown  AiringStatus = "unknown"
)

// ParseAiringStatus maps free-form status strings onto the three known values.
// Anything unrecognized becomes StatusUnknown.
func ParseAiringStatus(s string) AiringStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "complete", "completed", "finished", "ended":
		return StatusComplete
	case "ongoing", "airing", "running", "releasing":
		return StatusOngoing
	default:
		return StatusUnknown
	}
}

// SeasonRecord is one verified anime season boundary: after FinalEpisode,
// the reader picks the manga up at ContinueFromChapter.
type SeasonRecord struct {
	Season              int     `json:"season" yaml:"season"`
	FinalEpisode        int     `json:"finalEpisode" yaml:"finalEpisode"`
	CanonEpisodes       *int    `json:"canonEpisodes,omitempty" yaml:"canonEpisodes,omitempty"` // excludes filler
	ContinueFromChapter int     `json:"continueFromChapter" yaml:"continueFromChapter"`
	ContinueFromVolume  int     `json:"continueFromVolume" yaml:"continueFromVolume"`
	Notes               *string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// CatalogEntry is the verified reference data for one anime.
type CatalogEntry struct {
	Title           string         `json:"title" yaml:"-"`
	Aliases         []string       `json:"aliases" yaml:"aliases"`
	TotalEpisodes   *int           `json:"totalEpisodes" yaml:"totalEpisodes"`
	Status          AiringStatus   `json:"status" yaml:"status"`
	SourceMaterial  string         `json:"sourceMaterial,omitempty" yaml:"sourceMaterial,omitempty"`
	VerifiedSeasons []SeasonRecord `json:"verifiedSeasons" yaml:"verifiedSeasons"`
}

// Material returns the adapted source material, "Manga" when unset.
func (e CatalogEntry) Material() string {
	if m := strings.TrimSpace(e.SourceMaterial); m != "" {
		return m
	}
	return DefaultSourceMaterial
}

// SeasonEndingAt returns the season whose final episode equals ep.
func (e CatalogEntry) SeasonEndingAt(ep int) (SeasonRecord, bool) {
	for _, s := range e.VerifiedSeasons {
		if s.FinalEpisode == ep {
			return s, true
		}
	}
	return SeasonRecord{}, false
}

const DefaultSourceMaterial = "Manga"
