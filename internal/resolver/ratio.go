package resolver

import (
	"fmt"
	"math"

	"mangaguide/pkg/models"
)

// DefaultChaptersPerVolume is used when an entry's volume data cannot give a
// chapters-per-volume figure.
const DefaultChaptersPerVolume = 9.0

// SeasonRatio is the adaptation pace of one season.
type SeasonRatio struct {
	Season          int     `json:"season"`
	EpisodesCovered int     `json:"episodesCovered"`
	ChaptersCovered int     `json:"chaptersCovered"`
	Ratio           float64 `json:"ratio"`
	UsedCanonCount  bool    `json:"usedCanonCount"`
}

// Ratio is the per-title adaptation model derived from verified seasons.
type Ratio struct {
	AvgRatio             float64       `json:"avgRatio"` // Σchapters / Σepisodes
	Consistency          float64       `json:"consistency"`
	AvgChaptersPerVolume float64       `json:"avgChaptersPerVolume"`
	VolumeFallback       bool          `json:"volumeFallback"`
	TotalChapters        int           `json:"totalChapters"`
	TotalEpisodes        int           `json:"totalEpisodes"`
	Seasons              []SeasonRatio `json:"seasons"`
}

// ComputeRatio derives the weighted chapters-per-episode ratio and its
// consistency from an entry's verified seasons.
func ComputeRatio(e models.CatalogEntry) (Ratio, error) {
	if len(e.VerifiedSeasons) == 0 {
		return Ratio{}, fmt.Errorf("%w: %s has no verified seasons", ErrRatioUnavailable, e.Title)
	}

	out := Ratio{Seasons: make([]SeasonRatio, 0, len(e.VerifiedSeasons))}
	prevEp, prevCh := 0, 1
	for _, s := range e.VerifiedSeasons {
		sr := SeasonRatio{
			Season:          s.Season,
			EpisodesCovered: s.FinalEpisode - prevEp,
			ChaptersCovered: s.ContinueFromChapter - prevCh,
		}
		if s.CanonEpisodes != nil && *s.CanonEpisodes > 0 {
			sr.EpisodesCovered = *s.CanonEpisodes
			sr.UsedCanonCount = true
		}
		if sr.EpisodesCovered <= 0 {
			return Ratio{}, fmt.Errorf("%w: %s season %d covers no episodes", ErrRatioUnavailable, e.Title, s.Season)
		}
		sr.Ratio = float64(sr.ChaptersCovered) / float64(sr.EpisodesCovered)

		out.TotalChapters += sr.ChaptersCovered
		out.TotalEpisodes += sr.EpisodesCovered
		out.Seasons = append(out.Seasons, sr)
		prevEp, prevCh = s.FinalEpisode, s.ContinueFromChapter
	}

	out.AvgRatio = float64(out.TotalChapters) / float64(out.TotalEpisodes)
	if out.AvgRatio <= 0 || math.IsNaN(out.AvgRatio) {
		return Ratio{}, fmt.Errorf("%w: %s has a non-positive ratio", ErrRatioUnavailable, e.Title)
	}

	ratios := make([]float64, len(out.Seasons))
	for i, sr := range out.Seasons {
		ratios[i] = sr.Ratio
	}
	out.Consistency = clamp01(1 - math.Min(1, stdDev(ratios)/out.AvgRatio))

	last := e.VerifiedSeasons[len(e.VerifiedSeasons)-1]
	cumulative := last.ContinueFromChapter - 1
	if last.ContinueFromVolume > 0 && cumulative > 0 {
		out.AvgChaptersPerVolume = float64(cumulative) / float64(last.ContinueFromVolume)
	} else {
		out.AvgChaptersPerVolume = DefaultChaptersPerVolume
		out.VolumeFallback = true
	}
	return out, nil
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return math.Sqrt(variance / float64(len(xs)))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
