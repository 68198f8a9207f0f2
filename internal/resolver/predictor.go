package resolver

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"mangaguide/internal/catalog"
	"mangaguide/pkg/models"
)

// Predictor answers from the catalog alone: verified season boundaries when
// the episode is one, ratio extrapolation otherwise. It never does I/O.
type Predictor struct {
	titles *TitleResolver
	logger *zap.Logger
}

func NewPredictor(c *catalog.Catalog, logger *zap.Logger) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{
		titles: NewTitleResolver(c),
		logger: logger.With(zap.String("component", "predictor")),
	}
}

// Titles exposes the resolver used for title lookups.
func (p *Predictor) Titles() *TitleResolver {
	return p.titles
}

// Predict resolves one request. ErrTitleNotFound and ErrRatioUnavailable mean
// the catalog cannot answer; an impossible episode number is answered with a
// terminal validation_failed result and a nil error.
func (p *Predictor) Predict(title string, episode int) (models.ResolutionResult, error) {
	match, err := p.titles.Resolve(title)
	if err != nil {
		p.logger.Debug("title not in catalog", zap.String("query", title))
		return models.ResolutionResult{}, err
	}
	entry := match.Entry
	logger := p.logger.With(
		zap.String("query", title),
		zap.String("title", entry.Title),
		zap.String("matched_on", match.MatchedOn),
		zap.Int("episode", episode),
	)

	if season, ok := entry.SeasonEndingAt(episode); ok {
		logger.Debug("exact season boundary", zap.Int("season", season.Season))
		return exactResult(entry, season), nil
	}

	if err := ValidateEpisode(entry.Title, entry.TotalEpisodes, entry.Status, episode); err != nil {
		logger.Info("episode rejected", zap.Error(err))
		return validationResult(entry, episode, err), nil
	}

	ratio, err := ComputeRatio(entry)
	if err != nil {
		logger.Info("ratio unavailable", zap.Error(err))
		return models.ResolutionResult{}, err
	}

	res := extrapolate(entry, ratio, episode)
	logger.Debug("ratio extrapolation",
		zap.Float64("avg_ratio", ratio.AvgRatio),
		zap.Float64("consistency", ratio.Consistency),
		zap.Intp("chapter", res.ContinueFromChapter),
	)
	return res, nil
}

func exactResult(e models.CatalogEntry, s models.SeasonRecord) models.ResolutionResult {
	var lead string
	note := ""
	if s.Notes != nil {
		note = strings.TrimSpace(*s.Notes)
	}
	switch {
	case s.Season > 0 && note != "":
		lead = fmt.Sprintf("This is Season %d (%s). ", s.Season, note)
	case s.Season > 0:
		lead = fmt.Sprintf("This is Season %d. ", s.Season)
	case note != "":
		lead = note + ". "
	}

	var special *string
	if note != "" {
		special = models.StringPtr(note)
	}
	// volume 0 means the catalog does not know it
	var volume, buy *int
	reasoning := fmt.Sprintf("%sContinue reading from chapter %d.", lead, s.ContinueFromChapter)
	if s.ContinueFromVolume > 0 {
		volume, buy = models.IntPtr(s.ContinueFromVolume), models.IntPtr(s.ContinueFromVolume)
		reasoning = fmt.Sprintf("%sContinue reading from chapter %d (volume %d).",
			lead, s.ContinueFromChapter, s.ContinueFromVolume)
	}
	return models.ResolutionResult{
		ContinueFromChapter: models.IntPtr(s.ContinueFromChapter),
		ContinueFromVolume:  volume,
		BuyVolume:           buy,
		Confidence:          models.ConfidenceHigh,
		Reasoning:           reasoning,
		SourceMaterial:      e.Material(),
		SpecialNotes:        special,
		Verified:            true,
		Method:              models.MethodExactMatch,
	}
}

func validationResult(e models.CatalogEntry, episode int, err error) models.ResolutionResult {
	total := 0
	if e.TotalEpisodes != nil {
		total = *e.TotalEpisodes
	}
	reasoning := fmt.Sprintf("%s only has %d episodes (complete). Episode %d doesn't exist.",
		e.Title, total, episode)
	note := "Invalid episode - anime complete"
	if errors.Is(err, ErrNotYetAired) {
		reasoning = fmt.Sprintf("%s currently has %d episodes. Episode %d hasn't aired yet. Check back when new episodes release!",
			e.Title, total, episode)
		note = "Episode not yet aired"
	}
	return models.ResolutionResult{
		Confidence:     models.ConfidenceLow,
		Reasoning:      reasoning,
		SourceMaterial: e.Material(),
		SpecialNotes:   models.StringPtr(note),
		Verified:       false,
		Method:         models.MethodValidationFailed,
	}
}

func extrapolate(e models.CatalogEntry, r Ratio, episode int) models.ResolutionResult {
	predicted := int(math.Round(float64(episode) * r.AvgRatio))
	chapter := predicted + 1

	// verified boundaries on either side bound the estimate, which keeps
	// chapters non-decreasing in the episode number
	prev, next := bracket(e.VerifiedSeasons, episode)
	clamped := false
	if prev != nil && chapter < prev.ContinueFromChapter {
		chapter, clamped = prev.ContinueFromChapter, true
	}
	if next != nil && chapter > next.ContinueFromChapter {
		chapter, clamped = next.ContinueFromChapter, true
	}
	volume := int(math.Round(float64(chapter) / r.AvgChaptersPerVolume))
	if prev != nil && prev.ContinueFromVolume > 0 && volume < prev.ContinueFromVolume {
		volume = prev.ContinueFromVolume
	}
	if next != nil && next.ContinueFromVolume > 0 && volume > next.ContinueFromVolume {
		volume = next.ContinueFromVolume
	}
	if volume < 1 {
		volume = 1
	}

	reasoning := fmt.Sprintf(
		"After episode %d, continue reading from chapter %d (volume %d). Estimated from an adaptation ratio of %.2f chapters/episode across %d verified %s (%.0f%% consistency).",
		episode, chapter, volume, r.AvgRatio, len(r.Seasons), plural(len(r.Seasons), "season", "seasons"), r.Consistency*100,
	)
	if clamped {
		reasoning += " Adjusted to stay within the verified season boundaries."
	}
	note := "Calculated prediction"
	if r.VolumeFallback {
		note = fmt.Sprintf("Calculated prediction; volume assumes %.0f chapters per volume", DefaultChaptersPerVolume)
	}

	return models.ResolutionResult{
		ContinueFromChapter: models.IntPtr(chapter),
		ContinueFromVolume:  models.IntPtr(volume),
		BuyVolume:           models.IntPtr(volume),
		Confidence:          ConfidenceFor(r.Consistency),
		Reasoning:           reasoning,
		SourceMaterial:      e.Material(),
		SpecialNotes:        models.StringPtr(note),
		Verified:            false,
		Method:              models.MethodRatioExtrapolation,
	}
}

// ConfidenceFor maps ratio consistency onto a confidence tier.
func ConfidenceFor(consistency float64) models.Confidence {
	switch {
	case consistency > 0.9:
		return models.ConfidenceHigh
	case consistency < 0.7:
		return models.ConfidenceLow
	default:
		return models.ConfidenceMedium
	}
}

// bracket returns the last season ending before episode and the first one
// ending after it.
func bracket(seasons []models.SeasonRecord, episode int) (prev, next *models.SeasonRecord) {
	for i := range seasons {
		s := &seasons[i]
		if s.FinalEpisode < episode {
			prev = s
			continue
		}
		if s.FinalEpisode > episode {
			next = s
			break
		}
	}
	return prev, next
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
