// Package cascade runs the resolution stages in order: catalog prediction,
// structured lookup, free-form estimation, then a fallback that always
// produces a well-formed answer.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mangaguide/internal/estimator"
	"mangaguide/internal/resolver"
	"mangaguide/internal/scraper"
	"mangaguide/pkg/models"
)

// ErrInvalidRequest is the only error Resolve returns.
var ErrInvalidRequest = errors.New("invalid resolution request")

const DefaultStageTimeout = 15 * time.Second

// Predictor answers from the local catalog without I/O.
type Predictor interface {
	Predict(title string, episode int) (models.ResolutionResult, error)
}

// Lookup is a structured metadata source, satisfied by scraper.MangaUpdates.
type Lookup interface {
	Name() string
	Lookup(ctx context.Context, title string) (scraper.Finding, error)
}

type Cascade struct {
	predictor    Predictor
	lookup       Lookup
	estimator    estimator.Estimator
	stageTimeout time.Duration
	logger       *zap.Logger
}

type Option func(*Cascade)

// WithLookup enables the structured lookup stage.
func WithLookup(l Lookup) Option {
	return func(c *Cascade) { c.lookup = l }
}

// WithEstimator enables the free-form estimation stage.
func WithEstimator(e estimator.Estimator) Option {
	return func(c *Cascade) { c.estimator = e }
}

// WithStageTimeout bounds each network stage.
func WithStageTimeout(d time.Duration) Option {
	return func(c *Cascade) {
		if d > 0 {
			c.stageTimeout = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cascade) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(p Predictor, opts ...Option) *Cascade {
	c := &Cascade{
		predictor:    p,
		stageTimeout: DefaultStageTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "cascade"))
	return c
}

type requestIDKey struct{}

// ContextWithRequestID tags ctx so stage logs can be correlated.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by ContextWithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Resolve walks the stages until one answers. Every failure inside a stage
// is a decline; only a malformed request is reported as an error.
func (c *Cascade) Resolve(ctx context.Context, req models.ResolutionRequest) (models.ResolutionResult, error) {
	title := strings.TrimSpace(req.AnimeTitle)
	if title == "" {
		return models.ResolutionResult{}, fmt.Errorf("%w: anime title is required", ErrInvalidRequest)
	}
	if req.EpisodeNumber < 1 {
		return models.ResolutionResult{}, fmt.Errorf("%w: episode must be a positive integer, got %d", ErrInvalidRequest, req.EpisodeNumber)
	}
	episode := req.EpisodeNumber

	logger := c.logger.With(
		zap.String("request_id", RequestID(ctx)),
		zap.String("title", title),
		zap.Int("episode", episode),
	)

	var res models.ResolutionResult
	err := protect("predictor", func() error {
		var err error
		res, err = c.predictor.Predict(title, episode)
		return err
	})
	if err == nil {
		logger.Info("resolved", zap.String("stage", "predictor"), zap.String("method", res.Method))
		return res, nil
	}
	logStageDecline(logger, "predictor", err)

	if c.lookup != nil {
		if ctx.Err() != nil {
			return c.cancelled(logger, title, ctx.Err()), nil
		}
		res, err = c.runLookup(ctx, title, episode)
		if err == nil {
			logger.Info("resolved", zap.String("stage", "lookup"), zap.String("method", res.Method))
			return res, nil
		}
		logStageDecline(logger, "lookup", err)
	}

	if c.estimator != nil {
		if ctx.Err() != nil {
			return c.cancelled(logger, title, ctx.Err()), nil
		}
		res, err = c.runEstimator(ctx, title, episode)
		if err == nil {
			logger.Info("resolved", zap.String("stage", "estimator"), zap.String("method", res.Method))
			return res, nil
		}
		logStageDecline(logger, "estimator", err)
	}

	if ctx.Err() != nil {
		return c.cancelled(logger, title, ctx.Err()), nil
	}
	logger.Info("no stage answered", zap.String("method", models.MethodNotFound))
	return notFound(title), nil
}

func (c *Cascade) runLookup(ctx context.Context, title string, episode int) (models.ResolutionResult, error) {
	stageCtx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	defer cancel()

	var f scraper.Finding
	err := protect("lookup", func() error {
		var err error
		f, err = c.lookup.Lookup(stageCtx, title)
		return err
	})
	if err != nil {
		return models.ResolutionResult{}, err
	}
	if f.Chapter < 1 {
		return models.ResolutionResult{}, fmt.Errorf("%w: lookup returned chapter %d", estimator.ErrMalformed, f.Chapter)
	}
	return lookupResult(f, episode), nil
}

func (c *Cascade) runEstimator(ctx context.Context, title string, episode int) (models.ResolutionResult, error) {
	stageCtx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	defer cancel()

	var est estimator.Estimate
	err := protect("estimator", func() error {
		var err error
		est, err = c.estimator.Estimate(stageCtx, title, episode)
		return err
	})
	if err != nil {
		return models.ResolutionResult{}, err
	}
	// custom backends may skip Normalize
	est, err = estimator.Normalize(est, models.ConfidenceHigh)
	if err != nil {
		return models.ResolutionResult{}, err
	}
	return estimateResult(est), nil
}

// protect converts a panic inside fn into an error.
func protect(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage, r)
		}
	}()
	return fn()
}

func logStageDecline(logger *zap.Logger, stage string, err error) {
	fields := []zap.Field{zap.String("stage", stage), zap.Error(err)}
	var le *scraper.LookupError
	if errors.As(err, &le) {
		fields = append(fields, zap.String("error_type", le.Type.String()))
	}
	switch {
	case errors.Is(err, resolver.ErrTitleNotFound), errors.Is(err, resolver.ErrRatioUnavailable):
		logger.Debug("stage declined", fields...)
	case errors.Is(err, context.DeadlineExceeded), le != nil && le.Type == scraper.ErrorTypeTimeout:
		logger.Warn("stage timed out", fields...)
	default:
		logger.Info("stage declined", fields...)
	}
}

func lookupResult(f scraper.Finding, episode int) models.ResolutionResult {
	reasoning := fmt.Sprintf("Continue reading from chapter %d", f.Chapter)
	if f.Volume != nil {
		reasoning += fmt.Sprintf(" (volume %d)", *f.Volume)
	}
	reasoning += ", where the anime adaptation currently ends."
	if f.EndChapter > 0 {
		reasoning += fmt.Sprintf(" MangaUpdates lists the anime as ending at chapter %d", f.EndChapter)
		if f.MatchedTitle != "" {
			reasoning += fmt.Sprintf(" of %s", f.MatchedTitle)
		}
		reasoning += "."
	}
	return models.ResolutionResult{
		ContinueFromChapter: models.IntPtr(f.Chapter),
		ContinueFromVolume:  copyInt(f.Volume),
		BuyVolume:           copyInt(f.Volume),
		Confidence:          models.ConfidenceMedium,
		Reasoning:           reasoning,
		SourceMaterial:      models.DefaultSourceMaterial,
		SpecialNotes:        models.StringPtr(adaptationEndNote(episode)),
		Verified:            false,
		Method:              models.MethodMangaUpdates,
	}
}

// adaptationEndNote flags answers that point at the end of the anime
// rather than at the asked episode.
func adaptationEndNote(episode int) string {
	return fmt.Sprintf("This is where the anime adaptation currently ends, not necessarily where episode %d ends", episode)
}

func estimateResult(e estimator.Estimate) models.ResolutionResult {
	method := e.Method
	if method == "" {
		method = models.MethodLLM
	}
	return models.ResolutionResult{
		ContinueFromChapter: models.IntPtr(e.Chapter),
		ContinueFromVolume:  copyInt(e.Volume),
		BuyVolume:           copyInt(e.Volume),
		Confidence:          e.Confidence,
		Reasoning:           e.Reasoning,
		SourceMaterial:      models.DefaultSourceMaterial,
		SpecialNotes:        e.SpecialNotes,
		Verified:            false,
		Method:              method,
	}
}

func notFound(title string) models.ResolutionResult {
	return models.ResolutionResult{
		Confidence: models.ConfidenceNone,
		Reasoning: fmt.Sprintf("Could not find where %s leaves off in the catalog or external sources. Try searching \"%s manga chapter where anime ends\".",
			title, title),
		SourceMaterial: models.DefaultSourceMaterial,
		SpecialNotes:   models.StringPtr("No data found; search manually"),
		Verified:       false,
		Method:         models.MethodNotFound,
	}
}

func (c *Cascade) cancelled(logger *zap.Logger, title string, cause error) models.ResolutionResult {
	logger.Info("resolution cancelled", zap.Error(cause))
	res := notFound(title)
	res.Reasoning = fmt.Sprintf("The lookup for %s was cancelled before any source answered. Try again or search \"%s manga chapter where anime ends\".",
		title, title)
	return res
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	return models.IntPtr(*v)
}
