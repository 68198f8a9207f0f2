// Package estimator holds the free-form fallback backends: anything that can
// turn a title and episode into a chapter guess sits behind Estimator.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mangaguide/pkg/models"
)

var (
	// ErrDeclined means the backend has no answer.
	ErrDeclined = errors.New("estimator declined")
	// ErrMalformed means the backend answered with something unusable.
	ErrMalformed = errors.New("malformed estimate")
)

// Estimate is the normalized output every backend must produce.
type Estimate struct {
	Chapter      int
	Volume       *int
	Confidence   models.Confidence
	Reasoning    string
	SpecialNotes *string
	// Method is the provenance tag stamped on the final result.
	Method string
}

// Estimator guesses where to continue reading. Implementations return
// ErrDeclined or ErrMalformed (possibly wrapped) instead of a partial answer.
type Estimator interface {
	Name() string
	Estimate(ctx context.Context, title string, episode int) (Estimate, error)
}

var confidenceRank = map[models.Confidence]int{
	models.ConfidenceNone:   0,
	models.ConfidenceLow:    1,
	models.ConfidenceMedium: 2,
	models.ConfidenceHigh:   3,
}

// Normalize validates an estimate and caps its confidence at ceiling. A
// missing confidence becomes medium before the cap is applied.
func Normalize(e Estimate, ceiling models.Confidence) (Estimate, error) {
	if e.Chapter < 1 {
		return Estimate{}, fmt.Errorf("%w: chapter %d", ErrMalformed, e.Chapter)
	}
	if e.Volume != nil && *e.Volume < 1 {
		e.Volume = nil
	}
	if e.Confidence == "" {
		e.Confidence = models.ConfidenceMedium
	}
	rank, ok := confidenceRank[e.Confidence]
	if !ok {
		return Estimate{}, fmt.Errorf("%w: confidence %q", ErrMalformed, e.Confidence)
	}
	if rank == 0 {
		return Estimate{}, fmt.Errorf("%w: backend reported no confidence", ErrDeclined)
	}
	if limit, ok := confidenceRank[ceiling]; ok && limit > 0 && rank > limit {
		e.Confidence = ceiling
	}
	e.Reasoning = strings.TrimSpace(e.Reasoning)
	if e.Reasoning == "" {
		e.Reasoning = defaultReasoning(e.Chapter, e.Volume)
	}
	if e.SpecialNotes != nil && strings.TrimSpace(*e.SpecialNotes) == "" {
		e.SpecialNotes = nil
	}
	return e, nil
}

func defaultReasoning(chapter int, volume *int) string {
	if volume != nil {
		return fmt.Sprintf("Continue reading from chapter %d (volume %d).", chapter, *volume)
	}
	return fmt.Sprintf("Continue reading from chapter %d.", chapter)
}

// Chain asks its backends in order and returns the first usable estimate.
type Chain struct {
	backends []Estimator
	logger   *zap.Logger
}

func NewChain(logger *zap.Logger, backends ...Estimator) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{backends: backends, logger: logger.With(zap.String("component", "estimator"))}
}

func (c *Chain) Name() string { return "chain" }

// Len reports how many backends are configured.
func (c *Chain) Len() int { return len(c.backends) }

func (c *Chain) Estimate(ctx context.Context, title string, episode int) (Estimate, error) {
	var errs []error
	for _, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return Estimate{}, err
		}
		est, err := b.Estimate(ctx, title, episode)
		if err != nil {
			c.logger.Info("backend declined", zap.String("backend", b.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		c.logger.Debug("backend answered",
			zap.String("backend", b.Name()),
			zap.Int("chapter", est.Chapter),
			zap.String("confidence", string(est.Confidence)),
		)
		return est, nil
	}
	if len(errs) == 0 {
		return Estimate{}, fmt.Errorf("%w: no backends configured", ErrDeclined)
	}
	return Estimate{}, fmt.Errorf("%w: %w", ErrDeclined, errors.Join(errs...))
}
