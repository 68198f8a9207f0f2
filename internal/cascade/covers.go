package cascade

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mangaguide/pkg/models"
)

const DefaultCoverTimeout = 5 * time.Second

// CoverFinder is satisfied by scraper.CoverChain.
type CoverFinder interface {
	Cover(ctx context.Context, title string, volume int) (string, error)
}

// Covers attaches a volume cover to a finished result. It runs outside
// Resolve, so a catalog answer still makes no network call inside the
// cascade.
type Covers struct {
	finder  CoverFinder
	timeout time.Duration
	logger  *zap.Logger
}

func NewCovers(f CoverFinder, timeout time.Duration, logger *zap.Logger) *Covers {
	if timeout <= 0 {
		timeout = DefaultCoverTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Covers{finder: f, timeout: timeout, logger: logger.With(zap.String("component", "covers"))}
}

// Stamp sets VolumeCoverURL when the result names a volume to buy and a
// cover source answers within the timeout. Failures leave it nil.
func (c *Covers) Stamp(ctx context.Context, title string, res models.ResolutionResult) models.ResolutionResult {
	if c == nil || c.finder == nil || res.BuyVolume == nil || *res.BuyVolume < 1 || ctx.Err() != nil {
		return res
	}
	coverCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var u string
	err := protect("covers", func() error {
		var err error
		u, err = c.finder.Cover(coverCtx, title, *res.BuyVolume)
		return err
	})
	if err != nil || u == "" {
		c.logger.Debug("no volume cover",
			zap.String("request_id", RequestID(ctx)),
			zap.String("title", title),
			zap.Int("volume", *res.BuyVolume),
			zap.Error(err),
		)
		return res
	}
	res.VolumeCoverURL = models.StringPtr(u)
	return res
}
