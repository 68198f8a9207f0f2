// Package app wires configuration into a ready-to-use catalog and cascade.
// Both the API server and the CLI build their engine here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mangaguide/internal/cascade"
	"mangaguide/internal/catalog"
	"mangaguide/internal/estimator"
	"mangaguide/internal/resolver"
	"mangaguide/internal/scraper"
	"mangaguide/pkg/database"
	"mangaguide/pkg/utils"
)

// Engine is the immutable catalog plus the cascade built on it. DB is nil
// when the catalog came from a file.
type Engine struct {
	Catalog   *catalog.Catalog
	Predictor *resolver.Predictor
	Cascade   *cascade.Cascade
	Covers    *cascade.Covers // nil when disabled
	DB        *sql.DB
	Source    string
}

func (e *Engine) Close() error {
	if e.DB == nil {
		return nil
	}
	return e.DB.Close()
}

// LoadCatalog reads the catalog from cfg.CatalogPath when set, otherwise
// from the SQLite database opened read-only.
func LoadCatalog(ctx context.Context, cfg utils.Config, dbCfg database.Config) (*catalog.Catalog, *sql.DB, string, error) {
	if cfg.CatalogPath != "" {
		c, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return nil, nil, "", err
		}
		return c, nil, cfg.CatalogPath, nil
	}

	dbCfg.ReadOnly = true
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, nil, "", fmt.Errorf("open catalog db: %w", err)
	}
	c, err := catalog.NewRepo(db).Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, "", fmt.Errorf("load catalog from %s: %w", dbCfg.Path, err)
	}
	return c, db, dbCfg.Path, nil
}

// BuildCascade assembles the stages enabled in cfg.
func BuildCascade(cfg utils.Config, p *resolver.Predictor, logger *zap.Logger) *cascade.Cascade {
	opts := []cascade.Option{
		cascade.WithStageTimeout(cfg.StageTimeout),
		cascade.WithLogger(logger),
	}

	if cfg.Lookup.Enabled {
		mu := scraper.NewMangaUpdates(cfg.Lookup.BaseURL,
			scraper.WithAttempts(cfg.Lookup.MaxAttempts, cfg.Lookup.AttemptDelay),
			scraper.WithLogger(logger),
		)
		opts = append(opts, cascade.WithLookup(mu))
	}

	var backends []estimator.Estimator
	if cfg.WebText.Enabled {
		var sources []scraper.Source
		if cfg.WebText.PageBaseURL != "" {
			sources = append(sources, scraper.NewPageSource(cfg.WebText.PageBaseURL))
		}
		if cfg.WebText.SearchBaseURL != "" {
			sources = append(sources, scraper.NewSearchSource(cfg.WebText.SearchBaseURL))
		}
		if len(sources) > 0 {
			backends = append(backends, estimator.NewWebText(scraper.NewAggregator(logger, sources...)))
		}
	}
	if cfg.LLMEnabled() {
		llmCfg := estimator.LLMConfig{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}
		client := estimator.NewClient(llmCfg,
			estimator.WithRetryMaxAttempts(cfg.LLM.MaxAttempts),
			estimator.WithRetryBackoff(cfg.LLM.RetryDelay, 8*cfg.LLM.RetryDelay),
		)
		backends = append(backends, estimator.NewLLM(client))
	} else {
		logger.Info("llm estimator disabled: no api key configured")
	}
	if len(backends) > 0 {
		chain := estimator.NewChain(logger, backends...)
		logger.Info("estimator chain ready", zap.Int("backends", chain.Len()))
		opts = append(opts, cascade.WithEstimator(chain))
	}

	return cascade.New(p, opts...)
}

// BuildCovers returns the volume cover enrichment, or nil when disabled.
func BuildCovers(cfg utils.Config, logger *zap.Logger) *cascade.Covers {
	if !cfg.Covers.Enabled {
		return nil
	}
	var sources []scraper.CoverSource
	if cfg.Covers.GoogleBooksURL != "" {
		sources = append(sources, scraper.NewGoogleBooks(cfg.Covers.GoogleBooksURL))
	}
	if cfg.Covers.JikanURL != "" {
		sources = append(sources, scraper.NewJikan(cfg.Covers.JikanURL))
	}
	if len(sources) == 0 {
		return nil
	}
	return cascade.NewCovers(scraper.NewCoverChain(logger, sources...), cfg.Covers.Timeout, logger)
}

// NewEngine loads the catalog and builds the cascade.
func NewEngine(ctx context.Context, cfg utils.Config, dbCfg database.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	c, db, source, err := LoadCatalog(ctx, cfg, dbCfg)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded",
		zap.String("source", source),
		zap.Int("titles", c.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)

	p := resolver.NewPredictor(c, logger)
	return &Engine{
		Catalog:   c,
		Predictor: p,
		Cascade:   BuildCascade(cfg, p, logger),
		Covers:    BuildCovers(cfg, logger),
		DB:        db,
		Source:    source,
	}, nil
}
