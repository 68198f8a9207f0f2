package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mangaguide/internal/app"
	"mangaguide/pkg/database"
	"mangaguide/pkg/utils"
)

// commandContext holds the persistent flags and the lazily loaded config.
type commandContext struct {
	apiURL   string
	dbPath   string
	jsonOut  bool
	verbose  bool
	cfg      *utils.Config
	client   *http.Client
	loadConf func() (utils.Config, error)
}

func newRootCommand() *cobra.Command {
	return buildRootCommand(&commandContext{
		client:   &http.Client{Timeout: 60 * time.Second},
		loadConf: utils.LoadConfig,
	})
}

func buildRootCommand(cc *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mangaguide",
		Short:         "Find the manga chapter that continues an anime",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cc.apiURL, "api", "", "API base URL; empty resolves locally")
	rootCmd.PersistentFlags().StringVar(&cc.dbPath, "db", "", "SQLite catalog path (default ~/.mangaguide/catalog.db)")
	rootCmd.PersistentFlags().BoolVar(&cc.jsonOut, "json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&cc.verbose, "verbose", "v", false, "Log cascade stages to stderr")

	rootCmd.AddCommand(newResolveCommand(cc))
	rootCmd.AddCommand(newCatalogCommand(cc))
	rootCmd.AddCommand(newFeedCommand(cc))

	return rootCmd
}

func (cc *commandContext) config() (utils.Config, error) {
	if cc.cfg != nil {
		return *cc.cfg, nil
	}
	cfg, err := cc.loadConf()
	if err != nil {
		return utils.Config{}, err
	}
	cc.cfg = &cfg
	return cfg, nil
}

func (cc *commandContext) dbConfig() database.Config {
	if p := strings.TrimSpace(cc.dbPath); p != "" {
		return database.Config{Path: p}
	}
	return database.DefaultConfig()
}

func (cc *commandContext) logger(cfg utils.Config) *zap.Logger {
	if !cc.verbose {
		return zap.NewNop()
	}
	logger, err := utils.NewLogger("debug", cfg.LogFormat)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (cc *commandContext) engine(ctx context.Context) (*app.Engine, error) {
	cfg, err := cc.config()
	if err != nil {
		return nil, err
	}
	return app.NewEngine(ctx, cfg, cc.dbConfig(), cc.logger(cfg))
}

func (cc *commandContext) remote() bool {
	return strings.TrimSpace(cc.apiURL) != ""
}
