package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"mangaguide/internal/app"
	"mangaguide/internal/catalog"
	"mangaguide/internal/resolver"
	"mangaguide/pkg/database"
	"mangaguide/pkg/models"
)

func newCatalogCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and manage the verified catalog",
	}
	cmd.AddCommand(newCatalogListCommand(cc))
	cmd.AddCommand(newCatalogShowCommand(cc))
	cmd.AddCommand(newCatalogImportCommand(cc))
	cmd.AddCommand(newCatalogExportCommand(cc))
	return cmd
}

func (cc *commandContext) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	cfg, err := cc.config()
	if err != nil {
		return nil, err
	}
	c, db, _, err := app.LoadCatalog(ctx, cfg, cc.dbConfig())
	if err != nil {
		return nil, err
	}
	if db != nil {
		_ = db.Close()
	}
	return c, nil
}

func newCatalogListCommand(cc *commandContext) *cobra.Command {
	var q catalog.ListQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cc.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			items, total := c.List(q)
			if cc.jsonOut {
				return writeJSON(cmd, map[string]any{"total": total, "items": items})
			}

			rows := make([][]string, 0, len(items))
			for _, e := range items {
				last := "-"
				if n := len(e.VerifiedSeasons); n > 0 {
					last = strconv.Itoa(e.VerifiedSeasons[n-1].ContinueFromChapter)
				}
				rows = append(rows, []string{
					e.Title,
					string(e.Status),
					optInt(e.TotalEpisodes),
					strconv.Itoa(len(e.VerifiedSeasons)),
					last,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Title", "Status", "Episodes", "Seasons", "Latest chapter"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(out, "%d of %d titles\n", len(items), total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&q.Q, "query", "q", "", "Filter by title or alias substring")
	cmd.Flags().StringVar(&q.Status, "status", "", "Filter by status (complete, ongoing)")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "Maximum titles to show")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "Titles to skip")
	return cmd
}

func newCatalogShowCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <title>",
		Short: "Show verified seasons and the adaptation ratio for a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cc.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			m, err := resolver.NewTitleResolver(c).Resolve(args[0])
			if err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}
			ratio, ratioErr := resolver.ComputeRatio(m.Entry)
			if cc.jsonOut {
				body := map[string]any{"entry": m.Entry, "matchedOn": m.MatchedOn}
				if ratioErr == nil {
					body["ratio"] = ratio
				}
				return writeJSON(cmd, body)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s, %s episodes, matched on %s)\n",
				m.Entry.Title, m.Entry.Status, optInt(m.Entry.TotalEpisodes), m.MatchedOn)
			fmt.Fprintln(out, renderSeasons(m.Entry.VerifiedSeasons))
			if ratioErr != nil {
				fmt.Fprintf(out, "ratio: %v\n", ratioErr)
				return nil
			}
			fmt.Fprintf(out, "ratio: %.2f chapters/episode over %d seasons (consistency %.2f)\n",
				ratio.AvgRatio, len(ratio.Seasons), ratio.Consistency)
			return nil
		},
	}
}

func renderSeasons(seasons []models.SeasonRecord) string {
	rows := make([][]string, 0, len(seasons))
	for _, s := range seasons {
		notes := ""
		if s.Notes != nil {
			notes = *s.Notes
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Season),
			strconv.Itoa(s.FinalEpisode),
			optInt(s.CanonEpisodes),
			strconv.Itoa(s.ContinueFromChapter),
			strconv.Itoa(s.ContinueFromVolume),
			notes,
		})
	}
	return renderTable(
		[]string{"Season", "Final ep", "Canon eps", "Chapter", "Volume", "Notes"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func newCatalogImportCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a JSON or YAML catalog and store it in the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}

			dbCfg := cc.dbConfig()
			db, err := database.Open(dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			repo := catalog.NewRepo(db)
			if err := repo.SaveAll(ctx, c.Entries()); err != nil {
				return err
			}
			n, err := repo.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d titles from %s into %s (%d stored)\n", c.Len(), args[0], dbCfg.Path, n)
			return nil
		},
	}
}

func newCatalogExportCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the catalog as a JSON mapping (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cc.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return catalog.Encode(w, c.Entries())
		},
	}
}
