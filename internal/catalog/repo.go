package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"mangaguide/pkg/models"
)

// Repo stores catalog entries in SQLite so a curated catalog can be imported
// once and loaded by every process at start.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// SaveAll upserts entries and replaces their season rows in one transaction.
func (r *Repo) SaveAll(ctx context.Context, entries []models.CatalogEntry) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	animeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO anime (title, aliases, total_episodes, status, source_material)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
		  aliases = excluded.aliases,
		  total_episodes = excluded.total_episodes,
		  status = excluded.status,
		  source_material = excluded.source_material
	`)
	if err != nil {
		return fmt.Errorf("prepare anime stmt: %w", err)
	}
	defer animeStmt.Close()

	clearStmt, err := tx.PrepareContext(ctx, `DELETE FROM seasons WHERE title = ?`)
	if err != nil {
		return fmt.Errorf("prepare clear stmt: %w", err)
	}
	defer clearStmt.Close()

	seasonStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO seasons (title, season, final_episode, canon_episodes,
		                     continue_from_chapter, continue_from_volume, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare season stmt: %w", err)
	}
	defer seasonStmt.Close()

	for _, e := range entries {
		aliases := e.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		aliasesJSON, err := json.Marshal(aliases)
		if err != nil {
			return fmt.Errorf("marshal aliases for %s: %w", e.Title, err)
		}

		if _, err := animeStmt.ExecContext(ctx,
			e.Title,
			string(aliasesJSON),
			nullInt(e.TotalEpisodes),
			string(models.ParseAiringStatus(string(e.Status))),
			nullString(e.SourceMaterial),
		); err != nil {
			return fmt.Errorf("upsert anime %s: %w", e.Title, err)
		}

		if _, err := clearStmt.ExecContext(ctx, e.Title); err != nil {
			return fmt.Errorf("clear seasons for %s: %w", e.Title, err)
		}
		for _, s := range e.VerifiedSeasons {
			var notes any
			if s.Notes != nil {
				notes = *s.Notes
			}
			if _, err := seasonStmt.ExecContext(ctx,
				e.Title,
				s.Season,
				s.FinalEpisode,
				nullInt(s.CanonEpisodes),
				s.ContinueFromChapter,
				s.ContinueFromVolume,
				notes,
			); err != nil {
				return fmt.Errorf("insert season %d for %s: %w", s.Season, e.Title, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadAll reads every entry with its seasons ordered by final episode.
func (r *Repo) LoadAll(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT title, aliases, total_episodes, status, source_material
		FROM anime
		ORDER BY title ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("anime query: %w", err)
	}
	defer rows.Close()

	var out []models.CatalogEntry
	index := make(map[string]int)
	for rows.Next() {
		var (
			e           models.CatalogEntry
			aliasesJSON string
			total       sql.NullInt64
			status      string
			material    sql.NullString
		)
		if err := rows.Scan(&e.Title, &aliasesJSON, &total, &status, &material); err != nil {
			return nil, fmt.Errorf("anime scan: %w", err)
		}
		if err := json.Unmarshal([]byte(aliasesJSON), &e.Aliases); err != nil {
			return nil, fmt.Errorf("decode aliases for %s: %w", e.Title, err)
		}
		if total.Valid {
			e.TotalEpisodes = models.IntPtr(int(total.Int64))
		}
		e.Status = models.ParseAiringStatus(status)
		e.SourceMaterial = material.String
		index[e.Title] = len(out)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("anime rows err: %w", err)
	}

	seasonRows, err := r.DB.QueryContext(ctx, `
		SELECT title, season, final_episode, canon_episodes,
		       continue_from_chapter, continue_from_volume, notes
		FROM seasons
		ORDER BY title ASC, final_episode ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("seasons query: %w", err)
	}
	defer seasonRows.Close()

	for seasonRows.Next() {
		var (
			title string
			s     models.SeasonRecord
			canon sql.NullInt64
			notes sql.NullString
		)
		if err := seasonRows.Scan(&title, &s.Season, &s.FinalEpisode, &canon,
			&s.ContinueFromChapter, &s.ContinueFromVolume, &notes); err != nil {
			return nil, fmt.Errorf("seasons scan: %w", err)
		}
		if canon.Valid {
			s.CanonEpisodes = models.IntPtr(int(canon.Int64))
		}
		if notes.Valid {
			s.Notes = models.StringPtr(notes.String)
		}
		i, ok := index[title]
		if !ok {
			continue
		}
		out[i].VerifiedSeasons = append(out[i].VerifiedSeasons, s)
	}
	if err := seasonRows.Err(); err != nil {
		return nil, fmt.Errorf("seasons rows err: %w", err)
	}
	return out, nil
}

// Count returns the number of stored titles.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM anime`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

// Load builds an immutable catalog from the database.
func (r *Repo) Load(ctx context.Context) (*Catalog, error) {
	entries, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return New(entries)
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
