package catalog

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"mangaguide/pkg/database"
	"mangaguide/pkg/models"
)

func TestLoadFileJSONSortsSeasons(t *testing.T) {
	c, err := LoadFile(filepath.Join("testdata", "catalog.json"))
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 titles, got %d", c.Len())
	}
	if got := c.Titles(); got[0] != "Chainsaw Man" || got[1] != "Jujutsu Kaisen" {
		t.Fatalf("unexpected title order: %v", got)
	}
	jjk, ok := c.Entry("Jujutsu Kaisen")
	if !ok {
		t.Fatal("expected Jujutsu Kaisen entry")
	}
	if jjk.Status != models.StatusComplete {
		t.Fatalf("unexpected status %q", jjk.Status)
	}
	if jjk.VerifiedSeasons[0].FinalEpisode != 24 || jjk.VerifiedSeasons[1].FinalEpisode != 47 {
		t.Fatalf("expected seasons ordered by final episode, got %+v", jjk.VerifiedSeasons)
	}
	if jjk.VerifiedSeasons[1].Notes == nil || *jjk.VerifiedSeasons[1].Notes != "Shibuya Incident" {
		t.Fatalf("expected season note to survive load")
	}
	csm, _ := c.Entry("Chainsaw Man")
	if csm.TotalEpisodes != nil {
		t.Fatalf("expected null total episodes, got %v", *csm.TotalEpisodes)
	}
	if csm.Material() != "Manga" {
		t.Fatalf("expected default source material, got %q", csm.Material())
	}
}

func TestLoadFileYAML(t *testing.T) {
	c, err := LoadFile(filepath.Join("testdata", "catalog.yaml"))
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	e, ok := c.Entry("Spy x Family")
	if !ok {
		t.Fatal("expected Spy x Family entry")
	}
	if len(e.Aliases) != 1 || e.Aliases[0] != "SpyFam" {
		t.Fatalf("unexpected aliases: %v", e.Aliases)
	}
	if e.TotalEpisodes == nil || *e.TotalEpisodes != 37 {
		t.Fatalf("unexpected total episodes")
	}
}

func TestEntryReturnsCopy(t *testing.T) {
	c, err := LoadFile(filepath.Join("testdata", "catalog.json"))
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	e, _ := c.Entry("Jujutsu Kaisen")
	e.Aliases[0] = "mutated"
	e.VerifiedSeasons[0].ContinueFromChapter = 1
	*e.TotalEpisodes = 1

	again, _ := c.Entry("Jujutsu Kaisen")
	if again.Aliases[0] != "JJK" || again.VerifiedSeasons[0].ContinueFromChapter != 64 || *again.TotalEpisodes != 47 {
		t.Fatalf("catalog was mutated through a returned entry: %+v", again)
	}
}

func TestNewRejectsBrokenInvariants(t *testing.T) {
	tests := []struct {
		name  string
		entry models.CatalogEntry
	}{
		{"empty title", models.CatalogEntry{Title: " "}},
		{"duplicate final episode", models.CatalogEntry{Title: "A", VerifiedSeasons: []models.SeasonRecord{
			{Season: 1, FinalEpisode: 12, ContinueFromChapter: 20, ContinueFromVolume: 3},
			{Season: 2, FinalEpisode: 12, ContinueFromChapter: 40, ContinueFromVolume: 5},
		}}},
		{"chapters not increasing", models.CatalogEntry{Title: "B", VerifiedSeasons: []models.SeasonRecord{
			{Season: 1, FinalEpisode: 12, ContinueFromChapter: 40, ContinueFromVolume: 5},
			{Season: 2, FinalEpisode: 24, ContinueFromChapter: 40, ContinueFromVolume: 6},
		}}},
		{"zero canon episodes", models.CatalogEntry{Title: "C", VerifiedSeasons: []models.SeasonRecord{
			{Season: 1, FinalEpisode: 12, CanonEpisodes: models.IntPtr(0), ContinueFromChapter: 20, ContinueFromVolume: 3},
		}}},
		{"non-positive total", models.CatalogEntry{Title: "D", TotalEpisodes: models.IntPtr(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]models.CatalogEntry{tt.entry})
			if !errors.Is(err, ErrInvalidEntry) {
				t.Fatalf("expected ErrInvalidEntry, got %v", err)
			}
		})
	}

	dup := models.CatalogEntry{Title: "Same"}
	if _, err := New([]models.CatalogEntry{dup, dup}); err == nil {
		t.Fatal("expected duplicate titles to fail")
	}
}

func TestList(t *testing.T) {
	c, err := LoadFile(filepath.Join("testdata", "catalog.json"))
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}

	items, total := c.List(ListQuery{Q: "sorcery"})
	if total != 1 || items[0].Title != "Jujutsu Kaisen" {
		t.Fatalf("alias keyword search failed: total=%d items=%v", total, items)
	}
	items, total = c.List(ListQuery{Status: "airing"})
	if total != 1 || items[0].Title != "Chainsaw Man" {
		t.Fatalf("status filter failed: total=%d items=%v", total, items)
	}
	items, total = c.List(ListQuery{Limit: 1, Offset: 1})
	if total != 2 || len(items) != 1 || items[0].Title != "Jujutsu Kaisen" {
		t.Fatalf("paging failed: total=%d items=%v", total, items)
	}
	items, _ = c.List(ListQuery{Offset: 10})
	if len(items) != 0 {
		t.Fatalf("expected empty page, got %v", items)
	}
}

func TestEncodeDecodeKeepsTitles(t *testing.T) {
	c, err := LoadFile(filepath.Join("testdata", "catalog.json"))
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, c.Entries()); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	entries, err := Decode(&buf, FormatJSON)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	again, err := New(entries)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if again.Len() != c.Len() {
		t.Fatalf("expected %d titles, got %d", c.Len(), again.Len())
	}
}

func TestRepoSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	c, err := LoadFile(filepath.Join("testdata", "catalog.json"))
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	repo := NewRepo(db)
	if err := repo.SaveAll(ctx, c.Entries()); err != nil {
		t.Fatalf("SaveAll returned error: %v", err)
	}
	// saving twice must not duplicate season rows
	if err := repo.SaveAll(ctx, c.Entries()); err != nil {
		t.Fatalf("second SaveAll returned error: %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	jjk, ok := loaded.Entry("Jujutsu Kaisen")
	if !ok {
		t.Fatal("expected Jujutsu Kaisen after reload")
	}
	if len(jjk.VerifiedSeasons) != 2 || jjk.VerifiedSeasons[1].ContinueFromChapter != 137 {
		t.Fatalf("unexpected seasons after reload: %+v", jjk.VerifiedSeasons)
	}
	if jjk.TotalEpisodes == nil || *jjk.TotalEpisodes != 47 {
		t.Fatal("expected total episodes after reload")
	}
	csm, _ := loaded.Entry("Chainsaw Man")
	if csm.TotalEpisodes != nil {
		t.Fatal("expected null total episodes after reload")
	}
	if csm.VerifiedSeasons[0].CanonEpisodes == nil || *csm.VerifiedSeasons[0].CanonEpisodes != 12 {
		t.Fatal("expected canon episodes after reload")
	}
}
