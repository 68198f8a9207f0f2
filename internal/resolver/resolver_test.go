package resolver

import (
	"errors"
	"math"
	"testing"

	"mangaguide/internal/catalog"
	"mangaguide/pkg/models"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]models.CatalogEntry{
		{
			Title:         "Jujutsu Kaisen",
			Aliases:       []string{"JJK", "Sorcery Fight"},
			TotalEpisodes: models.IntPtr(47),
			Status:        models.StatusComplete,
			VerifiedSeasons: []models.SeasonRecord{
				{Season: 1, FinalEpisode: 24, ContinueFromChapter: 64, ContinueFromVolume: 8},
				{Season: 2, FinalEpisode: 47, ContinueFromChapter: 137, ContinueFromVolume: 16, Notes: models.StringPtr("Shibuya Incident")},
			},
		},
		{
			Title:         "Chainsaw Man",
			TotalEpisodes: models.IntPtr(12),
			Status:        models.StatusOngoing,
			VerifiedSeasons: []models.SeasonRecord{
				{Season: 1, FinalEpisode: 12, ContinueFromChapter: 39, ContinueFromVolume: 5},
			},
		},
		{
			Title:         "Naruto",
			TotalEpisodes: models.IntPtr(220),
			Status:        models.StatusComplete,
			VerifiedSeasons: []models.SeasonRecord{
				{Season: 1, FinalEpisode: 220, CanonEpisodes: models.IntPtr(135), ContinueFromChapter: 245, ContinueFromVolume: 28},
			},
		},
		{
			Title:   "Naruto Shippuden",
			Aliases: []string{"Naruto Shippuuden"},
			Status:  models.StatusComplete,
		},
		{
			Title:  "Mystery Show",
			Status: models.StatusUnknown,
			VerifiedSeasons: []models.SeasonRecord{
				{Season: 1, FinalEpisode: 12, ContinueFromChapter: 30, ContinueFromVolume: 0},
			},
		},
	})
	if err != nil {
		t.Fatalf("catalog.New returned error: %v", err)
	}
	return c
}

func TestNormalizeTitle(t *testing.T) {
	tests := map[string]string{
		"Pokémon: Diamond & Pearl!": "pokemon diamond pearl",
		"  JUJUTSU   kaisen ":       "jujutsu kaisen",
		"Re:Zero − Starting Life":   "re zero starting life",
		"":                          "",
	}
	for in, want := range tests {
		if got := NormalizeTitle(in); got != want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTitleResolverMatching(t *testing.T) {
	r := NewTitleResolver(testCatalog(t))
	tests := []struct {
		query string
		want  string
		tier  int
	}{
		{"Jujutsu Kaisen", "Jujutsu Kaisen", tierTitleExact},
		{"jujutsu kaisen", "Jujutsu Kaisen", tierTitleExact},
		{"JJK", "Jujutsu Kaisen", tierAliasExact},
		{"sorcery fight", "Jujutsu Kaisen", tierAliasExact},
		{"Jujutsu Kaisen Season 2", "Jujutsu Kaisen", tierTitleContains},
		{"jujutsu", "Jujutsu Kaisen", tierTitleContains},
		{"Jujutsu Kaisan", "Jujutsu Kaisen", tierFuzzy},
		{"Jujutsu Kaisenn", "Jujutsu Kaisen", tierFuzzy},
		{"Narutoo", "Naruto", tierFuzzy},
		{"Naruto", "Naruto", tierTitleExact},
		{"Naruto Shippuuden", "Naruto Shippuden", tierAliasExact},
		{"Naruto Shippuden Episode Guide", "Naruto Shippuden", tierTitleContains},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m, err := r.Resolve(tt.query)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if m.Entry.Title != tt.want {
				t.Fatalf("Resolve(%q) = %q, want %q", tt.query, m.Entry.Title, tt.want)
			}
			if m.Tier != tt.tier {
				t.Fatalf("Resolve(%q) tier = %d, want %d", tt.query, m.Tier, tt.tier)
			}
		})
	}
}

func TestTitleResolverRejectsWeakMatches(t *testing.T) {
	r := NewTitleResolver(testCatalog(t))
	for _, q := range []string{"", "   ", "JJK S2", "Man", "One Piece", "kaisen jujutsu",
		"Boruto", "Haruto", "Baruto", "Narutooo"} {
		if _, err := r.Resolve(q); !errors.Is(err, ErrTitleNotFound) {
			t.Errorf("Resolve(%q) expected ErrTitleNotFound, got %v", q, err)
		}
	}
}

func TestTitleResolverFuzzyKeepsNumbers(t *testing.T) {
	c, err := catalog.New([]models.CatalogEntry{{Title: "Mob Psycho 100"}})
	if err != nil {
		t.Fatalf("catalog.New returned error: %v", err)
	}
	r := NewTitleResolver(c)
	if _, err := r.Resolve("Mob Psycho 101"); !errors.Is(err, ErrTitleNotFound) {
		t.Fatalf("expected ErrTitleNotFound, got %v", err)
	}
	if m, err := r.Resolve("Mob Pyscho 100"); err != nil || m.Tier != tierFuzzy {
		t.Fatalf("Resolve(typo) = %+v, %v", m, err)
	}
}

func TestTitleResolverTieBreakIsDeterministic(t *testing.T) {
	c, err := catalog.New([]models.CatalogEntry{
		{Title: "Beta Saga", Aliases: []string{"Shared Name"}},
		{Title: "Alpha Saga", Aliases: []string{"Shared Name"}},
	})
	if err != nil {
		t.Fatalf("catalog.New returned error: %v", err)
	}
	r := NewTitleResolver(c)
	for i := 0; i < 20; i++ {
		m, err := r.Resolve("shared name")
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if m.Entry.Title != "Alpha Saga" {
			t.Fatalf("expected alphabetical tie-break to pick Alpha Saga, got %q", m.Entry.Title)
		}
	}
}

func TestComputeRatioWeighted(t *testing.T) {
	c := testCatalog(t)
	e, _ := c.Entry("Jujutsu Kaisen")
	r, err := ComputeRatio(e)
	if err != nil {
		t.Fatalf("ComputeRatio returned error: %v", err)
	}
	if r.TotalChapters != 63+73 || r.TotalEpisodes != 24+23 {
		t.Fatalf("unexpected totals: %d chapters, %d episodes", r.TotalChapters, r.TotalEpisodes)
	}
	if want := 136.0 / 47.0; math.Abs(r.AvgRatio-want) > 1e-9 {
		t.Fatalf("avgRatio = %v, want %v", r.AvgRatio, want)
	}
	// per-season ratios 2.625 and 3.1739..., population sd 0.2745
	if math.Abs(r.Consistency-0.90515) > 1e-4 {
		t.Fatalf("consistency = %v, want ~0.90515", r.Consistency)
	}
	if math.Abs(r.AvgChaptersPerVolume-8.5) > 1e-9 {
		t.Fatalf("avgChaptersPerVolume = %v, want 8.5", r.AvgChaptersPerVolume)
	}
	if r.VolumeFallback {
		t.Fatal("did not expect volume fallback")
	}
}

func TestComputeRatioUsesCanonEpisodes(t *testing.T) {
	c := testCatalog(t)
	e, _ := c.Entry("Naruto")
	r, err := ComputeRatio(e)
	if err != nil {
		t.Fatalf("ComputeRatio returned error: %v", err)
	}
	if !r.Seasons[0].UsedCanonCount || r.TotalEpisodes != 135 {
		t.Fatalf("expected canon episode count to be used, got %+v", r.Seasons[0])
	}
	if want := 244.0 / 135.0; math.Abs(r.AvgRatio-want) > 1e-9 {
		t.Fatalf("avgRatio = %v, want %v", r.AvgRatio, want)
	}
	if r.Consistency != 1 {
		t.Fatalf("single season should be fully consistent, got %v", r.Consistency)
	}
}

func TestComputeRatioVolumeFallback(t *testing.T) {
	c := testCatalog(t)
	e, _ := c.Entry("Mystery Show")
	r, err := ComputeRatio(e)
	if err != nil {
		t.Fatalf("ComputeRatio returned error: %v", err)
	}
	if !r.VolumeFallback || r.AvgChaptersPerVolume != DefaultChaptersPerVolume {
		t.Fatalf("expected fallback chapters per volume, got %+v", r)
	}
}

func TestComputeRatioUnavailable(t *testing.T) {
	tests := map[string]models.CatalogEntry{
		"no seasons": {Title: "Empty"},
		"zero episodes covered": {Title: "Broken", VerifiedSeasons: []models.SeasonRecord{
			{Season: 1, FinalEpisode: 12, ContinueFromChapter: 20},
			{Season: 2, FinalEpisode: 12, ContinueFromChapter: 40},
		}},
		"no chapters covered": {Title: "Stalled", VerifiedSeasons: []models.SeasonRecord{
			{Season: 1, FinalEpisode: 12, ContinueFromChapter: 1},
		}},
	}
	for name, e := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ComputeRatio(e); !errors.Is(err, ErrRatioUnavailable) {
				t.Fatalf("expected ErrRatioUnavailable, got %v", err)
			}
		})
	}
}

func TestComputeRatioWeightedProperty(t *testing.T) {
	seasons := []models.SeasonRecord{
		{Season: 1, FinalEpisode: 13, ContinueFromChapter: 27, ContinueFromVolume: 4},
		{Season: 2, FinalEpisode: 25, ContinueFromChapter: 50, ContinueFromVolume: 7},
		{Season: 3, FinalEpisode: 37, CanonEpisodes: models.IntPtr(10), ContinueFromChapter: 90, ContinueFromVolume: 11},
	}
	r, err := ComputeRatio(models.CatalogEntry{Title: "Prop", VerifiedSeasons: seasons})
	if err != nil {
		t.Fatalf("ComputeRatio returned error: %v", err)
	}
	chapters := (27 - 1) + (50 - 27) + (90 - 50)
	episodes := 13 + 12 + 10
	if want := float64(chapters) / float64(episodes); math.Abs(r.AvgRatio-want) > 1e-9 {
		t.Fatalf("avgRatio = %v, want weighted %v", r.AvgRatio, want)
	}
	if r.Consistency < 0 || r.Consistency > 1 {
		t.Fatalf("consistency out of range: %v", r.Consistency)
	}
}

func TestValidateEpisode(t *testing.T) {
	total := models.IntPtr(24)
	if err := ValidateEpisode("A", total, models.StatusComplete, 25); !errors.Is(err, ErrInvalidEpisode) {
		t.Fatalf("expected ErrInvalidEpisode, got %v", err)
	}
	if err := ValidateEpisode("A", total, models.StatusOngoing, 25); !errors.Is(err, ErrNotYetAired) {
		t.Fatalf("expected ErrNotYetAired, got %v", err)
	}
	if err := ValidateEpisode("A", total, models.StatusUnknown, 25); err != nil {
		t.Fatalf("unknown status should defer, got %v", err)
	}
	if err := ValidateEpisode("A", total, models.StatusComplete, 24); err != nil {
		t.Fatalf("last episode is valid, got %v", err)
	}
	if err := ValidateEpisode("A", nil, models.StatusComplete, 500); err != nil {
		t.Fatalf("unknown total should not fail, got %v", err)
	}
	var epErr *EpisodeError
	if err := ValidateEpisode("A", total, models.StatusComplete, 30); !errors.As(err, &epErr) || epErr.TotalEpisodes != 24 {
		t.Fatalf("expected *EpisodeError with total, got %v", err)
	}
}
