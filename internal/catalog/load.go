package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mangaguide/pkg/models"
)

// Format identifies a catalog file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from the file extension (JSON default).
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	entries, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return New(entries)
}

// Decode parses the title-keyed catalog mapping:
//
//	{
//	  "Jujutsu Kaisen": {
//	    "aliases": ["JJK"],
//	    "totalEpisodes": 47,
//	    "status": "complete",
//	    "verifiedSeasons": [
//	      {"season": 1, "finalEpisode": 24, "continueFromChapter": 64, "continueFromVolume": 8}
//	    ]
//	  }
//	}
func Decode(r io.Reader, format Format) ([]models.CatalogEntry, error) {
	raw := map[string]models.CatalogEntry{}
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
			return nil, err
		}
	default:
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return nil, err
		}
	}

	out := make([]models.CatalogEntry, 0, len(raw))
	for title, e := range raw {
		e.Title = title
		out = append(out, e)
	}
	return out, nil
}

// Encode writes entries as a title-keyed JSON mapping.
func Encode(w io.Writer, entries []models.CatalogEntry) error {
	type fileEntry struct {
		Aliases         []string              `json:"aliases"`
		TotalEpisodes   *int                  `json:"totalEpisodes"`
		Status          models.AiringStatus   `json:"status"`
		SourceMaterial  string                `json:"sourceMaterial,omitempty"`
		VerifiedSeasons []models.SeasonRecord `json:"verifiedSeasons"`
	}
	out := make(map[string]fileEntry, len(entries))
	for _, e := range entries {
		aliases := e.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		out[e.Title] = fileEntry{
			Aliases:         aliases,
			TotalEpisodes:   e.TotalEpisodes,
			Status:          e.Status,
			SourceMaterial:  e.SourceMaterial,
			VerifiedSeasons: e.VerifiedSeasons,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
