package models

import "strings"

// Confidence is the coarse reliability label attached to a resolution.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// ParseConfidence accepts the four tiers (case-insensitive); ok is false otherwise.
func ParseConfidence(s string) (Confidence, bool) {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh, true
	case ConfidenceMedium:
		return ConfidenceMedium, true
	case ConfidenceLow:
		return ConfidenceLow, true
	case ConfidenceNone:
		return ConfidenceNone, true
	}
	return "", false
}

// Method values tag which cascade stage produced a result.
const (
	MethodExactMatch         = "exact_match"
	MethodValidationFailed   = "validation_failed"
	MethodRatioExtrapolation = "ratio_extrapolation"
	MethodMangaUpdates       = "mangaupdates_lookup"
	MethodWebText            = "web_text_extraction"
	MethodLLM                = "llm_estimate"
	MethodNotFound           = "not_found"
)

// ResolutionRequest is what a caller asks for.
type ResolutionRequest struct {
	AnimeTitle    string `json:"animeTitle" form:"anime"`
	EpisodeNumber int    `json:"episodeNumber" form:"episode"`
}

// ResolutionResult is built fresh for every request. Nullable fields are
// pointers so they serialize as explicit nulls. VolumeCoverURL is the only
// field set outside the cascade.
type ResolutionResult struct {
	ContinueFromChapter *int       `json:"continueFromChapter"`
	ContinueFromVolume  *int       `json:"continueFromVolume"`
	BuyVolume           *int       `json:"buyVolume"`
	Confidence          Confidence `json:"confidence"`
	Reasoning           string     `json:"reasoning"`
	SourceMaterial      string     `json:"sourceMaterial"`
	SpecialNotes        *string    `json:"specialNotes"`
	Verified            bool       `json:"verified"`
	Method              string     `json:"method"`
	VolumeCoverURL      *string    `json:"volumeCoverUrl"` // stamped after resolution
}

// IntPtr and StringPtr build nullable values.
func IntPtr(v int) *int { return &v }

func StringPtr(v string) *string { return &v }
