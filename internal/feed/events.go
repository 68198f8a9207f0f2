package feed

import (
	"time"

	"github.com/google/uuid"

	"mangaguide/pkg/models"
)

const (
	EventWelcome    = "welcome"
	EventResolution = "resolution"
)

// ResolutionEvent is broadcast after every completed resolution.
type ResolutionEvent struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Query      string            `json:"query"`
	Episode    int               `json:"episode"`
	Method     string            `json:"method"`
	Confidence models.Confidence `json:"confidence"`
	Chapter    *int              `json:"continueFromChapter"`
	Volume     *int              `json:"continueFromVolume"`
	Verified   bool              `json:"verified"`
	At         time.Time         `json:"at"`
}

// NewResolutionEvent builds an event for res; an empty id gets a fresh one.
func NewResolutionEvent(id string, req models.ResolutionRequest, res models.ResolutionResult) ResolutionEvent {
	if id == "" {
		id = uuid.NewString()
	}
	return ResolutionEvent{
		Type:       EventResolution,
		ID:         id,
		Query:      req.AnimeTitle,
		Episode:    req.EpisodeNumber,
		Method:     res.Method,
		Confidence: res.Confidence,
		Chapter:    res.ContinueFromChapter,
		Volume:     res.ContinueFromVolume,
		Verified:   res.Verified,
		At:         time.Now().UTC(),
	}
}
