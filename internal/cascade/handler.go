package cascade

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mangaguide/internal/feed"
	"mangaguide/pkg/models"
)

const RequestIDHeader = "X-Request-ID"

// Publisher receives an event for every answered request (feed.Hub).
type Publisher interface {
	Publish(v any)
}

type Handler struct {
	Cascade *Cascade
	Feed    Publisher
	Covers  *Covers // optional
	logger  *zap.Logger
}

func NewHandler(c *Cascade, pub Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Cascade: c, Feed: pub, logger: logger.With(zap.String("component", "resolve_handler"))}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.resolveQuery) // GET /resolve?anime=&episode=
	rg.POST("", h.resolveJSON) // POST /resolve
}

func (h *Handler) resolveQuery(c *gin.Context) {
	anime := strings.TrimSpace(c.Query("anime"))
	episodeRaw := strings.TrimSpace(c.Query("episode"))
	if anime == "" || episodeRaw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing anime or episode parameters"})
		return
	}
	episode, err := strconv.Atoi(episodeRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "episode must be a positive integer"})
		return
	}
	h.resolve(c, models.ResolutionRequest{AnimeTitle: anime, EpisodeNumber: episode})
}

func (h *Handler) resolveJSON(c *gin.Context) {
	var req models.ResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	h.resolve(c, req)
}

func (h *Handler) resolve(c *gin.Context, req models.ResolutionRequest) {
	id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)

	ctx := ContextWithRequestID(c.Request.Context(), id)
	res, err := h.Cascade.Resolve(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("resolve failed", zap.String("request_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve failed"})
		return
	}

	res = h.Covers.Stamp(ctx, req.AnimeTitle, res)

	if h.Feed != nil {
		h.Feed.Publish(feed.NewResolutionEvent(id, req, res))
	}
	c.JSON(http.StatusOK, res)
}
