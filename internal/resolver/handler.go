package resolver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mangaguide/internal/catalog"
	"mangaguide/pkg/models"
)

// Handler serves read-only catalog browsing.
type Handler struct {
	Catalog *catalog.Catalog
	Titles  *TitleResolver
}

func NewHandler(c *catalog.Catalog, titles *TitleResolver) *Handler {
	return &Handler{Catalog: c, Titles: titles}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)        // GET /catalog
	rg.GET("/:title", h.show) // GET /catalog/:title
}

func (h *Handler) list(c *gin.Context) {
	q := catalog.ListQuery{
		Q:      c.Query("q"),
		Status: c.Query("status"),
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}
	items, total := h.Catalog.List(q)

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

type entryDetail struct {
	models.CatalogEntry
	MatchedOn string `json:"matchedOn"`
	Ratio     *Ratio `json:"ratio"`
	RatioNote string `json:"ratioNote,omitempty"`
}

// show resolves the path segment like a user query, so aliases work too.
func (h *Handler) show(c *gin.Context) {
	m, err := h.Titles.Resolve(c.Param("title"))
	if err != nil {
		if errors.Is(err, ErrTitleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	detail := entryDetail{CatalogEntry: m.Entry, MatchedOn: m.MatchedOn}
	if r, err := ComputeRatio(m.Entry); err == nil {
		detail.Ratio = &r
	} else {
		detail.RatioNote = err.Error()
	}
	c.JSON(http.StatusOK, detail)
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
