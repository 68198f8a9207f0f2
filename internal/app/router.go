package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mangaguide/internal/cascade"
	"mangaguide/internal/feed"
	"mangaguide/internal/resolver"
)

// NewRouter mounts health checks, catalog browsing, resolution and the
// WebSocket feed.
func NewRouter(e *Engine, hub *feed.Hub, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "catalog": e.Source})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		body := gin.H{
			"titles":      e.Catalog.Len(),
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		}
		if e.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := e.DB.PingContext(ctx); err != nil {
				body["status"] = "not_ready"
				body["db_error"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
			body["db"] = "ok"
		}
		if e.Catalog.Len() == 0 {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})

	router.GET("/ws", feed.WSHandler(hub))

	resolver.NewHandler(e.Catalog, e.Predictor.Titles()).RegisterRoutes(router.Group("/catalog"))
	resolve := cascade.NewHandler(e.Cascade, hub, logger)
	resolve.Covers = e.Covers
	resolve.RegisterRoutes(router.Group("/resolve"))

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.Writer.Header().Get(cascade.RequestIDHeader)),
		)
	}
}
