package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter assembles the HTTP surface: versioned REST endpoints, the
// WebSocket entry point, health, and metrics.
func NewRouter(api *API, metrics prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/guest", api.createGuestToken)
		v1.GET("/lobby", api.lobbyState)
		v1.GET("/lobby/ws", api.lobbyWS)
	}

	r.GET("/healthz", api.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
	return r
}

// requestLogger records one debug line per completed request. WebSocket
// requests log when their session ends.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
