package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newslens/newslens/app/cfg"
)

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler, allowedOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())
	r.Use(originMiddleware(allowedOrigins))

	setupRoutes(r, handler, allowedOrigins)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, allowedOrigins []string) {
	r.GET("/api/query", handler.Query)
	r.POST("/api/query", handler.Query)
	r.POST("/api/ingest", requireOrigin(allowedOrigins), handler.Ingest)

	r.GET("/health", handler.HealthCheck)
	r.GET("/stats", handler.GetStats)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "NewsLens",
			"version":     cfg.GetVersion(),
			"description": "P&C insurance news ingestion, scoring and retrieval",
			"endpoints": map[string]string{
				"query":  "/api/query?q=<text> (GET or POST)",
				"ingest": "/api/ingest (POST)",
				"health": "/health",
				"stats":  "/stats",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// requireOrigin guards state-changing routes. Unlike the lenient
// read-side check, a missing Origin header is rejected outright, so the
// cycle trigger cannot be hit by arbitrary scripts or curl without the
// header. A configured allow-list additionally pins which origins may
// trigger it.
func requireOrigin(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if origin == "" || (len(allowed) > 0 && !allowed[origin]) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error:     "origin required",
				Code:      http.StatusForbidden,
				Timestamp: time.Now().UTC(),
			})
			return
		}

		c.Next()
	}
}

// originMiddleware rejects requests whose Origin header is not in the
// allow-list. Requests without an Origin header pass; an empty allow-list
// admits every origin. Preflight requests are answered directly.
func originMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if origin != "" && len(allowed) > 0 && !allowed[origin] {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error:     "origin not allowed",
				Code:      http.StatusForbidden,
				Timestamp: time.Now().UTC(),
			})
			return
		}

		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
