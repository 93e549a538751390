// Package api provides the HTTP surface: a public extraction endpoint and
// admin endpoints for managing the credential pool and browser profiles.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/orchestrator"
)

const (
	readHeaderTimeout = 10 * time.Second

	// extractTimeout bounds a single extraction request end to end,
	// including short-link resolution and a possible cookie retry.
	extractTimeout = 90 * time.Second
)

// Extractor runs the full extraction flow for a raw URL.
type Extractor interface {
	Extract(ctx context.Context, rawURL string, opts orchestrator.Options) *domain.ExtractionResult
}

// Deps bundles the collaborators the router needs.
type Deps struct {
	Extractor Extractor
	Cookies   CookieAdmin
	Sealer    Sealer
	Profiles  ProfileAdmin
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(log logger.Interface, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/extract", handleExtract(log, deps.Extractor))

		admin := v1.Group("/admin")
		{
			admin.GET("/cookies", handleListCookies(log, deps.Cookies))
			admin.POST("/cookies", handleAddCookie(log, deps.Cookies, deps.Sealer))
			admin.POST("/cookies/:id/enable", handleSetCookieEnabled(log, deps.Cookies, true))
			admin.POST("/cookies/:id/disable", handleSetCookieEnabled(log, deps.Cookies, false))

			admin.GET("/profiles", handleListProfiles(log, deps.Profiles))
			admin.POST("/profiles", handleAddProfile(log, deps.Profiles))
		}
	}

	return router
}

// loggingMiddleware creates a middleware that logs HTTP requests.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", statusCode,
			"latency", latency,
		)
	}
}

// corsMiddleware adds CORS headers to allow frontend access.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// StartHTTPServer starts the HTTP server with the given configuration.
func StartHTTPServer(log logger.Interface, deps Deps, cfg config.Interface) *http.Server {
	router := SetupRouter(log, deps)

	srv := &http.Server{
		Addr:              cfg.GetServerConfig().Address,
		Handler:           router,
		ReadTimeout:       cfg.GetServerConfig().ReadTimeout,
		WriteTimeout:      cfg.GetServerConfig().WriteTimeout,
		IdleTimeout:       cfg.GetServerConfig().IdleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}
