// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, compression, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/template-service/docs"
	"github.com/tbourn/template-service/internal/config"
	"github.com/tbourn/template-service/internal/http/handlers"
	"github.com/tbourn/template-service/internal/http/middleware"
	"github.com/tbourn/template-service/internal/repo"
	"github.com/tbourn/template-service/internal/services"
)

const (
	// maxBodyBytes caps request bodies for every endpoint.
	maxBodyBytes = 1 << 20

	healthPath  = "/health/"
	metricsPath = "/metrics"
)

// Deps are the services the router mounts. DB backs the idempotency lookup
// and list ETags; it may be nil, which disables both.
type Deps struct {
	DB        *gorm.DB
	Templates *services.TemplateService
	Renderer  *services.RenderService
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the template API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per client IP, bypass on replay)
//  9. CORS, security headers and gzip
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		QuietPaths:  []string{healthPath, metricsPath},
	}))

	// 4) Panic recovery to an enveloped 500
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting); only create replays skip the limiter
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		MaxLen:       200,
		ReplayRoutes: []string{http.MethodPost + " " + createRoute(cfg.APIBasePath)},
	}, idempotencyLookup(deps.DB)))

	// 8) Token-bucket rate limiter per client IP; health and metrics are exempt
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP(),
		middleware.WithSkipPaths(healthPath, metricsPath))
	r.Use(rl.Handler())

	// 9) CORS posture (allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// ACAO: * even without an Origin header, so plain health checks see it.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers; reads revalidate against their ETag
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		Revalidate:   true,
		HTMLPrefixes: []string{"/swagger/"},
	}))

	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(deps.Templates, deps.Renderer, deps.DB)

	// Health lives at the root, outside the versioned API.
	r.GET(healthPath, h.Health)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/templates/", h.ListTemplates)
		api.POST("/templates/", h.CreateTemplate)

		// Static segment wins over :id.
		api.POST("/templates/render/", h.RenderTemplate)

		api.GET("/templates/:id/", h.GetTemplate)
		api.PATCH("/templates/:id/", h.UpdateTemplate)
		api.PUT("/templates/:id/", h.UpdateTemplate)
		api.DELETE("/templates/:id/", h.DeleteTemplate)

		// :id carries the template code on the versions routes.
		api.GET("/templates/:id/versions/", h.ListVersions)
		api.GET("/templates/:id/versions/:version/", h.GetVersion)
	}
}

// idempotencyLookup reports whether a live create record exists for key.
// Lookup errors are treated as a miss so the request is rate limited normally.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, services.IdempotencyScope, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
// createRoute is the gin route pattern of the create endpoint under base.
func createRoute(base string) string {
	return strings.TrimSuffix(base, "/") + "/templates/"
}

func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
