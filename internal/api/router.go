// Package api wires together all HTTP routes for the mosque directory backend.
//
// Route grouping:
//   - Public reads (/api/v1/mosques, /api/v1/amenities, /api/sedekah) need no
//     credentials. A bearer token is still validated when present so that an
//     expired session is reported instead of silently served anonymously.
//   - Account and submission routes require a signed-in user.
//   - /api/v1/admin/* requires the admin role.
//
// Every write goes through a service that records an audit entry and the
// handler invalidates the affected cache groups afterwards.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/muazhazali/lepakmasjid/internal/activities"
	"github.com/muazhazali/lepakmasjid/internal/amenities"
	"github.com/muazhazali/lepakmasjid/internal/api/account"
	apiactivities "github.com/muazhazali/lepakmasjid/internal/api/activities"
	"github.com/muazhazali/lepakmasjid/internal/api/admin"
	apiamenities "github.com/muazhazali/lepakmasjid/internal/api/amenities"
	"github.com/muazhazali/lepakmasjid/internal/api/files"
	apimosques "github.com/muazhazali/lepakmasjid/internal/api/mosques"
	"github.com/muazhazali/lepakmasjid/internal/api/sedekah"
	apisubmissions "github.com/muazhazali/lepakmasjid/internal/api/submissions"
	"github.com/muazhazali/lepakmasjid/internal/audit"
	"github.com/muazhazali/lepakmasjid/internal/auth"
	"github.com/muazhazali/lepakmasjid/internal/cache"
	"github.com/muazhazali/lepakmasjid/internal/config"
	"github.com/muazhazali/lepakmasjid/internal/images"
	"github.com/muazhazali/lepakmasjid/internal/middleware"
	"github.com/muazhazali/lepakmasjid/internal/mosques"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/storage"
	"github.com/muazhazali/lepakmasjid/internal/submissions"
	"github.com/muazhazali/lepakmasjid/internal/users"
)

const (
	cacheKeyPrefix     = "lm:cache:"
	rateLimitKeyPrefix = "lm:ratelimit:"

	// readinessProbePath is a known-absent object; Exists exercises
	// credentials and connectivity without creating state.
	readinessProbePath = ".readiness-probe"
)

// Deps are the external resources the router builds its services on.
type Deps struct {
	Source recordsource.Source
	// Storage holds mosque images. Nil disables image uploads.
	Storage storage.Storage
	// Redis, when set, backs the response cache and the rate limiters so
	// several instances share them.
	Redis redis.UniversalClient
	// Shipper receives a copy of every audit entry. May be nil.
	Shipper audit.Shipper
	Logger  *slog.Logger
	Version string
}

// BackgroundServices holds references to background goroutines and resources
// that must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() after the HTTP server has drained.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
	shipper      audit.Shipper
	logger       *slog.Logger
}

// Shutdown stops the in-memory rate limiter sweepers and flushes the audit
// shippers.
func (bg *BackgroundServices) Shutdown() {
	bg.logger.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			bg.logger.Error("failed to close audit shippers", "error", err)
		}
	}
	bg.logger.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Deps) (*gin.Engine, *BackgroundServices) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bg := &BackgroundServices{shipper: deps.Shipper, logger: logger}

	// Services
	src := deps.Source
	auditor := audit.NewLogger(src, deps.Shipper, logger.With("component", "audit"))
	auditQuery := audit.NewQuery(src)

	var imageStore *images.Store
	var mosqueImages mosques.ImageStore
	var imageURLs apimosques.ImageResolver
	if deps.Storage != nil {
		imageStore = images.NewStore(deps.Storage, images.NewProcessor(cfg.Images), logger.With("component", "images"))
		mosqueImages = imageStore
		imageURLs = imageStore
	}

	mosqueSvc := mosques.NewService(src, mosqueImages, auditor, logger.With("component", "mosques"))
	amenitySvc := amenities.NewService(src, amenities.DefaultRetryPolicy, logger.With("component", "amenities"))
	activitySvc := activities.NewService(src, logger.With("component", "activities"))
	submissionSvc := submissions.NewService(src, amenitySvc, auditor, logger.With("component", "submissions"))
	userSvc := users.NewService(src, auth.Issuer{TTL: cfg.Auth.TokenTTL}, auditor, cfg.Auth.AllowRegistration, logger.With("component", "users"))

	var store cache.Store = cache.NewMemoryStore()
	if deps.Redis != nil {
		store = cache.NewRedisStore(deps.Redis)
	}
	responseCache := cache.New(store, cacheKeyPrefix, cache.TTLs(cfg.Cache), logger.With("component", "cache"))

	// Handlers
	mosqueHandlers := apimosques.NewHandlers(mosqueSvc, activitySvc, imageURLs, responseCache, cfg.Images.MaxUploadBytes)
	amenityHandlers := apiamenities.NewHandlers(amenitySvc, responseCache)
	activityHandlers := apiactivities.NewHandlers(activitySvc, responseCache)
	submissionHandlers := apisubmissions.NewHandlers(submissionSvc, responseCache)
	accountHandlers := account.NewHandlers(userSvc)
	userHandlers := admin.NewUserHandlers(userSvc)
	auditHandlers := admin.NewAuditHandlers(auditQuery)
	sedekahProxy := sedekah.NewProxy(cfg.Sedekah.UpstreamURL, cfg.Sedekah.Timeout, logger.With("component", "sedekah"))

	// Rate limiters
	newLimiter := func(name string, rl middleware.RateLimitConfig) middleware.Limiter {
		if deps.Redis != nil {
			return middleware.NewRedisLimiter(deps.Redis, rateLimitKeyPrefix+name+":", rl)
		}
		mem := middleware.NewRateLimiter(rl)
		bg.rateLimiters = append(bg.rateLimiters, mem)
		return mem
	}
	generalConfig := middleware.DefaultRateLimitConfig()
	if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
		generalConfig.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
	}
	if cfg.Security.RateLimiting.Burst > 0 {
		generalConfig.BurstSize = cfg.Security.RateLimiting.Burst
	}
	rateLimited := func(name string, rl middleware.RateLimitConfig) gin.HandlerFunc {
		if !cfg.Security.RateLimiting.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimitMiddleware(newLimiter(name, rl))
	}
	generalLimit := rateLimited("general", generalConfig)
	authLimit := rateLimited("auth", middleware.AuthRateLimitConfig())
	uploadLimit := rateLimited("upload", middleware.UploadRateLimitConfig())

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware(logger.With("component", "http")))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(src))

	// Readiness check endpoint (includes storage backend probe)
	router.GET("/ready", readinessHandler(src, deps.Storage, deps.Redis))

	// API version
	router.GET("/version", versionHandler(deps.Version))

	// The donation QR proxy sets its own permissive CORS header.
	router.GET("/api/sedekah", generalLimit, sedekahProxy.Handler())

	apiV1 := router.Group("/api/v1")
	apiV1.Use(generalLimit)

	// File serving endpoint for local storage; other backends hand out their
	// own URLs.
	if deps.Storage != nil && cfg.Storage.DefaultBackend == "local" {
		filesGroup := apiV1.Group("/files")
		filesGroup.Use(middleware.SecurityHeadersMiddleware(middleware.FileSecurityHeadersConfig()))
		filesGroup.GET("/*filepath", files.ServeFileHandler(deps.Storage, cfg.Storage.CacheControl))
	}

	apiV1.Use(middleware.Authenticate())
	apiV1.Use(middleware.AuditContext())
	{
		// Public directory reads
		apiV1.GET("/mosques", mosqueHandlers.ListHandler())
		apiV1.GET("/mosques/all", mosqueHandlers.ListAllHandler())
		apiV1.GET("/mosques/:id", mosqueHandlers.GetHandler())
		apiV1.GET("/mosques/:id/activities", mosqueHandlers.ActivitiesHandler())
		apiV1.GET("/amenities", amenityHandlers.ListHandler())

		// Public authentication endpoints (no auth required, but rate limited)
		authGroup := apiV1.Group("/auth")
		authGroup.Use(authLimit)
		{
			authGroup.POST("/register", accountHandlers.RegisterHandler())
			authGroup.POST("/login", accountHandlers.LoginHandler())
			authGroup.POST("/password-reset", accountHandlers.PasswordResetHandler())
		}

		// Authenticated-only endpoints
		authenticated := apiV1.Group("")
		authenticated.Use(middleware.RequireAuth())
		{
			authenticated.GET("/me", accountHandlers.MeHandler())
			authenticated.PATCH("/me", accountHandlers.UpdateProfileHandler())
			authenticated.POST("/me/password", authLimit, accountHandlers.UpdatePasswordHandler())
			authenticated.GET("/me/submissions", submissionHandlers.ListMineHandler())

			authenticated.POST("/submissions", submissionHandlers.CreateHandler())
			authenticated.GET("/submissions/:id", submissionHandlers.GetHandler())
		}

		// Admin endpoints
		adminGroup := apiV1.Group("/admin")
		adminGroup.Use(middleware.RequireAdmin())
		{
			adminGroup.GET("/mosques", mosqueHandlers.AdminListHandler())
			adminGroup.GET("/mosques/export", mosqueHandlers.ExportHandler())
			adminGroup.POST("/mosques", uploadLimit, mosqueHandlers.CreateHandler())
			adminGroup.PATCH("/mosques/:id", uploadLimit, mosqueHandlers.UpdateHandler())
			adminGroup.DELETE("/mosques/:id", mosqueHandlers.DeleteHandler())
			adminGroup.GET("/mosques/:id/amenities", amenityHandlers.ListByMosqueHandler())
			adminGroup.PUT("/mosques/:id/amenities", amenityHandlers.ReplaceHandler())

			adminGroup.POST("/mosque-amenities", amenityHandlers.CreateRowHandler())
			adminGroup.PATCH("/mosque-amenities/:id", amenityHandlers.UpdateRowHandler())
			adminGroup.DELETE("/mosque-amenities/:id", amenityHandlers.DeleteRowHandler())
			adminGroup.POST("/amenities", amenityHandlers.CreateCustomHandler())

			adminGroup.GET("/activities/:id", activityHandlers.GetHandler())
			adminGroup.POST("/activities", activityHandlers.CreateHandler())
			adminGroup.PATCH("/activities/:id", activityHandlers.UpdateHandler())
			adminGroup.DELETE("/activities/:id", activityHandlers.DeleteHandler())

			adminGroup.GET("/submissions", submissionHandlers.ListHandler())
			adminGroup.POST("/submissions/:id/approve", submissionHandlers.ApproveHandler())
			adminGroup.POST("/submissions/:id/reject", submissionHandlers.RejectHandler())

			adminGroup.GET("/users", userHandlers.ListUsersHandler())
			adminGroup.GET("/users/:id", userHandlers.GetUserHandler())
			adminGroup.PATCH("/users/:id", userHandlers.UpdateUserHandler())
			adminGroup.DELETE("/users/:id", userHandlers.DeleteUserHandler())

			adminGroup.GET("/audit-logs", auditHandlers.ListHandler())
			adminGroup.GET("/audit-logs/:id", auditHandlers.GetHandler())
		}
	}

	return router, bg
}

func ping(ctx context.Context, src recordsource.Source) error {
	p, ok := src.(recordsource.Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.Ping(ctx)
}

// @Summary      Health check
// @Description  Returns the health status of the service, including Record Source connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: record source unreachable"
// @Router       /health [get]
func healthCheckHandler(src recordsource.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ping(c.Request.Context(), src); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "record source unreachable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Probes the Record Source, the storage backend and Redis when configured.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
func readinessHandler(src recordsource.Source, store storage.Storage, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{}
		notReady := func(name, msg string) {
			checks[name] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  msg,
			})
		}

		if err := ping(ctx, src); err != nil {
			notReady("record_source", "record source not ready")
			return
		}
		checks["record_source"] = "healthy"

		if store != nil {
			if _, err := store.Exists(ctx, readinessProbePath); err != nil {
				notReady("storage", "storage backend not ready")
				return
			}
			checks["storage"] = "healthy"
		}

		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				notReady("redis", "redis not ready")
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
func versionHandler(version string) gin.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     version,
			"api_version": "v1",
		})
	}
}
