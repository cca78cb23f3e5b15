// Package api wires together all HTTP routes for the HelpOrbit API.
//
// Route grouping:
//   - /health and /ready are unauthenticated probes.
//   - /api/v1/auth credential endpoints are public and sit behind a stricter
//     rate limiter than the rest of the API.
//   - Organization discovery (search, slug check, public profile) accepts
//     anonymous callers.
//   - Everything under /api/v1/orgs/:slug/... requires a session token and
//     resolves the organization from the slug. Role checks happen in the
//     service layer, so handlers stay thin.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/helporbit/helporbit/internal/api/accounts"
	"github.com/helporbit/helporbit/internal/api/invitations"
	"github.com/helporbit/helporbit/internal/api/organizations"
	"github.com/helporbit/helporbit/internal/api/tickets"
	"github.com/helporbit/helporbit/internal/config"
	"github.com/helporbit/helporbit/internal/middleware"
	"github.com/helporbit/helporbit/internal/services"
	"github.com/helporbit/helporbit/internal/storage"
)

// Pinger reports database connectivity. *sql.DB and *sqlx.DB implement it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies are the collaborators the router mounts handlers over.
type Dependencies struct {
	Services *services.Services
	Users    middleware.UserLookup
	// AuditLog receives audit entries; nil or cfg.Audit.Enabled=false turns
	// audit logging off.
	AuditLog middleware.AuditWriter
	DB       Pinger
	Storage  storage.Storage
	// Redis, when set, backs the rate limiters so limits hold across
	// replicas. Without it each process keeps its own token buckets.
	Redis *redis.Client
}

// BackgroundServices holds the goroutines the router starts. The caller
// (cmd/server) calls Shutdown after the HTTP server has drained.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{}
	svc := deps.Services

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", healthCheckHandler(deps.DB))
	router.GET("/ready", readinessHandler(deps.DB, deps.Storage))

	generalLimit, authLimit := rateLimiters(cfg, deps.Redis, bg)

	apiV1 := router.Group("/api/v1")
	if generalLimit != nil {
		apiV1.Use(middleware.RateLimitMiddleware(generalLimit))
	}
	if cfg.Audit.Enabled && deps.AuditLog != nil {
		// Reads its context after the handler ran, so it sees the user and
		// organization set further down the chain.
		apiV1.Use(middleware.AuditMiddleware(deps.AuditLog, cfg.Audit))
	}

	requireAuth := middleware.AuthMiddleware(deps.Users)
	optionalAuth := middleware.OptionalAuthMiddleware(deps.Users)
	resolveOrg := middleware.OrganizationMiddleware(svc.Organizations)

	// Accounts
	accountHandlers := accounts.NewHandlers(svc.Accounts)
	authGroup := apiV1.Group("/auth")
	{
		credentials := authGroup.Group("")
		if authLimit != nil {
			credentials.Use(middleware.RateLimitMiddleware(authLimit))
		}
		credentials.POST("/sign-up", accountHandlers.SignUpHandler())
		credentials.POST("/sign-in", accountHandlers.SignInHandler())
		credentials.POST("/verify-email", accountHandlers.VerifyEmailHandler())
		credentials.POST("/forgot-password", accountHandlers.ForgotPasswordHandler())
		credentials.POST("/reset-password", accountHandlers.ResetPasswordHandler())

		authGroup.GET("/session", requireAuth, accountHandlers.SessionHandler())
		authGroup.PUT("/active-organization", requireAuth, accountHandlers.SetActiveOrganizationHandler())
	}

	// Organizations
	orgHandlers := organizations.NewHandlers(svc.Organizations, svc.Members)
	apiV1.GET("/orgs/search", orgHandlers.SearchHandler())
	apiV1.GET("/orgs/check-slug", orgHandlers.CheckSlugHandler())
	apiV1.GET("/orgs/:slug", optionalAuth, orgHandlers.GetHandler())

	authenticated := apiV1.Group("")
	authenticated.Use(requireAuth)
	{
		authenticated.GET("/orgs", orgHandlers.ListMineHandler())
		authenticated.POST("/orgs", orgHandlers.CreateHandler())

		invitationHandlers := invitations.NewHandlers(svc.Invitations)
		authenticated.GET("/invitations", invitationHandlers.ListMineHandler())
		authenticated.GET("/invitations/:id", invitationHandlers.GetHandler())
		authenticated.POST("/invitations/:id/accept", invitationHandlers.AcceptHandler())
		authenticated.POST("/invitations/:id/reject", invitationHandlers.RejectHandler())

		orgGroup := authenticated.Group("/orgs/:slug")
		orgGroup.Use(resolveOrg)
		{
			orgGroup.PATCH("", orgHandlers.UpdateHandler())
			orgGroup.DELETE("", orgHandlers.DeleteHandler())
			orgGroup.POST("/leave", orgHandlers.LeaveHandler())
			orgGroup.GET("/audit-logs", organizations.AuditLogsHandler(svc.Audit))

			orgGroup.GET("/members", orgHandlers.ListMembersHandler())
			orgGroup.POST("/members", orgHandlers.AddMemberHandler())
			orgGroup.PATCH("/members/:member", orgHandlers.UpdateMemberRoleHandler())
			orgGroup.DELETE("/members/:member", orgHandlers.RemoveMemberHandler())

			orgGroup.GET("/invitations", invitationHandlers.ListHandler())
			orgGroup.POST("/invitations", invitationHandlers.CreateHandler())
			orgGroup.POST("/invitations/:id/cancel", invitationHandlers.CancelHandler())
			orgGroup.POST("/invitations/:id/resend", invitationHandlers.ResendHandler())

			ticketHandlers := tickets.NewHandlers(svc.Tickets, cfg.App.MaxAttachmentBytes())
			ticketGroup := orgGroup.Group("/tickets")
			{
				ticketGroup.GET("", ticketHandlers.ListHandler())
				ticketGroup.POST("", ticketHandlers.CreateHandler())
				ticketGroup.GET("/stats", ticketHandlers.StatsHandler())
				ticketGroup.GET("/:id", ticketHandlers.GetHandler())
				ticketGroup.PATCH("/:id", ticketHandlers.UpdateHandler())
				ticketGroup.DELETE("/:id", ticketHandlers.DeleteHandler())
				ticketGroup.POST("/:id/assign", ticketHandlers.AssignHandler())
				ticketGroup.POST("/:id/status", ticketHandlers.StatusHandler())

				ticketGroup.GET("/:id/comments", ticketHandlers.ListCommentsHandler())
				ticketGroup.POST("/:id/comments", ticketHandlers.AddCommentHandler())
				ticketGroup.DELETE("/:id/comments/:commentId", ticketHandlers.DeleteCommentHandler())

				ticketGroup.GET("/:id/attachments", ticketHandlers.ListAttachmentsHandler())
				ticketGroup.POST("/:id/attachments", ticketHandlers.UploadAttachmentHandler())
				ticketGroup.GET("/:id/attachments/:attachmentId", ticketHandlers.GetAttachmentHandler())
				ticketGroup.GET("/:id/attachments/:attachmentId/download", ticketHandlers.DownloadAttachmentHandler())
				ticketGroup.DELETE("/:id/attachments/:attachmentId", ticketHandlers.DeleteAttachmentHandler())
			}
		}
	}

	return router, bg
}

// rateLimiters builds the general and credential-endpoint limiters. Both are
// nil when rate limiting is disabled.
func rateLimiters(cfg *config.Config, client *redis.Client, bg *BackgroundServices) (general, credentials middleware.Limiter) {
	rl := cfg.Security.RateLimiting
	if !rl.Enabled {
		return nil, nil
	}

	generalCfg := middleware.DefaultRateLimitConfig()
	if rl.RequestsPerMinute > 0 {
		generalCfg.RequestsPerMinute = rl.RequestsPerMinute
	}
	if rl.Burst > 0 {
		generalCfg.BurstSize = rl.Burst
	}
	authCfg := middleware.AuthRateLimitConfig()
	if rl.AuthRequestsPerMinute > 0 {
		authCfg.RequestsPerMinute = rl.AuthRequestsPerMinute
	}

	if client != nil {
		return middleware.NewRedisRateLimiter(client, "ratelimit:api", generalCfg),
			middleware.NewRedisRateLimiter(client, "ratelimit:auth", authCfg)
	}

	clock := clockwork.NewRealClock()
	g := middleware.NewRateLimiter(generalCfg, clock)
	a := middleware.NewRateLimiter(authCfg, clock)
	bg.rateLimiters = append(bg.rateLimiters, g, a)
	return g, a
}

// healthCheckHandler is the liveness probe: it only checks the database.
// GET /health
func healthCheckHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler also probes the attachment storage backend so a
// readiness gate fails while uploads would error.
// GET /ready
func readinessHandler(db Pinger, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// A known-absent path exercises credentials and connectivity without
		// creating state.
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// LoggerMiddleware logs one structured record per request. The output format
// (JSON or text) follows the default slog handler set up by telemetry.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", status),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		}
		if userID := c.GetString(middleware.UserIDKey); userID != "" {
			attrs = append(attrs, slog.String("user_id", userID))
		}
		if cfg.Server.GinMode == gin.DebugMode {
			attrs = append(attrs, slog.String("route", c.FullPath()))
		}
		slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
