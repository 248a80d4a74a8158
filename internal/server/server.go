package server

import (
	"context"
	"net/http"
	"time"

	_ "github.com/cyphera/cyphera-notify/docs"
	"github.com/cyphera/cyphera-notify/internal/audit"
	"github.com/cyphera/cyphera-notify/internal/auth"
	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/dispatch"
	"github.com/cyphera/cyphera-notify/internal/handlers"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/cyphera/cyphera-notify/internal/middleware"
	"github.com/cyphera/cyphera-notify/internal/roles"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the routes are built from. They are
// created by InitializeHandlers, or directly in tests.
type Dependencies struct {
	Config       Config
	Sender       dispatch.Sender
	Verifier     auth.Verifier
	RoleStore    roles.Store
	AuditStore   audit.Store
	HealthChecks map[string]handlers.Pinger

	closers []func()
	stop    chan struct{}
}

// Close releases every resource opened by InitializeHandlers and stops the
// rate limiter cleanup.
func (d *Dependencies) Close() {
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *Dependencies) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

// InitializeHandlers resolves secrets and opens the email provider, the
// credential verifier and the role and audit stores described by cfg.
func InitializeHandlers(ctx context.Context, cfg Config) (*Dependencies, error) {
	log := logger.OrNop(nil)
	deps := &Dependencies{
		Config:       cfg,
		HealthChecks: make(map[string]handlers.Pinger),
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	secrets := newSecretsClient(awsCfg, log)

	deps.Sender, err = newSender(ctx, cfg, secrets, log)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Verifier, err = newVerifier(ctx, cfg, secrets, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}

	if err := initStores(ctx, cfg, awsCfg, secrets, deps, log); err != nil {
		deps.Close()
		return nil, err
	}

	log.Info("Dependencies initialized",
		zap.String("stage", cfg.Stage),
		zap.String("email_provider", cfg.EmailProvider),
		zap.String("pacing", cfg.Pacing),
		zap.Int("max_batch_size", cfg.MaxBatchSize),
	)
	return deps, nil
}

// InitializeRoutes registers the middleware chain and every route on router.
func InitializeRoutes(router *gin.Engine, deps *Dependencies) {
	cfg := deps.Config
	log := logger.OrNop(nil)

	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	router.Use(middleware.CorrelationIDMiddleware())
	router.Use(middleware.RequestLoggingMiddleware(cfg.Stage != constants.StageProd))
	router.Use(middleware.Recovery())
	router.Use(configureCORS(cfg))

	if deps.stop == nil {
		deps.stop = make(chan struct{})
	}
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	rateLimiter.StartCleanup(time.Minute, deps.stop)
	router.Use(rateLimiter.Middleware())

	// Add Swagger endpoint
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", handlers.NewHealthHandler(deps.HealthChecks).Health)

	roleService := roles.NewService(deps.RoleStore, log)
	authenticator := auth.NewAuthenticator(deps.Verifier, roleService, log)

	bulkHandler := handlers.NewBulkNotificationHandler(
		dispatch.NewValidator(cfg.MaxBatchSize),
		authenticator,
		dispatch.NewDispatcher(deps.Sender, dispatch.WithPacer(newPacer(cfg)), dispatch.WithLogger(log)),
		audit.NewRecorder(deps.AuditStore, log),
	)
	registrationHandler := handlers.NewRegistrationHandler(deps.Sender)
	roleHandler := handlers.NewRoleHandler(roleService)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public routes
		v1.POST("/registrations/confirmation", registrationHandler.SendRegistrationConfirmation)

		// The bulk endpoint authenticates inside the handler so that request
		// validation runs first.
		v1.POST("/notifications/bulk", bulkHandler.SendBulkNotification)

		// Protected routes (authentication required)
		protected := v1.Group("/")
		protected.Use(authenticator.RequireAuth())
		{
			protected.GET("/roles/me", roleHandler.GetMyRole)

			// Admin-only routes
			admin := protected.Group("/admin")
			admin.Use(authenticator.RequireAdminRole())
			{
				admin.PUT("/roles", roleHandler.AssignRole)
			}
		}
	}
}

func newPacer(cfg Config) dispatch.Pacer {
	if cfg.Pacing == constants.PacingTokenBucket {
		return dispatch.NewTokenBucket(float64(cfg.RatePerSecond), cfg.Burst, nil)
	}
	return dispatch.NewFixedStagger(cfg.StaggerInterval, nil)
}

// configureCORS returns a configured CORS middleware. Only the configured
// origins are allowed; there is no wildcard fallback.
func configureCORS(cfg Config) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = defaultCORSOrigins
	}
	if len(cfg.CORSAllowedMethods) > 0 {
		corsConfig.AllowMethods = cfg.CORSAllowedMethods
	}
	if len(cfg.CORSAllowedHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.CORSAllowedHeaders
	}
	corsConfig.ExposeHeaders = []string{middleware.CorrelationIDHeader}
	corsConfig.AllowCredentials = cfg.CORSAllowCredentials
	corsConfig.MaxAge = 12 * time.Hour

	return cors.New(corsConfig)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
