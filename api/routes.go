package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/bccstack/api/handlers"
	"github.com/customeros/bccstack/api/middleware"
	"github.com/customeros/bccstack/config"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, cfg *config.Config, log logger.Logger) error {
	if s == nil {
		panic("Services cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer(), log))

	apiHandlers, err := handlers.InitHandlers(handlers.Dependencies{
		RelayAVerifier:  s.RelayAVerifier,
		RelayBVerifier:  s.RelayBVerifier,
		Processor:       s.CaptureProcessor,
		MaxRequestBytes: cfg.CaptureConfig.MaxRequestBytes,
	}, log)
	if err != nil {
		return err
	}

	r.GET("/health", handlers.HealthCheck)

	appSource := cfg.AppConfig.AppSource
	api := r.Group("/v1")
	api.Use(middleware.RequestIdMiddleware())
	{
		inbound := api.Group("/inbound")

		// relays are authenticated by signature inside the handlers
		relays := inbound.Group("")
		relays.Use(middleware.IPRateLimitMiddleware(s.IPLimiter, log))
		relays.Use(middleware.CustomContextMiddleware(appSource))
		relays.Use(middleware.TracingMiddleware())
		{
			relays.POST("/relay-a", apiHandlers.RelayA.Receive())
			relays.POST("/relay-b", apiHandlers.RelayB.Receive())
		}

		tenant := inbound.Group("")
		tenant.Use(middleware.TenantAuthMiddleware(cfg.AppConfig.StatusJWTSecret))
		tenant.Use(middleware.CustomContextMiddleware(appSource))
		tenant.Use(middleware.TracingMiddleware())
		{
			tenant.GET("/status", handlers.CaptureStatus(s.StatusService))
		}
	}
	return nil
}
