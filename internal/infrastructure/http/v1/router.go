// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"memberbase/internal/core/settings"
	"memberbase/internal/domain/callouts"
	"memberbase/internal/domain/contacts"
	"memberbase/internal/infrastructure/http/v1/handlers"
	"memberbase/internal/infrastructure/http/v1/middleware"
	"memberbase/internal/infrastructure/storage/postgres"
	"memberbase/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool     *postgres.Pool
	Logger   *logger.Logger
	Settings *settings.Store

	ContactService *contacts.Service
	CalloutService *callouts.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no principal required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1. The principal middleware is tolerant of anonymous requests;
	// row-level rules decide what each caller may touch.
	api := router.Group("/api/v1")
	api.Use(middleware.Principal())
	{
		base := handlers.NewBaseHandler()

		contactHandler := handlers.NewContactHandler(base, cfg.ContactService)
		contactHandler.RegisterRoutes(api.Group("/contacts"))

		contactTags := handlers.NewTagHandler(base, cfg.ContactService.Tags())
		contactTags.RegisterRoutes(api.Group("/contact-tags"))

		calloutHandler := handlers.NewCalloutResponseHandler(base, cfg.CalloutService)
		calloutHandler.RegisterRoutes(api.Group("/callout-responses"))

		responseTags := handlers.NewTagHandler(base, cfg.CalloutService.Tags())
		responseTags.RegisterRoutes(api.Group("/callout-response-tags"))

		settingsHandler := handlers.NewSettingsHandler(base, cfg.Settings)
		settingsHandler.RegisterRoutes(api.Group("/settings"))
	}

	return router
}
