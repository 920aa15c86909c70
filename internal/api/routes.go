package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jroosing/nettest/internal/api/handlers"
	"github.com/jroosing/nettest/internal/api/middleware"
	"github.com/jroosing/nettest/internal/config"
)

// RegisterRoutes mounts the status endpoints. /health stays public.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	api := r.Group("/api/v1")
	api.GET("/health", h.Health)

	protected := api.Group("")
	if cfg != nil && cfg.API.APIKey != "" {
		protected.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}
	protected.GET("/stats", h.Stats)
	protected.GET("/config", h.GetConfig)
	protected.GET("/profile", h.GetProfile)
}
