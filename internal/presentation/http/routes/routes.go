// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/badalhalder99/newVital-sub000/internal/application/container"
	"github.com/badalhalder99/newVital-sub000/internal/presentation/http/handlers"
	"github.com/badalhalder99/newVital-sub000/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestLogger(container.Logger))

	// Initialize handlers
	interactionHandlers := handlers.NewInteractionHandlers(container.InteractionRepo, container.Logger)
	visitHandlers := handlers.NewVisitHandlers(container.VisitRepo, container.Logger)
	migrationHandlers := handlers.NewMigrationHandlers(container.InteractionRepo, container.VisitRepo, container.Logger)
	trackHandlers := handlers.NewTrackHandlers(container.Tracker, container.Logger)
	heatmapHandlers := handlers.NewHeatmapHandlers(container.Heatmap, container.Tracker.Collector, container.Logger)
	replayHandlers := handlers.NewReplayHandlers(container.Heatmap, container.Broadcaster, container.Logger)
	systemHandlers := handlers.NewSystemHandlers(container)

	// WebSocket streams live at top level
	r.GET("/ws/track", trackHandlers.HandleTrackSocket)
	r.GET("/ws/replay", replayHandlers.HandleReplaySocket)

	api := r.Group("/api/v1")
	{
		// Collector ingest endpoints
		api.POST("/interactions", interactionHandlers.PostInteraction)
		api.POST("/visits", visitHandlers.PostVisit)
		api.POST("/migrate-batch", migrationHandlers.PostMigrateBatch)

		// Collector read endpoints
		api.GET("/interactions", interactionHandlers.GetInteractions)

		// Engine-side ingest for embedders without a WebSocket
		track := api.Group("/track")
		{
			track.POST("/event", trackHandlers.PostEvent)
			track.POST("/visible", trackHandlers.PostVisible)
		}

		// Heatmap read endpoints
		heatmapGroup := api.Group("/heatmap")
		{
			heatmapGroup.GET("", heatmapHandlers.GetHeatmap)
			heatmapGroup.GET("/overlay", heatmapHandlers.GetOverlay)
			heatmapGroup.GET("/live", heatmapHandlers.GetLiveOverlay)
		}

		// System endpoints
		api.GET("/health", systemHandlers.GetHealth)
		api.GET("/status", systemHandlers.GetStatus)
		api.GET("/logs/levels", systemHandlers.GetLogLevels)
		api.POST("/logs/levels", systemHandlers.SetLogLevel)
	}

	return r
}
