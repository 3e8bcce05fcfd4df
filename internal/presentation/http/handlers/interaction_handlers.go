// Package handlers provides HTTP handlers for the presentation layer.
package handlers

import (
	"net/http"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/analytics"
	"github.com/gin-gonic/gin"
)

// InteractionHandlers handles the interaction ingest and read endpoints.
type InteractionHandlers struct {
	interactions *analytics.SQLInteractionRepository
	logger       *logging.ChanneledLogger
}

// NewInteractionHandlers creates new interaction handlers.
func NewInteractionHandlers(interactions *analytics.SQLInteractionRepository, logger *logging.ChanneledLogger) *InteractionHandlers {
	return &InteractionHandlers{interactions: interactions, logger: logger}
}

// PostInteraction handles POST /api/v1/interactions.
func (h *InteractionHandlers) PostInteraction(c *gin.Context) {
	var payload collectorapi.InteractionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interaction payload", "details": err.Error()})
		return
	}
	if payload.Event.Page == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page is required"})
		return
	}

	if err := h.interactions.Create(&payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store interaction"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetInteractions handles GET /api/v1/interactions. The page query parameter
// is required; startDate and endDate are optional RFC3339 bounds.
func (h *InteractionHandlers) GetInteractions(c *gin.Context) {
	page := c.Query("page")
	if page == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page query parameter is required"})
		return
	}

	startDate, ok := parseDateQuery(c, "startDate")
	if !ok {
		return
	}
	endDate, ok := parseDateQuery(c, "endDate")
	if !ok {
		return
	}

	dataset, err := h.interactions.FetchPoints(page, startDate, endDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load interactions"})
		return
	}

	response := collectorapi.InteractionsResponse{
		Data:                  dataset.Points,
		Max:                   dataset.Max,
		CapturedViewportWidth: dataset.CapturedViewportWidth,
		CapturedPageHeight:    dataset.CapturedPageHeight,
	}
	if len(dataset.Points) == 0 {
		response.Data = []heatmap.Point{}
		response.Message = "No data yet"
	}
	c.JSON(http.StatusOK, response)
}

// parseDateQuery reads an optional RFC3339 query parameter, writing a 400
// response when the value is present but malformed.
func parseDateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be RFC3339", "details": err.Error()})
		return nil, false
	}
	return &parsed, true
}
