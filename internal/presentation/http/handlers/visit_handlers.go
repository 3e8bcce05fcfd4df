package handlers

import (
	"net/http"

	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/analytics"
	"github.com/gin-gonic/gin"
)

// VisitHandlers handles visit summary ingest.
type VisitHandlers struct {
	visits *analytics.SQLVisitRepository
	logger *logging.ChanneledLogger
}

// NewVisitHandlers creates new visit handlers.
func NewVisitHandlers(visits *analytics.SQLVisitRepository, logger *logging.ChanneledLogger) *VisitHandlers {
	return &VisitHandlers{visits: visits, logger: logger}
}

// PostVisit handles POST /api/v1/visits.
func (h *VisitHandlers) PostVisit(c *gin.Context) {
	var payload collectorapi.VisitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid visit payload", "details": err.Error()})
		return
	}
	if payload.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}
	if payload.Reason != collectorapi.VisitOpened && payload.Reason != collectorapi.VisitClosed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason must be opened or closed"})
		return
	}

	if err := h.visits.Create(&payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store visit"})
		return
	}

	h.logger.HTTP().Debug("Visit recorded",
		"sessionId", payload.SessionID,
		"reason", string(payload.Reason),
		"visitNumber", payload.VisitNumber)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
