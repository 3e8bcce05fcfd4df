package handlers

import (
	"net/http"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/analytics"
	"github.com/gin-gonic/gin"
)

// MigrationHandlers accepts batches of locally buffered tracking data from
// engines that ran while the collector was unreachable.
type MigrationHandlers struct {
	interactions *analytics.SQLInteractionRepository
	visits       *analytics.SQLVisitRepository
	logger       *logging.ChanneledLogger
}

// NewMigrationHandlers creates new migration handlers.
func NewMigrationHandlers(interactions *analytics.SQLInteractionRepository, visits *analytics.SQLVisitRepository, logger *logging.ChanneledLogger) *MigrationHandlers {
	return &MigrationHandlers{interactions: interactions, visits: visits, logger: logger}
}

// PostMigrateBatch handles POST /api/v1/migrate-batch. Visitor records are
// deduplicated by session ID, so an engine that retries a batch it already
// shipped cannot double-count.
func (h *MigrationHandlers) PostMigrateBatch(c *gin.Context) {
	var request collectorapi.MigrateBatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid migration batch", "details": err.Error()})
		return
	}

	if request.IsEmpty() {
		c.JSON(http.StatusOK, collectorapi.MigrateBatchResponse{Success: true})
		return
	}

	start := time.Now()
	migrated := 0

	for page, points := range request.HeatmapData {
		if page == "" || len(points) == 0 {
			continue
		}
		count, err := h.interactions.CreateBatch(page, points)
		if err != nil {
			h.logger.Database().Error("Migration batch insert failed", "error", err.Error(), "page", page)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to migrate heatmap data"})
			return
		}
		migrated += count
	}

	if len(request.VisitorRecords) > 0 {
		count, err := h.visits.CreateVisitorRecords(request.VisitorRecords)
		if err != nil {
			h.logger.Database().Error("Migration visitor insert failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to migrate visitor records"})
			return
		}
		migrated += count
	}

	h.logger.HTTP().Info("Migration batch accepted",
		"pages", len(request.HeatmapData),
		"visitorRecords", len(request.VisitorRecords),
		"migratedCount", migrated,
		"duration", time.Since(start))
	c.JSON(http.StatusOK, collectorapi.MigrateBatchResponse{Success: true, MigratedCount: migrated})
}
