package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/badalhalder99/newVital-sub000/internal/application/container"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// SystemHandlers exposes health, engine status, and log-level endpoints.
type SystemHandlers struct {
	container *container.Container
}

// NewSystemHandlers creates new system handlers.
func NewSystemHandlers(container *container.Container) *SystemHandlers {
	return &SystemHandlers{container: container}
}

// GetHealth handles GET /api/v1/health.
func (h *SystemHandlers) GetHealth(c *gin.Context) {
	if err := h.container.DB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStatus handles GET /api/v1/status: a snapshot of the tracking engine's
// internals for the dashboard.
func (h *SystemHandlers) GetStatus(c *gin.Context) {
	tracker := h.container.Tracker
	pending := tracker.Delivery.PendingRecords()

	status := gin.H{
		"identityDegraded": tracker.Identity.Degraded(),
		"pendingRetries":   len(pending),
		"replayClients":    h.container.Broadcaster.ClientCount(c.Query("page")),
	}
	if sess := tracker.Segmenter.CurrentSession(); sess != nil {
		status["sessionId"] = sess.ID
		status["visitNumber"] = sess.VisitNumber
	}
	c.JSON(http.StatusOK, status)
}

// GetLogLevels handles GET /api/v1/logs/levels.
func (h *SystemHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.container.Logger.GetChannelLevels())
}

// SetLogLevel handles POST /api/v1/logs/levels.
func (h *SystemHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var level slog.Level
	switch req.Level {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log level specified"})
		return
	}

	if err := h.container.Logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set log level", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": fmt.Sprintf("Log level for channel '%s' set to '%s'", req.Channel, req.Level)})
}
