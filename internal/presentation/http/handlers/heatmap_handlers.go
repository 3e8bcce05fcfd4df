package handlers

import (
	"net/http"
	"strconv"

	"github.com/badalhalder99/newVital-sub000/internal/application/services"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
	"github.com/gin-gonic/gin"
)

// HeatmapHandlers serves static heatmap renders and overlay image exports.
type HeatmapHandlers struct {
	heatmap   *services.HeatmapService
	collector *services.CollectorService
	logger    *logging.ChanneledLogger
}

// NewHeatmapHandlers creates new heatmap read handlers.
func NewHeatmapHandlers(heatmapSvc *services.HeatmapService, collector *services.CollectorService, logger *logging.ChanneledLogger) *HeatmapHandlers {
	return &HeatmapHandlers{heatmap: heatmapSvc, collector: collector, logger: logger}
}

// GetHeatmap handles GET /api/v1/heatmap: the full dataset scaled onto the
// requested render surface, as JSON for dashboard canvases.
func (h *HeatmapHandlers) GetHeatmap(c *gin.Context) {
	page := c.Query("page")
	if page == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page query parameter is required"})
		return
	}
	surface, ok := parseSurface(c)
	if !ok {
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

	dataset := h.heatmap.FetchDataset(c.Request.Context(), page, startDate, endDate)
	c.JSON(http.StatusOK, h.heatmap.RenderInstant(dataset, surface))
}

// GetOverlay handles GET /api/v1/heatmap/overlay: the dataset rendered to a
// density overlay image.
func (h *HeatmapHandlers) GetOverlay(c *gin.Context) {
	page := c.Query("page")
	if page == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page query parameter is required"})
		return
	}
	surface, ok := parseSurface(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", config.HeatmapExportFormat)
	if format != "webp" && format != "png" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be webp or png"})
		return
	}

	dataset := h.heatmap.FetchDataset(c.Request.Context(), page, nil, nil)
	encoded, err := h.heatmap.ExportOverlay(dataset, surface, format)
	if err != nil {
		h.logger.Render().Error("Overlay export failed", "page", page, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render overlay"})
		return
	}

	contentType := "image/webp"
	if format == "png" {
		contentType = "image/png"
	}
	c.Data(http.StatusOK, contentType, encoded)
}

// GetLiveOverlay handles GET /api/v1/heatmap/live: the in-memory overlay
// point cloud the collector is accumulating right now.
func (h *HeatmapHandlers) GetLiveOverlay(c *gin.Context) {
	page := c.Query("page")
	if page == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page query parameter is required"})
		return
	}
	points := h.collector.OverlayPoints(page)
	c.JSON(http.StatusOK, gin.H{"page": page, "points": points})
}

// parseSurface reads the render surface dimensions from width/height query
// parameters, writing a 400 response on malformed values.
func parseSurface(c *gin.Context) (heatmap.Surface, bool) {
	surface := heatmap.Surface{Width: 1280, Height: 2000}
	if raw := c.Query("width"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "width must be a positive number"})
			return surface, false
		}
		surface.Width = v
	}
	if raw := c.Query("height"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "height must be a positive number"})
			return surface, false
		}
		surface.Height = v
	}
	return surface, true
}
