package handlers

import (
	"net/http"

	"github.com/badalhalder99/newVital-sub000/internal/application/services"
	"github.com/badalhalder99/newVital-sub000/internal/domain/events"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var trackUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TrackHandlers feeds raw page events into the tracking engine, over a
// WebSocket stream or one event at a time over plain HTTP.
type TrackHandlers struct {
	tracker *services.TrackerService
	logger  *logging.ChanneledLogger
}

// NewTrackHandlers creates new tracking ingest handlers.
func NewTrackHandlers(tracker *services.TrackerService, logger *logging.ChanneledLogger) *TrackHandlers {
	return &TrackHandlers{tracker: tracker, logger: logger}
}

// HandleTrackSocket handles GET /ws/track. Each JSON message on the socket
// is one raw event; the subscription lives as long as the connection.
func (h *TrackHandlers) HandleTrackSocket(c *gin.Context) {
	conn, err := trackUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.HTTP().Warn("Track socket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	source := events.NewChannelSource(64)
	sub := h.tracker.StartCollecting(source)
	defer sub.Dispose()

	h.logger.Collect().Info("Track socket connected", "remote", conn.RemoteAddr().String())

	for {
		var ev events.RawEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Collect().Warn("Track socket read failed", "error", err.Error())
			}
			return
		}
		if ev.Page == "" {
			continue
		}
		if !source.Emit(ev) {
			h.logger.Collect().Debug("Track socket event dropped, collector behind", "page", ev.Page)
		}
	}
}

// PostEvent handles POST /api/v1/track/event for embedders without a
// WebSocket, processing the event synchronously.
func (h *TrackHandlers) PostEvent(c *gin.Context) {
	var ev events.RawEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event", "details": err.Error()})
		return
	}
	if ev.Page == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page is required"})
		return
	}

	h.tracker.Collector.Handle(ev)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PostVisible handles POST /api/v1/track/visible, the page-visibility signal
// that triggers an immediate retry-queue drain.
func (h *TrackHandlers) PostVisible(c *gin.Context) {
	h.tracker.NotifyVisible()
	c.JSON(http.StatusOK, gin.H{"success": true})
}
