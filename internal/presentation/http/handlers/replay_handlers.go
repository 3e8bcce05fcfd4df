package handlers

import (
	"net/http"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/application/services"
	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/messaging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	replayWriteWait  = 10 * time.Second
	replayPingPeriod = 30 * time.Second
)

var replayUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ReplayHandlers streams session replay animations to dashboard clients over
// WebSocket. Each connection gets its own replay engine; the broadcaster
// fans frames out to everyone watching the same page.
type ReplayHandlers struct {
	heatmap     *services.HeatmapService
	broadcaster *messaging.ReplayBroadcaster
	logger      *logging.ChanneledLogger
}

// NewReplayHandlers creates new replay stream handlers.
func NewReplayHandlers(heatmapSvc *services.HeatmapService, broadcaster *messaging.ReplayBroadcaster, logger *logging.ChanneledLogger) *ReplayHandlers {
	return &ReplayHandlers{heatmap: heatmapSvc, broadcaster: broadcaster, logger: logger}
}

// replayControl is the client-to-server control message on a replay socket.
type replayControl struct {
	Action string `json:"action"` // "start" or "stop"
}

// broadcastSink adapts the broadcaster to the replay engine's sink.
type broadcastSink struct {
	broadcaster *messaging.ReplayBroadcaster
	page        string
}

func (s broadcastSink) Reveal(frame services.RevealFrame) {
	s.broadcaster.Broadcast(s.page, "reveal", frame)
}

func (s broadcastSink) Instant(points []heatmap.Point) {
	s.broadcaster.Broadcast(s.page, "instant", gin.H{"points": points})
}

func (s broadcastSink) Finished(completed bool) {
	s.broadcaster.Broadcast(s.page, "finished", gin.H{"completed": completed})
}

// HandleReplaySocket handles GET /ws/replay. The client names the page and
// render surface in the query string, then drives the replay with start/stop
// control messages.
func (h *ReplayHandlers) HandleReplaySocket(c *gin.Context) {
	page := c.Query("page")
	if page == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page query parameter is required"})
		return
	}
	surface, ok := parseSurface(c)
	if !ok {
		return
	}

	conn, err := replayUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.HTTP().Warn("Replay socket upgrade failed", "error", err.Error())
		return
	}

	client := messaging.NewStreamClient(conn, page)
	h.broadcaster.Register(client)

	engine := services.NewReplayEngine(h.logger).WithTone(c.Query("tone") == "1")
	sink := broadcastSink{broadcaster: h.broadcaster, page: page}

	go h.writePump(client)

	defer func() {
		engine.Stop()
		h.broadcaster.Unregister(client)
		conn.Close()
	}()

	for {
		var control replayControl
		if err := conn.ReadJSON(&control); err != nil {
			return
		}

		switch control.Action {
		case "start":
			dataset := h.heatmap.FetchDataset(c.Request.Context(), page, nil, nil)
			scaled := &heatmap.Dataset{
				Page:   dataset.Page,
				Points: services.ScalePoints(dataset, surface),
				Max:    dataset.MaxValue(),
			}
			if err := engine.Start(scaled, surface, sink); err != nil {
				h.broadcaster.Broadcast(page, "error", gin.H{"message": err.Error()})
			}
		case "stop":
			engine.Stop()
		}
	}
}

// writePump drains the client's send queue onto the socket, keeping the
// connection alive with pings.
func (h *ReplayHandlers) writePump(client *messaging.StreamClient) {
	ticker := time.NewTicker(replayPingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(replayWriteWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(replayWriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
