// Package messaging provides the WebSocket broadcaster that streams replay
// frames and live overlay updates to connected dashboard clients.
package messaging

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/gorilla/websocket"
)

// StreamClient represents a single connected dashboard client watching one
// page's replay stream.
type StreamClient struct {
	Conn *websocket.Conn
	Page string
	Send chan []byte
}

// NewStreamClient wraps an upgraded connection with a buffered send queue.
func NewStreamClient(conn *websocket.Conn, page string) *StreamClient {
	return &StreamClient{Conn: conn, Page: page, Send: make(chan []byte, 32)}
}

// StreamMessage is the envelope every broadcast travels in.
type StreamMessage struct {
	Type string `json:"type"`
	Page string `json:"page"`
	Data any    `json:"data,omitempty"`
}

// ReplayBroadcaster manages page-scoped dashboard clients and fans replay
// frames out to them.
type ReplayBroadcaster struct {
	pageClients map[string]map[*StreamClient]bool
	register    chan *StreamClient
	unregister  chan *StreamClient
	logger      *logging.ChanneledLogger
	mu          sync.RWMutex
}

// NewReplayBroadcaster creates a new broadcaster instance.
func NewReplayBroadcaster(logger *logging.ChanneledLogger) *ReplayBroadcaster {
	return &ReplayBroadcaster{
		pageClients: make(map[string]map[*StreamClient]bool),
		register:    make(chan *StreamClient),
		unregister:  make(chan *StreamClient),
		logger:      logger,
	}
}

// Run starts the broadcaster's registration loop. This should be run as a
// goroutine; it exits when the context is cancelled.
func (b *ReplayBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			if _, ok := b.pageClients[client.Page]; !ok {
				b.pageClients[client.Page] = make(map[*StreamClient]bool)
			}
			b.pageClients[client.Page][client] = true
			b.mu.Unlock()
			b.logger.Render().Debug("Replay client registered", "page", client.Page)

		case client := <-b.unregister:
			b.mu.Lock()
			if clients, ok := b.pageClients[client.Page]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(b.pageClients, client.Page)
					}
				}
			}
			b.mu.Unlock()
			b.logger.Render().Debug("Replay client unregistered", "page", client.Page)

		case <-ctx.Done():
			b.closeAll()
			return
		}
	}
}

// Register queues a client for registration.
func (b *ReplayBroadcaster) Register(client *StreamClient) {
	b.register <- client
}

// Unregister queues a client for unregistration.
func (b *ReplayBroadcaster) Unregister(client *StreamClient) {
	b.unregister <- client
}

// ClientCount returns the number of clients watching a page.
func (b *ReplayBroadcaster) ClientCount(page string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pageClients[page])
}

// Broadcast sends one typed message to every client watching the page. Slow
// clients are skipped rather than blocking the replay timeline.
func (b *ReplayBroadcaster) Broadcast(page, messageType string, data any) {
	message, err := json.Marshal(StreamMessage{Type: messageType, Page: page, Data: data})
	if err != nil {
		b.logger.Render().Error("Failed to marshal stream message", "type", messageType, "error", err.Error())
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.pageClients[page] {
		select {
		case client.Send <- message:
		default:
			b.logger.Render().Warn("Replay client send queue full, frame dropped", "page", page)
		}
	}
}

func (b *ReplayBroadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for page, clients := range b.pageClients {
		for client := range clients {
			close(client.Send)
		}
		delete(b.pageClients, page)
	}
}
