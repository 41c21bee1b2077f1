package websocket

import (
	"encoding/json"
	"sync"

	"github.com/KevinKickass/GiraIoTCore/internal/auth"
	"github.com/KevinKickass/GiraIoTCore/internal/devices"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"go.uber.org/zap"
)

// ViewProvider supplies the snapshot sent to newly registered clients.
type ViewProvider interface {
	ListViews(kind types.DeviceKind) []devices.View
}

// Hub maintains active WebSocket clients and broadcasts device views
type Hub struct {
	clients map[*Client]bool

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex

	logger *zap.Logger
	jwt    *auth.JWTHandler
	views  ViewProvider
}

// NewHub creates a hub. A nil jwt handler lets clients in without the
// authentication message.
func NewHub(views ViewProvider, jwt *auth.JWTHandler, logger *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger.With(zap.String("component", "websocket")),
		jwt:        jwt,
		views:      views,
	}
}

// Run starts the hub's main event loop. It returns after Stop.
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()

			h.sendSnapshot(client)
			h.logger.Info("WebSocket client registered",
				zap.String("client_id", client.id.String()),
				zap.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("WebSocket client unregistered",
					zap.String("client_id", client.id.String()),
					zap.Int("total_clients", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// slow or dead client
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Client send buffer full, unregistering",
						zap.String("client_id", client.id.String()))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) sendSnapshot(client *Client) {
	if h.views == nil {
		return
	}
	data, err := json.Marshal(NewSnapshotMessage(h.views.ListViews("")))
	if err != nil {
		h.logger.Error("Failed to marshal snapshot", zap.Error(err))
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// Broadcast queues a message for all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Hub broadcast channel full, message dropped",
			zap.String("message_type", string(msg.Type)))
	}
}

// PublishView broadcasts a device_state message.
func (h *Hub) PublishView(view devices.View) {
	h.Broadcast(NewDeviceStateMessage(view))
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
