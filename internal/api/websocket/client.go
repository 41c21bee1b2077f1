package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for the authentication message
	authWait = 10 * time.Second

	maxMessageSize = 8192
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Client represents a WebSocket client connection
type Client struct {
	id            uuid.UUID
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	logger        *zap.Logger
	authenticated bool
}

// readPump reads until the connection fails. When authentication is
// enabled the first message must be {"type":"auth","token":"..."}.
func (c *Client) readPump() {
	defer func() {
		if c.authenticated {
			select {
			case c.hub.unregister <- c:
			case <-c.hub.done:
			}
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if c.hub.jwt.Enabled() {
		c.conn.SetReadDeadline(time.Now().Add(authWait))
	} else {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if !c.registerWithHub() {
			return
		}
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		if c.authenticated {
			// clients only listen; anything they send is ignored
			c.logger.Debug("Ignoring client message", zap.Int("bytes", len(data)))
			continue
		}

		var msg authMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "auth" || msg.Token == "" {
			c.closeWithAuthFailure("first message must be authentication")
			return
		}
		if _, err := c.hub.jwt.ValidateToken(msg.Token); err != nil {
			c.logger.Warn("WebSocket authentication failed", zap.Error(err))
			c.closeWithAuthFailure("invalid or expired token")
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.writeJSON(NewMessage(MessageTypeAuthSuccess, nil))
		if !c.registerWithHub() {
			return
		}
	}
}

func (c *Client) registerWithHub() bool {
	select {
	case c.hub.register <- c:
		c.authenticated = true
		go c.writePump()
		return true
	case <-c.hub.done:
		return false
	}
}

// writeJSON writes directly; only valid before writePump runs.
func (c *Client) writeJSON(msg Message) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("WebSocket write failed", zap.Error(err))
	}
}

func (c *Client) closeWithAuthFailure(reason string) {
	c.writeJSON(NewMessage(MessageTypeAuthFailed, AuthFailedData{Reason: reason}))
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(writeWait))
}

// writePump handles writing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles WebSocket upgrade requests
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade error",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	id := uuid.New()
	client := &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: hub.logger.With(zap.String("client_id", id.String())),
	}

	go client.readPump()
}
