package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sockets carry no credentials; cross-origin access is governed by the HTTP API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// roomRequest is the payload of join-session and leave-session. The socket self-reports
// both ids.
type roomRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

func (r *roomRequest) valid() bool {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.UserID = strings.TrimSpace(r.UserID)
	return r.SessionID != "" && r.UserID != ""
}

// Client is one WebSocket connection. It may be subscribed to several sessions.
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	rooms  map[string]string // session id -> self-reported user id; guarded by hub.mu
	logger *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan WSMessage, sendBuffer),
		rooms:  make(map[string]string),
		logger: logger.With(zap.String("client_id", id)),
	}
}

// ServeWs upgrades the request and runs the client loop until the socket closes.
func ServeWs(hub *Hub, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := newClient(hub, conn, logger)
		hub.Connect(client)
		hub.SendToClient(client.ID, EventConnected, map[string]string{"client_id": client.ID})
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Event {
		case EventJoinSession:
			c.joinSession(msg.Data)
		case EventLeaveSession:
			c.leaveSession(msg.Data)
		default:
			c.logger.Debug("unknown event ignored", zap.String("event", msg.Event))
		}
	}
}

func (c *Client) joinSession(data json.RawMessage) {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil || !req.valid() {
		c.hub.SendToClient(c.ID, EventError, map[string]string{"message": "Failed to join session"})
		return
	}
	c.hub.Join(c, req.SessionID, req.UserID)

	ev := UserJoined{SessionID: req.SessionID, UserID: req.UserID, ClientID: c.ID}
	if p := c.hub.participant(req.SessionID, req.UserID); p != nil {
		ev.UserName = p.UserName
		ev.Role = p.Role
	}
	c.hub.Broadcast(req.SessionID, EventUserJoined, ev, c.ID)
}

func (c *Client) leaveSession(data json.RawMessage) {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil || !req.valid() {
		c.logger.Debug("invalid leave-session payload")
		return
	}
	c.hub.Leave(c, req.SessionID)

	ev := UserLeft{SessionID: req.SessionID, UserID: req.UserID, ClientID: c.ID}
	if p := c.hub.participant(req.SessionID, req.UserID); p != nil {
		ev.UserName = p.UserName
	}
	c.hub.Broadcast(req.SessionID, EventUserLeft, ev, c.ID)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
