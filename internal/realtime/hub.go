package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/callroom/broker/internal/models"
	"github.com/callroom/broker/pkg/metrics"
)

// Event names on the socket.
const (
	EventConnected    = "connected"
	EventJoinSession  = "join-session"
	EventLeaveSession = "leave-session"
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
	EventSessionEnded = "session-ended"
	EventError        = "error"
)

const lookupTimeout = 5 * time.Second

// ParticipantLookup resolves a user's active membership for event enrichment.
type ParticipantLookup interface {
	ActiveParticipant(ctx context.Context, sessionID, userID string) (*models.Participant, error)
}

// Relay forwards room broadcasts between instances.
type Relay interface {
	Publish(room string, msg RelayMessage) error
	Subscribe(room string, handler func(RelayMessage)) (cancel func(), err error)
}

// UserJoined is the payload of user-joined. UserName and Role are empty when no active
// participant row was found.
type UserJoined struct {
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	UserName  string      `json:"user_name,omitempty"`
	Role      models.Role `json:"role,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
}

// UserLeft is the payload of user-left.
type UserLeft struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
}

// SessionEnded is the payload of session-ended.
type SessionEnded struct {
	SessionID string `json:"session_id"`
	EndedBy   string `json:"ended_by"`
}

// Hub is the subscription table: session id -> set of sockets. Delivery is best effort and
// at most once; a socket whose buffer is full misses the event.
type Hub struct {
	rooms   map[string]map[string]*Client
	subs    map[string]func() // relay subscription per room with local sockets
	pending map[string]bool   // rooms with a relay subscribe in flight
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	relay   Relay
	lookup  ParticipantLookup
}

// NewHub creates a hub. relay may be nil for a single instance.
func NewHub(logger *zap.Logger, relay Relay) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:   make(map[string]map[string]*Client),
		subs:    make(map[string]func()),
		pending: make(map[string]bool),
		clients: make(map[string]*Client),
		logger:  logger,
		relay:   relay,
	}
}

// SetParticipantLookup sets the source used to enrich user-joined and user-left events.
func (h *Hub) SetParticipantLookup(lookup ParticipantLookup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lookup = lookup
}

// Connect registers a new socket.
func (h *Hub) Connect(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	metrics.RealtimeConnections.Inc()
	h.logger.Debug("client connected", zap.String("client_id", c.ID))
}

// Disconnect removes a socket from every room it joined and closes its send queue.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for room := range c.rooms {
		h.removeLocked(room, c)
	}
	close(c.send)
	h.mu.Unlock()
	metrics.RealtimeConnections.Dec()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// Join subscribes c to room. The relay subscription is opened outside the lock by the
// first join that finds the room without one, so a failed subscribe is retried on the
// next join.
func (h *Hub) Join(c *Client, room, userID string) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][c.ID] = c
	c.rooms[room] = userID
	needSub := h.relay != nil && h.subs[room] == nil && !h.pending[room]
	if needSub {
		h.pending[room] = true
	}
	h.mu.Unlock()

	h.logger.Debug("client joined session", zap.String("client_id", c.ID), zap.String("session_id", room), zap.String("user_id", userID))
	if needSub {
		h.subscribe(room)
	}
}

func (h *Hub) subscribe(room string) {
	cancel, err := h.relay.Subscribe(room, func(msg RelayMessage) {
		h.deliver(room, msg.Event, msg.Data, msg.Except)
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, room)
	if err != nil {
		h.logger.Warn("relay subscribe failed, room delivers locally", zap.String("session_id", room), zap.Error(err))
		return
	}
	if len(h.rooms[room]) == 0 {
		// Emptied while subscribing.
		cancel()
		return
	}
	h.subs[room] = cancel
}

// Leave unsubscribes c from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, c)
}

func (h *Hub) removeLocked(room string, c *Client) {
	delete(c.rooms, room)
	m, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(m, c.ID)
	if len(m) == 0 {
		delete(h.rooms, room)
		if cancel, ok := h.subs[room]; ok {
			cancel()
			delete(h.subs, room)
		}
	}
}

// RoomSize returns the number of local sockets subscribed to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// SessionEnded broadcasts session-ended to every subscriber of the session.
func (h *Hub) SessionEnded(sessionID, endedBy string) {
	h.Broadcast(sessionID, EventSessionEnded, SessionEnded{SessionID: sessionID, EndedBy: endedBy}, "")
}

// ParticipantLeft broadcasts user-left for a leave made through the HTTP API.
func (h *Hub) ParticipantLeft(sessionID, userID, userName string) {
	h.Broadcast(sessionID, EventUserLeft, UserLeft{SessionID: sessionID, UserID: userID, UserName: userName}, "")
}

// Broadcast sends event to every subscriber of room except the socket with id except.
// With a relay the event is published and local sockets receive it back through the room's
// relay subscription. Rooms without a live subscription, and failed publishes, are
// delivered locally.
func (h *Hub) Broadcast(room, event string, payload interface{}, except string) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("broadcast payload", zap.String("event", event), zap.Error(err))
		return
	}
	metrics.RealtimeBroadcasts.WithLabelValues(event).Inc()
	if h.relay != nil {
		subscribed := h.relayed(room)
		err := h.relay.Publish(room, RelayMessage{Event: event, Data: data, Except: except, At: time.Now().Unix()})
		if err == nil {
			if !subscribed {
				h.deliver(room, event, data, except)
			}
			return
		}
		h.logger.Warn("relay publish failed, delivering locally", zap.String("session_id", room), zap.String("event", event), zap.Error(err))
	}
	h.deliver(room, event, data, except)
}

// relayed reports whether room has a live relay subscription on this instance.
func (h *Hub) relayed(room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subs[room] != nil
}

// deliver sends to local sockets only.
func (h *Hub) deliver(room, event string, data json.RawMessage, except string) {
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.rooms[room] {
		if id == except {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, event dropped", zap.String("client_id", id), zap.String("event", event))
		}
	}
}

// SendToClient sends an event to one local socket.
func (h *Hub) SendToClient(clientID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

// participant looks up the user's active membership, returning nil when unavailable.
func (h *Hub) participant(sessionID, userID string) *models.Participant {
	h.mu.RLock()
	lookup := h.lookup
	h.mu.RUnlock()
	if lookup == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	p, err := lookup.ActiveParticipant(ctx, sessionID, userID)
	if err != nil {
		h.logger.Warn("participant lookup failed", zap.String("session_id", sessionID), zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return p
}

// Close cancels every relay subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, cancel := range h.subs {
		cancel()
		delete(h.subs, room)
	}
}
