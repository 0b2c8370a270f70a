package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TalentPoolPicos/talentpool-backend/pkg/logger"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	defaultBufferSize = 64
)

// Events emitted to realtime subscribers.
const (
	EventNewNotification  = "new-notification"
	EventUnreadCount      = "unread-count"
	EventBroadcast        = "broadcast-notification"
	EventConnectionStatus = "connection-status"
)

// Event represents a JSON payload delivered to realtime subscribers.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Identity is the authenticated pair a connection is registered under.
type Identity struct {
	UserID string
	Role   string
}

// Hub tracks live websocket connections and provides best-effort push
// delivery to a single user, a role cohort, or every subscriber.
//
// Presence is instance-local and rebuilt from fresh handshakes; a process
// restart silently drops all online status until clients reconnect. Fan-out
// across multiple hub instances would need a shared pub/sub layer between
// them, which is an extension point rather than part of this core.
type Hub struct {
	mu       sync.RWMutex
	groups   map[string]map[*connection]struct{}
	presence map[string]string // userID -> latest connection id
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		groups:   make(map[string]map[*connection]struct{}),
		presence: make(map[string]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger.WithModule("realtime"),
	}
}

// Serve upgrades the HTTP connection to a WebSocket and registers it under
// the user's routing keys. Callers must have authenticated the identity
// before invoking Serve.
func (h *Hub) Serve(identity Identity, w http.ResponseWriter, r *http.Request) {
	if identity.UserID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("user", identity.UserID), zap.Error(err))
		return
	}

	conn := &connection{
		hub:      h,
		socket:   socket,
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan Event, defaultBufferSize),
	}

	h.register(conn)

	conn.enqueue(Event{
		Event: EventConnectionStatus,
		Data: map[string]any{
			"status":  "connected",
			"user_id": identity.UserID,
		},
	})

	go conn.writeLoop()
	conn.readLoop()
}

// SendToUser delivers an event to all live connections for the supplied user.
// Offline recipients are a normal state, reported through the return value
// rather than an error.
func (h *Hub) SendToUser(userID, event string, data any) bool {
	if userID == "" {
		return false
	}

	delivered := h.sendToGroup(userKey(userID), Event{Event: event, Data: data})
	if delivered {
		metrics.Deliveries.WithLabelValues("delivered").Inc()
	} else {
		metrics.Deliveries.WithLabelValues("offline").Inc()
	}
	return delivered
}

// SendToRole pushes an event to every connection registered under the role
// cohort. Fire-and-forget: no per-recipient confirmation.
func (h *Hub) SendToRole(role, event string, data any) {
	if role == "" {
		return
	}
	h.sendToGroup(roleKey(role), Event{Event: event, Data: data})
}

// BroadcastAll pushes an event to every open connection.
func (h *Hub) BroadcastAll(event string, data any) {
	message := Event{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*connection]struct{})
	for _, conns := range h.groups {
		for conn := range conns {
			if _, dup := seen[conn]; dup {
				continue
			}
			seen[conn] = struct{}{}
			conn.enqueue(message)
		}
	}
}

// PushUnreadCount pushes a lightweight counter update to the user.
func (h *Hub) PushUnreadCount(userID string, count int64) bool {
	return h.SendToUser(userID, EventUnreadCount, map[string]any{"count": count})
}

// IsOnline reports whether the user currently has a registered connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.presence[userID]
	return ok
}

// ListOnline returns the IDs of all currently connected users.
func (h *Hub) ListOnline() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.presence))
	for userID := range h.presence {
		users = append(users, userID)
	}
	return users
}

func (h *Hub) sendToGroup(key string, message Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.groups[key]
	if len(conns) == 0 {
		return false
	}

	for conn := range conns {
		conn.enqueue(message)
	}
	return true
}

func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, key := range conn.keys() {
		if h.groups[key] == nil {
			h.groups[key] = make(map[*connection]struct{})
		}
		h.groups[key][conn] = struct{}{}
	}

	// Last write wins when a user reconnects from another device.
	h.presence[conn.identity.UserID] = conn.id

	metrics.ActiveConnections.Inc()
}

func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, key := range conn.keys() {
		if conns := h.groups[key]; conns != nil {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(h.groups, key)
			}
		}
	}

	if h.presence[conn.identity.UserID] == conn.id {
		delete(h.presence, conn.identity.UserID)
	}

	metrics.ActiveConnections.Dec()
}

type connection struct {
	hub      *Hub
	socket   *websocket.Conn
	id       string
	identity Identity
	send     chan Event
	once     sync.Once
}

func (c *connection) keys() []string {
	keys := []string{userKey(c.identity.UserID)}
	if c.identity.Role != "" {
		keys = append(keys, roleKey(c.identity.Role))
	}
	return keys
}

func (c *connection) enqueue(message Event) {
	select {
	case c.send <- message:
	default:
		// Callers walk the registry under the hub lock; unregistering here
		// would re-enter it. Drop the message and evict asynchronously.
		c.hub.log.Warn("dropping backpressure client", zap.String("user", c.identity.UserID))
		go c.close()
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Clients only listen; inbound payloads are drained for keepalive.
		if _, _, err := c.socket.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("user", c.identity.UserID), zap.Error(err))
			}
			return
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func userKey(userID string) string { return "user:" + userID }
func roleKey(role string) string   { return "role:" + role }
