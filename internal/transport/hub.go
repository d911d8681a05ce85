package transport

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Envelope is the wire format: a named event plus an opaque JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// HandlerFunc handles one inbound event from one connection.
type HandlerFunc func(connID string, data json.RawMessage)

// Hub owns every live connection and the transport-level room grouping used
// to scope broadcasts. Event handlers and disconnect hooks are registered
// once, before the hub starts serving.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[string]*Conn // transport room -> connID -> conn

	handlers   map[string]HandlerFunc
	disconnect []func(connID string)
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		conns:    make(map[string]*Conn),
		rooms:    make(map[string]map[string]*Conn),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler invoked when the named event arrives on any
// connection. Not safe to call once the hub is serving.
func (h *Hub) Handle(event string, fn HandlerFunc) {
	h.handlers[event] = fn
}

// OnDisconnect registers a hook fired exactly once per connection teardown.
func (h *Hub) OnDisconnect(fn func(connID string)) {
	h.disconnect = append(h.disconnect, fn)
}

// ServeWS upgrades the request and runs the connection's pumps. It returns
// once the upgrade has been attempted; the pumps run on their own goroutines.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Conn{
		id:   uuid.New().String(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		hub:  h,
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

// Emit delivers one event to one connection. Unknown connections and full
// send queues are dropped; delivery is best effort.
func (h *Hub) Emit(connID, event string, payload any) {
	msg, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error("marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.push(c, msg, event)
}

// EmitRoom delivers one event to every connection in a transport room,
// optionally excluding one connection.
func (h *Hub) EmitRoom(roomID, event string, payload any, exceptConnID string) {
	msg, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error("marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[roomID]))
	for id, c := range h.rooms[roomID] {
		if id == exceptConnID {
			continue
		}
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		h.push(c, msg, event)
	}
}

// JoinRoom adds a connection to a transport room.
func (h *Hub) JoinRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	room := h.rooms[roomID]
	if room == nil {
		room = make(map[string]*Conn)
		h.rooms[roomID] = room
	}
	room[connID] = c
}

// LeaveRoom removes a connection from a transport room. No-op if absent.
func (h *Hub) LeaveRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(connID, roomID)
}

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown notifies every connection and closes it. The notice is queued
// before the close is signalled, so the write pump flushes it on its way out.
// Used on graceful exit.
func (h *Hub) Shutdown() {
	msg, err := marshalEnvelope("server-shutdown", map[string]string{
		"message": "Server is shutting down. Please reconnect.",
	})
	if err != nil {
		h.log.Error("marshal event", zap.String("event", "server-shutdown"), zap.Error(err))
	}

	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if msg != nil {
			h.push(c, msg, "server-shutdown")
		}
		c.signalClose()
	}
}

// push enqueues one frame. Closed connections and full queues drop the frame;
// c.send itself is never closed, so a push racing a teardown is harmless.
func (h *Hub) push(c *Conn, msg []byte, event string) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		h.log.Warn("send queue full, dropping event",
			zap.String("connId", c.id), zap.String("event", event))
	}
}

func (h *Hub) dispatch(connID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		h.log.Warn("malformed envelope", zap.String("connId", connID))
		return
	}
	fn, ok := h.handlers[env.Event]
	if !ok {
		h.log.Warn("unknown event", zap.String("event", env.Event), zap.String("connId", connID))
		return
	}
	fn(connID, env.Data)
}

// drop removes a dead connection from the hub and fires the disconnect hooks.
// Called exactly once, from the connection's read pump.
func (h *Hub) drop(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	for roomID := range h.rooms {
		h.removeFromRoom(c.id, roomID)
	}
	h.mu.Unlock()

	c.signalClose()
	c.ws.Close()
	for _, fn := range h.disconnect {
		fn(c.id)
	}
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(connID, roomID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
