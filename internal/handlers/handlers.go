package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"signaling/internal/managers"
	"signaling/internal/models"
	"signaling/internal/transport"
	"signaling/internal/utils"
)

// Handlers wires the HTTP endpoints and the socket event surface to the
// presence, relay and observer managers.
type Handlers struct {
	hub          *transport.Hub
	reg          *managers.Registry
	presence     *managers.Presence
	relay        *managers.Relay
	observers    *managers.Observers
	jwtSecret    []byte
	webrtcConfig webrtc.Configuration
	log          *zap.Logger
}

func New(hub *transport.Hub, reg *managers.Registry, presence *managers.Presence,
	relay *managers.Relay, observers *managers.Observers, jwtSecret []byte, log *zap.Logger) *Handlers {
	h := &Handlers{
		hub:          hub,
		reg:          reg,
		presence:     presence,
		relay:        relay,
		observers:    observers,
		jwtSecret:    jwtSecret,
		webrtcConfig: utils.GetWebRTCConfig(),
		log:          log,
	}
	h.registerEvents()
	return h
}

func (h *Handlers) registerEvents() {
	h.hub.Handle(managers.EventJoinRoom, h.onJoin)
	h.hub.Handle(managers.EventLeaveRoom, h.onLeave)
	h.hub.Handle(managers.EventSubscribe, h.onSubscribe)
	h.hub.Handle(managers.EventUnsubscribe, h.onUnsubscribe)
	h.hub.Handle(managers.EventSendOffer, h.onSignal(managers.KindOffer))
	h.hub.Handle(managers.EventSendAnswer, h.onSignal(managers.KindAnswer))
	h.hub.Handle(managers.EventSendICE, h.onSignal(managers.KindICE))
	h.hub.OnDisconnect(h.presence.Disconnect)
}

func (h *Handlers) onJoin(connID string, data json.RawMessage) {
	var req models.JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("malformed join payload", zap.String("connId", connID), zap.Error(err))
		return
	}
	h.presence.Join(connID, req)
}

func (h *Handlers) onLeave(connID string, data json.RawMessage) {
	var req models.LeaveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("malformed leave payload", zap.String("connId", connID), zap.Error(err))
		return
	}

	roomID, identity, ok := h.reg.ResolveConn(connID)
	if !ok {
		return
	}
	if req.RoomID != "" && req.RoomID != roomID {
		return
	}
	h.presence.Leave(roomID, identity)
}

func (h *Handlers) onSubscribe(connID string, data json.RawMessage) {
	var req models.SubscribeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("malformed subscribe payload", zap.String("connId", connID), zap.Error(err))
		return
	}
	h.observers.Subscribe(req.RoomID, connID)
}

func (h *Handlers) onUnsubscribe(connID string, data json.RawMessage) {
	var req models.SubscribeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("malformed unsubscribe payload", zap.String("connId", connID), zap.Error(err))
		return
	}
	h.observers.Unsubscribe(req.RoomID, connID)
}

func (h *Handlers) onSignal(kind string) transport.HandlerFunc {
	return func(connID string, data json.RawMessage) {
		var req models.SignalRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.log.Warn("malformed signal payload",
				zap.String("connId", connID), zap.String("kind", kind), zap.Error(err))
			return
		}
		if req.RoomID == "" || req.TargetPeerID == "" {
			h.log.Warn("signal with missing fields",
				zap.String("connId", connID), zap.String("kind", kind))
			return
		}
		h.relay.Forward(req.RoomID, req.TargetPeerID, kind, req.Payload, req.SenderPeerID, req.SenderName)
	}
}

// Health is the liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// GetRoomStatus returns a room's membership snapshot without a socket.
func (h *Handlers) GetRoomStatus(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		http.Error(w, "roomId is required", http.StatusBadRequest)
		return
	}

	snap, ok := h.observers.Snapshot(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// GetWebRTCConfig returns the ICE servers clients should negotiate with.
func (h *Handlers) GetWebRTCConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.WebRTCConfig{ICEServers: h.webrtcConfig.ICEServers})
}

// SignalingWS upgrades the connection and hands it to the hub. When a JWT
// secret is configured, the upgrade requires a valid room token; the relay
// itself still treats the identity inside as opaque.
func (h *Handlers) SignalingWS(w http.ResponseWriter, r *http.Request) {
	if len(h.jwtSecret) > 0 {
		if _, err := utils.ValidateRoomToken(h.jwtSecret, r.URL.Query().Get("token")); err != nil {
			h.log.Warn("rejected socket without valid token", zap.Error(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	h.hub.ServeWS(w, r)
}
