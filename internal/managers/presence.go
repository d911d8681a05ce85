package managers

import (
	"time"

	"go.uber.org/zap"

	"signaling/internal/metrics"
	"signaling/internal/models"
)

// Presence translates join/leave/disconnect intents into registry mutations
// and the notifications they imply. All deliveries happen after the registry
// released its lock; the transport's per-connection queues keep them ordered.
type Presence struct {
	reg    *Registry
	tr     Emitter
	log    *zap.Logger
	bridge *Bridge // nil when cross-instance presence is disabled
}

func NewPresence(reg *Registry, tr Emitter, log *zap.Logger) *Presence {
	return &Presence{reg: reg, tr: tr, log: log}
}

// SetBridge attaches the cross-instance presence bridge.
func (p *Presence) SetBridge(b *Bridge) { p.bridge = b }

// Join admits a participant into a room, implicitly creating it. A fresh join
// gets the current peer list and is announced to the room and its observers.
// A reconnect (same identity) replaces the record in place and announces
// nothing: the rest of the room already knows this identity, and resending the
// peer list would only trigger a renegotiation storm.
func (p *Presence) Join(connID string, req models.JoinRequest) {
	if req.RoomID == "" || req.Identity == "" || req.PeerID == "" {
		p.log.Warn("join with missing fields",
			zap.String("connId", connID), zap.String("roomId", req.RoomID))
		return
	}

	res := p.reg.UpsertParticipant(req.RoomID, models.Participant{
		Identity:    req.Identity,
		PeerID:      req.PeerID,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		ConnID:      connID,
		JoinedAt:    time.Now(),
	})

	p.tr.JoinRoom(connID, req.RoomID)
	if res.PrevConnID != "" {
		p.tr.LeaveRoom(res.PrevConnID, req.RoomID)
	}

	if !res.Fresh {
		metrics.Joins.WithLabelValues("reconnect").Inc()
		p.log.Info("participant reconnected",
			zap.String("roomId", req.RoomID), zap.String("identity", req.Identity))
		return
	}

	metrics.Joins.WithLabelValues("fresh").Inc()
	p.tr.Emit(connID, EventPeerList, models.PeerList{RoomID: req.RoomID, Peers: res.Peers})
	p.tr.EmitRoom(req.RoomID, EventPeerJoined, models.PeerJoined{RoomID: req.RoomID, Peer: res.Joined}, connID)
	p.notifyObservers(res.Observers, res.Snapshot)

	if p.bridge != nil {
		p.bridge.Publish(models.PresenceUserJoined, req.RoomID, req.Identity)
	}
	p.log.Info("participant joined",
		zap.String("roomId", req.RoomID), zap.String("identity", req.Identity),
		zap.Int("roomSize", res.Snapshot.MemberCount))
}

// Leave removes a participant explicitly. Removing an identity that already
// left is a no-op.
func (p *Presence) Leave(roomID, identity string) {
	res, ok := p.reg.RemoveParticipant(roomID, identity)
	if !ok {
		return
	}
	p.afterRemoval(res)
}

// Disconnect performs the same cleanup as Leave for whatever participant the
// dying connection was attached to, plus the observer fan-out. Safe to call
// after an explicit Leave already ran.
func (p *Presence) Disconnect(connID string) {
	p.reg.DropObserver(connID)

	res, ok := p.reg.RemoveConn(connID)
	if !ok {
		return
	}
	p.afterRemoval(res)
}

func (p *Presence) afterRemoval(res LeaveResult) {
	roomID := res.Snapshot.RoomID
	p.tr.LeaveRoom(res.Removed.ConnID, roomID)
	p.tr.EmitRoom(roomID, EventPeerLeft, models.PeerLeft{
		RoomID:   roomID,
		Identity: res.Removed.Identity,
		PeerID:   res.Removed.PeerID,
	}, res.Removed.ConnID)
	p.notifyObservers(res.Observers, res.Snapshot)

	if p.bridge != nil {
		p.bridge.Publish(models.PresenceUserLeft, roomID, res.Removed.Identity)
	}
	p.log.Info("participant left",
		zap.String("roomId", roomID), zap.String("identity", res.Removed.Identity),
		zap.Bool("roomDeleted", res.RoomDeleted))
}

// notifyObservers pushes a full membership snapshot to each observer.
// Snapshots, not deltas: room cohorts are small and clients stay simple.
func (p *Presence) notifyObservers(conns []string, snap models.RoomSnapshot) {
	for _, connID := range conns {
		p.tr.Emit(connID, EventRoomMembers, snap)
	}
}
