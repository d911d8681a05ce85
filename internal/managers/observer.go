package managers

import (
	"go.uber.org/zap"

	"signaling/internal/models"
)

// Observers lets a connection watch a room's membership without joining it.
// Subscriptions live in their own relation on the registry, so they outlive
// the room's garbage collection and keep receiving snapshots when the room is
// recreated by a later join.
type Observers struct {
	reg *Registry
	tr  Emitter
	log *zap.Logger
}

func NewObservers(reg *Registry, tr Emitter, log *zap.Logger) *Observers {
	return &Observers{reg: reg, tr: tr, log: log}
}

// Subscribe registers the connection and immediately delivers one membership
// snapshot, creating the room if it does not exist yet.
func (o *Observers) Subscribe(roomID, connID string) {
	if roomID == "" {
		o.log.Warn("subscribe with empty roomId", zap.String("connId", connID))
		return
	}
	snap := o.reg.AddObserver(roomID, connID)
	o.tr.Emit(connID, EventRoomMembers, snap)
	o.log.Info("observer subscribed",
		zap.String("roomId", roomID), zap.String("connId", connID))
}

// Unsubscribe drops the subscription. No-op if the connection was not
// subscribed.
func (o *Observers) Unsubscribe(roomID, connID string) {
	o.reg.RemoveObserver(roomID, connID)
}

// Snapshot returns the room's current membership for callers outside the
// socket path, such as the REST status endpoint.
func (o *Observers) Snapshot(roomID string) (models.RoomSnapshot, bool) {
	return o.reg.GetRoom(roomID)
}
