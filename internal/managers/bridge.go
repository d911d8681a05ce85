package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"signaling/internal/models"
)

const presenceChannel = "voice:presence"

// Bridge fans presence events out to other service instances over redis
// pub/sub. A user whose socket migrated to another instance may still have a
// stale record here; remote user-left events reconcile it.
type Bridge struct {
	rdb        *redis.Client
	reg        *Registry
	tr         Emitter
	log        *zap.Logger
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewBridge(rdb *redis.Client, reg *Registry, tr Emitter, log *zap.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		rdb:        rdb,
		reg:        reg,
		tr:         tr,
		log:        log,
		instanceID: uuid.New().String(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// InstanceID returns this bridge's unique instance identifier.
func (b *Bridge) InstanceID() string { return b.instanceID }

// Start launches the subscriber loop.
func (b *Bridge) Start() {
	go b.subscribe()
}

// Close stops the subscriber loop.
func (b *Bridge) Close() {
	b.cancel()
}

// Publish announces a local presence change to the other instances.
func (b *Bridge) Publish(eventType, roomID, identity string) {
	event := models.PresenceEvent{
		Type:       eventType,
		RoomID:     roomID,
		Identity:   identity,
		InstanceID: b.instanceID,
		Timestamp:  time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.log.Error("marshal presence event", zap.Error(err))
		return
	}
	if err := b.rdb.Publish(b.ctx, presenceChannel, data).Err(); err != nil {
		b.log.Warn("publish presence event", zap.Error(err))
	}
}

func (b *Bridge) subscribe() {
	pubsub := b.rdb.Subscribe(b.ctx, presenceChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	b.log.Info("subscribed to presence events", zap.String("instanceId", b.instanceID))

	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.PresenceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn("unmarshal presence event", zap.Error(err))
				continue
			}
			if event.InstanceID == b.instanceID {
				continue
			}
			b.handle(&event)
		}
	}
}

// handle reconciles a remote presence event against local room state.
func (b *Bridge) handle(event *models.PresenceEvent) {
	switch event.Type {
	case models.PresenceUserJoined:
		// Informational only: the joining instance owns the record.
		b.log.Info("remote join",
			zap.String("roomId", event.RoomID), zap.String("identity", event.Identity),
			zap.String("instanceId", event.InstanceID))

	case models.PresenceUserLeft:
		res, ok := b.reg.RemoveParticipant(event.RoomID, event.Identity)
		if !ok {
			return
		}
		b.log.Info("remote leave, removed stale local record",
			zap.String("roomId", event.RoomID), zap.String("identity", event.Identity))
		b.tr.LeaveRoom(res.Removed.ConnID, event.RoomID)
		b.tr.EmitRoom(event.RoomID, EventPeerLeft, models.PeerLeft{
			RoomID:   event.RoomID,
			Identity: res.Removed.Identity,
			PeerID:   res.Removed.PeerID,
		}, res.Removed.ConnID)
		for _, connID := range res.Observers {
			b.tr.Emit(connID, EventRoomMembers, res.Snapshot)
		}

	default:
		b.log.Warn(fmt.Sprintf("unknown presence event type: %s", event.Type))
	}
}
