package managers

import (
	"encoding/json"

	"go.uber.org/zap"

	"signaling/internal/metrics"
	"signaling/internal/models"
)

// Relay forwards opaque signaling payloads to a single participant addressed
// by peer ID. It never inspects the payload and never queues: a miss (peer
// gone, or a peer ID stale from before a reconnect) is a silent drop, which
// the negotiation layer above treats as a timeout.
type Relay struct {
	reg *Registry
	tr  Emitter
	log *zap.Logger
}

func NewRelay(reg *Registry, tr Emitter, log *zap.Logger) *Relay {
	return &Relay{reg: reg, tr: tr, log: log}
}

// Forward delivers the payload to whichever connection currently backs the
// target peer ID. The registry is consulted fresh on every call so a
// mid-negotiation reconnect is picked up transparently. Returns whether a
// delivery happened; callers ignore it except in tests.
func (rl *Relay) Forward(roomID, targetPeerID, kind string, payload json.RawMessage, senderPeerID, senderName string) bool {
	target, ok := rl.reg.FindByPeerID(roomID, targetPeerID)
	if !ok {
		metrics.SignalsDropped.WithLabelValues(kind).Inc()
		rl.log.Debug("relay target not found",
			zap.String("roomId", roomID), zap.String("targetPeerId", targetPeerID),
			zap.String("kind", kind))
		return false
	}

	rl.tr.Emit(target.ConnID, deliveryEvent(kind), models.SignalDelivery{
		Payload:      payload,
		SenderPeerID: senderPeerID,
		SenderName:   senderName,
	})
	metrics.SignalsRelayed.WithLabelValues(kind).Inc()
	return true
}

// Signal kinds. The relay logic is identical for all three; only the
// delivery event name differs.
const (
	KindOffer  = "offer"
	KindAnswer = "answer"
	KindICE    = "ice-candidate"
)

func deliveryEvent(kind string) string {
	switch kind {
	case KindOffer:
		return EventOfferRecv
	case KindAnswer:
		return EventAnswerRecv
	default:
		return EventICERecv
	}
}
