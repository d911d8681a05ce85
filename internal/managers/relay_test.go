package managers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"signaling/internal/models"
)

func newRelay(t *testing.T) (*Relay, *Presence, *fakeEmitter) {
	t.Helper()
	reg := NewRegistry()
	tr := newFakeEmitter()
	log := zap.NewNop()
	return NewRelay(reg, tr, log), NewPresence(reg, tr, log), tr
}

func TestForward_DeliversToTargetOnly(t *testing.T) {
	rl, p, tr := newRelay(t)

	p.Join("cA", joinReq("g42", "u1", "p1"))
	p.Join("cB", joinReq("g42", "u2", "p2"))
	p.Join("cC", joinReq("g42", "u3", "p3"))

	payload := json.RawMessage(`{"sdp":"v=0..."}`)
	ok := rl.Forward("g42", "p2", KindOffer, payload, "p1", "Alice")
	assert.True(t, ok)

	got := tr.eventsFor("cB", EventOfferRecv)
	require.Len(t, got, 1)
	del := got[0].payload.(models.SignalDelivery)
	assert.Equal(t, "p1", del.SenderPeerID)
	assert.Equal(t, "Alice", del.SenderName)
	assert.JSONEq(t, string(payload), string(del.Payload))

	assert.Empty(t, tr.eventsFor("cA", EventOfferRecv))
	assert.Empty(t, tr.eventsFor("cC", EventOfferRecv))
}

func TestForward_KindsMapToDeliveryEvents(t *testing.T) {
	rl, p, tr := newRelay(t)

	p.Join("cA", joinReq("g42", "u1", "p1"))
	p.Join("cB", joinReq("g42", "u2", "p2"))

	rl.Forward("g42", "p2", KindAnswer, json.RawMessage(`{}`), "p1", "")
	rl.Forward("g42", "p2", KindICE, json.RawMessage(`{}`), "p1", "")

	assert.Len(t, tr.eventsFor("cB", EventAnswerRecv), 1)
	assert.Len(t, tr.eventsFor("cB", EventICERecv), 1)
}

func TestForward_MissIsSilent(t *testing.T) {
	rl, p, tr := newRelay(t)

	p.Join("cA", joinReq("g42", "u1", "p1"))
	before := len(tr.delivery)

	assert.False(t, rl.Forward("g42", "nosuch", KindOffer, json.RawMessage(`{}`), "p1", ""))
	assert.False(t, rl.Forward("nosuch-room", "p1", KindOffer, json.RawMessage(`{}`), "p1", ""))

	assert.Len(t, tr.delivery, before, "a miss must not deliver anything")
}

func TestForward_ReconnectRetargetsCurrentConn(t *testing.T) {
	rl, p, tr := newRelay(t)

	p.Join("cA", joinReq("g42", "u1", "p1"))
	p.Join("cB", joinReq("g42", "u2", "p2"))

	// u2 reconnects mid-negotiation with a fresh peer ID and connection.
	p.Join("cB2", joinReq("g42", "u2", "p2b"))

	// The stale peer ID is dropped, the new one reaches the new connection.
	assert.False(t, rl.Forward("g42", "p2", KindOffer, json.RawMessage(`{}`), "p1", ""))
	assert.True(t, rl.Forward("g42", "p2b", KindOffer, json.RawMessage(`{}`), "p1", ""))

	assert.Empty(t, tr.eventsFor("cB", EventOfferRecv))
	assert.Len(t, tr.eventsFor("cB2", EventOfferRecv), 1)
}
