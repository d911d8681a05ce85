package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"signaling/internal/managers"
	"signaling/internal/models"
	"signaling/internal/transport"
	"signaling/internal/utils"
)

type testStack struct {
	srv *httptest.Server
	reg *managers.Registry
}

func newTestStack(t *testing.T, jwtSecret []byte) *testStack {
	t.Helper()
	log := zap.NewNop()
	hub := transport.NewHub(log)
	reg := managers.NewRegistry()
	presence := managers.NewPresence(reg, hub, log)
	relay := managers.NewRelay(reg, hub, log)
	observers := managers.NewObservers(reg, hub, log)
	h := New(hub, reg, presence, relay, observers, jwtSecret, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.SignalingWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testStack{srv: srv, reg: reg}
}

func (ts *testStack) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(transport.Envelope{Event: event, Data: data}))
}

// recv reads frames until it sees the wanted event, failing on anything else.
func recv(t *testing.T, ws *websocket.Conn, wantEvent string, into any) {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env transport.Envelope
	require.NoError(t, ws.ReadJSON(&env))
	require.Equal(t, wantEvent, env.Event)
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
}

func TestSignalingScenario(t *testing.T) {
	ts := newTestStack(t, nil)

	wsA := ts.dial(t, "")
	wsB := ts.dial(t, "")
	wsObs := ts.dial(t, "")

	// An observer watches the room before anyone joins.
	send(t, wsObs, managers.EventSubscribe, models.SubscribeRequest{RoomID: "g42"})
	var snap models.RoomSnapshot
	recv(t, wsObs, managers.EventRoomMembers, &snap)
	assert.Equal(t, 0, snap.MemberCount)

	// A joins and receives an empty peer list.
	send(t, wsA, managers.EventJoinRoom, models.JoinRequest{
		RoomID: "g42", Identity: "u1", PeerID: "p1", DisplayName: "Alice",
	})
	var peerList models.PeerList
	recv(t, wsA, managers.EventPeerList, &peerList)
	assert.Empty(t, peerList.Peers)

	recv(t, wsObs, managers.EventRoomMembers, &snap)
	assert.Equal(t, 1, snap.MemberCount)

	// B joins, sees A in the peer list; A is told about B.
	send(t, wsB, managers.EventJoinRoom, models.JoinRequest{
		RoomID: "g42", Identity: "u2", PeerID: "p2", DisplayName: "Bob",
	})
	recv(t, wsB, managers.EventPeerList, &peerList)
	require.Len(t, peerList.Peers, 1)
	assert.Equal(t, "u1", peerList.Peers[0].Identity)
	assert.Equal(t, "p1", peerList.Peers[0].PeerID)

	var joined models.PeerJoined
	recv(t, wsA, managers.EventPeerJoined, &joined)
	assert.Equal(t, "u2", joined.Peer.Identity)
	assert.Equal(t, "p2", joined.Peer.PeerID)

	recv(t, wsObs, managers.EventRoomMembers, &snap)
	assert.Equal(t, 2, snap.MemberCount)

	// A sends B an offer; B receives it tagged with A's peer ID.
	send(t, wsA, managers.EventSendOffer, models.SignalRequest{
		RoomID:       "g42",
		TargetPeerID: "p2",
		SenderPeerID: "p1",
		SenderName:   "Alice",
		Payload:      json.RawMessage(`{"sdp":"v=0..."}`),
	})
	var delivery models.SignalDelivery
	recv(t, wsB, managers.EventOfferRecv, &delivery)
	assert.Equal(t, "p1", delivery.SenderPeerID)
	assert.JSONEq(t, `{"sdp":"v=0..."}`, string(delivery.Payload))

	// B disconnects; A learns about it, the room shrinks to one.
	wsB.Close()
	var left models.PeerLeft
	recv(t, wsA, managers.EventPeerLeft, &left)
	assert.Equal(t, "u2", left.Identity)
	assert.Equal(t, "p2", left.PeerID)

	recv(t, wsObs, managers.EventRoomMembers, &snap)
	require.Equal(t, 1, snap.MemberCount)
	assert.Equal(t, "u1", snap.Members[0].Identity)

	// A leaves; the room is gone from the registry.
	send(t, wsA, managers.EventLeaveRoom, models.LeaveRequest{RoomID: "g42"})
	recv(t, wsObs, managers.EventRoomMembers, &snap)
	assert.Equal(t, 0, snap.MemberCount)

	assert.Eventually(t, func() bool {
		_, ok := ts.reg.GetRoom("g42")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignaling_RelayMissIsSilent(t *testing.T) {
	ts := newTestStack(t, nil)

	wsA := ts.dial(t, "")
	send(t, wsA, managers.EventJoinRoom, models.JoinRequest{RoomID: "g42", Identity: "u1", PeerID: "p1"})
	var peerList models.PeerList
	recv(t, wsA, managers.EventPeerList, &peerList)

	send(t, wsA, managers.EventSendOffer, models.SignalRequest{
		RoomID:       "g42",
		TargetPeerID: "gone",
		SenderPeerID: "p1",
		Payload:      json.RawMessage(`{}`),
	})

	// No error event, no delivery: the sender just hears silence.
	wsA.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var env transport.Envelope
	assert.Error(t, wsA.ReadJSON(&env))
}

func TestSignalingWS_TokenGate(t *testing.T) {
	secret := []byte("test-secret")
	ts := newTestStack(t, secret)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := utils.MintRoomToken(secret, &utils.RoomTokenClaims{
		RoomID: "g42", UserID: "u1", DisplayName: "Alice",
	})
	require.NoError(t, err)

	ws := ts.dial(t, "?token="+token)
	send(t, ws, managers.EventJoinRoom, models.JoinRequest{RoomID: "g42", Identity: "u1", PeerID: "p1"})
	var peerList models.PeerList
	recv(t, ws, managers.EventPeerList, &peerList)
	assert.Empty(t, peerList.Peers)
}
