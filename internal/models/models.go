package models

import (
	"encoding/json"
	"time"

	"github.com/pion/webrtc/v3"
)

// Participant is one user's presence inside a voice room. Identity is stable
// across reconnects; PeerID and ConnID are replaced when the client reconnects.
type Participant struct {
	Identity    string    `json:"identity"`
	PeerID      string    `json:"peerId"`
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	ConnID      string    `json:"-"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// PeerInfo is the participant view shared with other participants. It carries
// the peer ID so they can address signaling messages.
type PeerInfo struct {
	Identity    string `json:"identity"`
	PeerID      string `json:"peerId"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// MemberInfo is the participant view shared with observers and the REST status
// endpoint. Peer IDs are excluded.
type MemberInfo struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// RoomSnapshot is the full membership of a room at one point in time.
type RoomSnapshot struct {
	RoomID      string       `json:"roomId"`
	Members     []MemberInfo `json:"members"`
	MemberCount int          `json:"memberCount"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// PeerView returns the participant as seen by other participants.
func (p *Participant) PeerView() PeerInfo {
	return PeerInfo{
		Identity:    p.Identity,
		PeerID:      p.PeerID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}

// MemberView returns the participant as seen by observers.
func (p *Participant) MemberView() MemberInfo {
	return MemberInfo{
		Identity:    p.Identity,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}

// JoinRequest is the payload of a join-room event.
type JoinRequest struct {
	RoomID      string `json:"roomId"`
	Identity    string `json:"identity"`
	PeerID      string `json:"peerId"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// LeaveRequest is the payload of a leave-room event.
type LeaveRequest struct {
	RoomID string `json:"roomId"`
}

// SubscribeRequest is the payload of subscribe-room-updates and
// unsubscribe-room-updates events.
type SubscribeRequest struct {
	RoomID string `json:"roomId"`
}

// SignalRequest is the payload of send-offer, send-answer and
// send-ice-candidate events. Payload is opaque to the relay.
type SignalRequest struct {
	RoomID       string          `json:"roomId"`
	TargetPeerID string          `json:"targetPeerId"`
	SenderPeerID string          `json:"senderPeerId"`
	SenderName   string          `json:"senderName,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

// SignalDelivery is what the relay hands to the target participant.
type SignalDelivery struct {
	Payload      json.RawMessage `json:"payload"`
	SenderPeerID string          `json:"senderPeerId"`
	SenderName   string          `json:"senderName,omitempty"`
}

// PeerList is sent to a freshly joined participant so it can start
// negotiating with everyone already in the room.
type PeerList struct {
	RoomID string     `json:"roomId"`
	Peers  []PeerInfo `json:"peers"`
}

// PeerJoined announces a fresh join to the rest of the room.
type PeerJoined struct {
	RoomID string   `json:"roomId"`
	Peer   PeerInfo `json:"peer"`
}

// PeerLeft announces a leave or disconnect to the rest of the room. PeerID is
// the last known peer ID of the departed participant.
type PeerLeft struct {
	RoomID   string `json:"roomId"`
	Identity string `json:"identity"`
	PeerID   string `json:"peerId"`
}

// PresenceEvent is published on the cross-instance presence channel so other
// service instances can reconcile membership for migrated users.
type PresenceEvent struct {
	Type       string    `json:"type"` // "user-joined", "user-left"
	RoomID     string    `json:"roomId"`
	Identity   string    `json:"identity"`
	InstanceID string    `json:"instanceId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Presence event types.
const (
	PresenceUserJoined = "user-joined"
	PresenceUserLeft   = "user-left"
)

// WebRTCConfig is the ICE server configuration handed to clients.
type WebRTCConfig struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}
