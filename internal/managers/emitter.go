package managers

// Event names are a compatibility contract with the frontend client.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSubscribe   = "subscribe-room-updates"
	EventUnsubscribe = "unsubscribe-room-updates"
	EventSendOffer   = "send-offer"
	EventSendAnswer  = "send-answer"
	EventSendICE     = "send-ice-candidate"

	EventPeerList    = "peer-list"
	EventPeerJoined  = "peer-joined"
	EventPeerLeft    = "peer-left"
	EventRoomMembers = "room-members"
	EventOfferRecv   = "offer-received"
	EventAnswerRecv  = "answer-received"
	EventICERecv     = "ice-candidate-received"
)

// Emitter is the slice of the connection layer the managers depend on.
// The websocket hub implements it; tests substitute a recording fake.
type Emitter interface {
	Emit(connID, event string, payload any)
	EmitRoom(roomID, event string, payload any, exceptConnID string)
	JoinRoom(connID, roomID string)
	LeaveRoom(connID, roomID string)
}
