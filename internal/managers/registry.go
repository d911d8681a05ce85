package managers

import (
	"sync"
	"time"

	"signaling/internal/metrics"
	"signaling/internal/models"
)

// memberKey identifies one participant record: a connection maps to at most
// one of these.
type memberKey struct {
	roomID   string
	identity string
}

// room holds the participant side of a voice room. Observer subscriptions are
// tracked as a separate relation on the Registry so that they survive the
// room's garbage collection.
type room struct {
	id           string
	createdAt    time.Time
	participants map[string]*models.Participant
	order        []string // identities in join order, for deterministic enumeration
}

// Registry is the sole owner of room and participant state. Every mutation
// composes its broadcast data under the same critical section, so callers can
// deliver outside the lock without reordering events within a room.
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*room
	members   map[string]memberKey           // connID -> participant record
	observers map[string]map[string]struct{} // roomID -> observer connIDs
	watching  map[string]map[string]struct{} // connID -> observed roomIDs

	participantCount int
	observerCount    int
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:     make(map[string]*room),
		members:   make(map[string]memberKey),
		observers: make(map[string]map[string]struct{}),
		watching:  make(map[string]map[string]struct{}),
	}
}

// JoinResult carries everything the presence layer must deliver after an
// upsert: the peer list for a fresh joiner, the announcement for the rest of
// the room and the snapshot for observers.
type JoinResult struct {
	Fresh      bool
	Joined     models.PeerInfo
	Peers      []models.PeerInfo // other participants, fresh joins only
	PrevConnID string            // connection replaced by a reconnect, if any
	Snapshot   models.RoomSnapshot
	Observers  []string
}

// LeaveResult carries the removed record plus the broadcast data for the
// remaining participants and observers.
type LeaveResult struct {
	Removed     models.Participant
	RoomDeleted bool
	Snapshot    models.RoomSnapshot
	Observers   []string
}

// GetOrCreateRoom returns the room's snapshot, creating an empty room if
// absent. Idempotent.
func (r *Registry) GetOrCreateRoom(roomID string) models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm := r.getOrCreate(roomID)
	return rm.snapshot()
}

// GetRoom returns the room's snapshot. A miss is a valid empty state, not an
// error.
func (r *Registry) GetRoom(roomID string) (models.RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return models.RoomSnapshot{}, false
	}
	return rm.snapshot(), true
}

// UpsertParticipant inserts or replaces the record for (roomID, identity).
// A reconnect (existing identity) replaces the record in place, keeping the
// original join time and position; it is never reported as fresh.
func (r *Registry) UpsertParticipant(roomID string, p models.Participant) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.getOrCreate(roomID)
	prev, exists := rm.participants[p.Identity]

	res := JoinResult{Fresh: !exists}
	if exists {
		p.JoinedAt = prev.JoinedAt
		if prev.ConnID != p.ConnID {
			res.PrevConnID = prev.ConnID
			delete(r.members, prev.ConnID)
		}
	} else {
		rm.order = append(rm.order, p.Identity)
		res.Peers = rm.peerViews(p.Identity)
		r.participantCount++
	}
	rm.participants[p.Identity] = &p
	r.members[p.ConnID] = memberKey{roomID: roomID, identity: p.Identity}

	res.Joined = p.PeerView()
	res.Snapshot = rm.snapshot()
	res.Observers = r.observerList(roomID)
	r.updateGauges()
	return res
}

// RemoveParticipant removes the record if present and, atomically with the
// removal, deletes the room once its participant set is empty. Reports false
// when there was nothing to remove, so double removes are no-ops.
func (r *Registry) RemoveParticipant(roomID, identity string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(roomID, identity)
}

// RemoveConn resolves the participant attached to a connection and removes
// it. Used by the disconnect path, where only the connection is known.
func (r *Registry) RemoveConn(connID string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.members[connID]
	if !ok {
		return LeaveResult{}, false
	}
	return r.removeLocked(key.roomID, key.identity)
}

// ResolveConn reports which (roomID, identity) a connection is joined as.
func (r *Registry) ResolveConn(connID string) (string, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.members[connID]
	return key.roomID, key.identity, ok
}

// FindByPeerID returns a copy of the participant currently addressed by the
// given peer ID. The relay consults this on every call so a mid-negotiation
// reconnect is picked up transparently.
func (r *Registry) FindByPeerID(roomID, peerID string) (models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return models.Participant{}, false
	}
	for _, identity := range rm.order {
		if p := rm.participants[identity]; p.PeerID == peerID {
			return *p, true
		}
	}
	return models.Participant{}, false
}

// AddObserver subscribes a connection to the room's membership changes and
// returns the snapshot to deliver immediately. Creates the room if needed.
func (r *Registry) AddObserver(roomID, connID string) models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.getOrCreate(roomID)
	set := r.observers[roomID]
	if set == nil {
		set = make(map[string]struct{})
		r.observers[roomID] = set
	}
	if _, dup := set[connID]; !dup {
		set[connID] = struct{}{}
		watched := r.watching[connID]
		if watched == nil {
			watched = make(map[string]struct{})
			r.watching[connID] = watched
		}
		watched[roomID] = struct{}{}
		r.observerCount++
		r.updateGauges()
	}
	return rm.snapshot()
}

// RemoveObserver drops one subscription. No-op if absent.
func (r *Registry) RemoveObserver(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeObserverLocked(roomID, connID)
	r.updateGauges()
}

// DropObserver removes a connection from every room's observer set. An
// observer may watch multiple rooms, so disconnect cleanup fans out.
func (r *Registry) DropObserver(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.watching[connID] {
		r.removeObserverLocked(roomID, connID)
	}
	r.updateGauges()
}

// Sweep removes rooms that have had no participants and no observers for at
// least maxAge. Rooms emptied by a leave are collected immediately; this
// catches rooms that only ever saw a subscribe. Returns the number removed.
func (r *Registry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for roomID, rm := range r.rooms {
		if len(rm.participants) == 0 && len(r.observers[roomID]) == 0 && rm.createdAt.Before(cutoff) {
			delete(r.rooms, roomID)
			removed++
		}
	}
	r.updateGauges()
	return removed
}

// Stats reports room, participant and observer counts.
func (r *Registry) Stats() (rooms, participants, observers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms), r.participantCount, r.observerCount
}

func (r *Registry) getOrCreate(roomID string) *room {
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{
			id:           roomID,
			createdAt:    time.Now(),
			participants: make(map[string]*models.Participant),
		}
		r.rooms[roomID] = rm
		r.updateGauges()
	}
	return rm
}

func (r *Registry) removeLocked(roomID, identity string) (LeaveResult, bool) {
	rm, ok := r.rooms[roomID]
	if !ok {
		return LeaveResult{}, false
	}
	p, ok := rm.participants[identity]
	if !ok {
		return LeaveResult{}, false
	}

	delete(rm.participants, identity)
	for i, id := range rm.order {
		if id == identity {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	delete(r.members, p.ConnID)
	r.participantCount--

	res := LeaveResult{Removed: *p}
	if len(rm.participants) == 0 {
		delete(r.rooms, roomID)
		res.RoomDeleted = true
	}
	res.Snapshot = rm.snapshot()
	res.Observers = r.observerList(roomID)
	r.updateGauges()
	return res, true
}

func (r *Registry) removeObserverLocked(roomID, connID string) {
	set, ok := r.observers[roomID]
	if !ok {
		return
	}
	if _, present := set[connID]; !present {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.observers, roomID)
	}
	watched := r.watching[connID]
	delete(watched, roomID)
	if len(watched) == 0 {
		delete(r.watching, connID)
	}
	r.observerCount--
}

func (r *Registry) observerList(roomID string) []string {
	set := r.observers[roomID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]string, 0, len(set))
	for connID := range set {
		conns = append(conns, connID)
	}
	return conns
}

func (r *Registry) updateGauges() {
	metrics.Rooms.Set(float64(len(r.rooms)))
	metrics.Participants.Set(float64(r.participantCount))
	metrics.Observers.Set(float64(r.observerCount))
}

func (rm *room) snapshot() models.RoomSnapshot {
	members := make([]models.MemberInfo, 0, len(rm.participants))
	for _, identity := range rm.order {
		members = append(members, rm.participants[identity].MemberView())
	}
	return models.RoomSnapshot{
		RoomID:      rm.id,
		Members:     members,
		MemberCount: len(members),
		CreatedAt:   rm.createdAt,
	}
}

func (rm *room) peerViews(except string) []models.PeerInfo {
	peers := make([]models.PeerInfo, 0, len(rm.participants))
	for _, identity := range rm.order {
		if identity == except {
			continue
		}
		peers = append(peers, rm.participants[identity].PeerView())
	}
	return peers
}
