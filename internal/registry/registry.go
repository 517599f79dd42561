// Package registry tracks which user is attached to which live connection
// and which rooms each connection is subscribed to. It is process-local,
// deliberately volatile state: a restart drops every binding and clients
// re-authenticate.
package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Sink is the delivery end of a live connection. Send must not block; a
// slow client is the transport's problem, not the registry's.
type Sink interface {
	Send(payload []byte) error
}

type binding struct {
	userID uuid.UUID
	rooms  map[uuid.UUID]struct{}
	sink   Sink
}

// Registry is safe for concurrent use. One mutex guards every map so that
// Unbind and a concurrent AddRoom for the same connection can never
// interleave into a dangling subscription.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*binding
	// userConns: userID -> set of connection ids (multi-device).
	userConns map[uuid.UUID]map[uuid.UUID]struct{}
	// rooms: roomID -> set of subscribed connection ids.
	rooms map[uuid.UUID]map[uuid.UUID]struct{}
}

func New() *Registry {
	return &Registry{
		conns:     make(map[uuid.UUID]*binding),
		userConns: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		rooms:     make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Bind attaches a connection to a user with an initial room subscription
// set. Re-binding the same connection replaces its previous binding.
func (r *Registry) Bind(connID, userID uuid.UUID, roomIDs []uuid.UUID, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[connID]; ok {
		r.unbindLocked(connID, prev)
	}

	b := &binding{
		userID: userID,
		rooms:  make(map[uuid.UUID]struct{}, len(roomIDs)),
		sink:   sink,
	}
	r.conns[connID] = b

	if _, ok := r.userConns[userID]; !ok {
		r.userConns[userID] = make(map[uuid.UUID]struct{})
	}
	r.userConns[userID][connID] = struct{}{}

	for _, roomID := range roomIDs {
		b.rooms[roomID] = struct{}{}
		r.addToRoomLocked(connID, roomID)
	}
}

// AddRoom subscribes a bound connection to a room. Returns false if the
// connection is not bound; re-adding an existing subscription is a no-op.
func (r *Registry) AddRoom(connID, roomID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.conns[connID]
	if !ok {
		return false
	}
	b.rooms[roomID] = struct{}{}
	r.addToRoomLocked(connID, roomID)
	return true
}

func (r *Registry) RemoveRoom(connID, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(b.rooms, roomID)
	r.removeFromRoomLocked(connID, roomID)
}

// Unbind destroys the connection's binding and reports the user it
// belonged to and every room it was subscribed to.
func (r *Registry) Unbind(connID uuid.UUID) (userID uuid.UUID, released []uuid.UUID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, bound := r.conns[connID]
	if !bound {
		return uuid.Nil, nil, false
	}

	released = make([]uuid.UUID, 0, len(b.rooms))
	for roomID := range b.rooms {
		released = append(released, roomID)
	}
	r.unbindLocked(connID, b)
	return b.userID, released, true
}

func (r *Registry) unbindLocked(connID uuid.UUID, b *binding) {
	for roomID := range b.rooms {
		r.removeFromRoomLocked(connID, roomID)
	}
	if conns, ok := r.userConns[b.userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.userConns, b.userID)
		}
	}
	delete(r.conns, connID)
}

func (r *Registry) addToRoomLocked(connID, roomID uuid.UUID) {
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[uuid.UUID]struct{})
		r.rooms[roomID] = room
	}
	room[connID] = struct{}{}
}

func (r *Registry) removeFromRoomLocked(connID, roomID uuid.UUID) {
	if room, ok := r.rooms[roomID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// ConnectionsInRoom returns the ids of every connection subscribed to the
// room.
func (r *Registry) ConnectionsInRoom(roomID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	conns := make([]uuid.UUID, 0, len(room))
	for connID := range room {
		conns = append(conns, connID)
	}
	return conns
}

// SinksInRoom resolves delivery sinks for a room, optionally excluding one
// connection (typically the originator).
func (r *Registry) SinksInRoom(roomID, exclude uuid.UUID) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	sinks := make([]Sink, 0, len(room))
	for connID := range room {
		if connID == exclude {
			continue
		}
		if b, ok := r.conns[connID]; ok {
			sinks = append(sinks, b.sink)
		}
	}
	return sinks
}

// Sink returns the delivery sink of a single bound connection.
func (r *Registry) Sink(connID uuid.UUID) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return b.sink, true
}

// UserOf resolves the authenticated user behind a connection.
func (r *Registry) UserOf(connID uuid.UUID) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.conns[connID]
	if !ok {
		return uuid.Nil, false
	}
	return b.userID, true
}

// ConnectionsOfUser returns every live connection id bound to the user.
func (r *Registry) ConnectionsOfUser(userID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]uuid.UUID, 0, len(r.userConns[userID]))
	for connID := range r.userConns[userID] {
		conns = append(conns, connID)
	}
	return conns
}

// IsUserOnline reports whether at least one live binding exists for the
// user.
func (r *Registry) IsUserOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.userConns[userID]) > 0
}

// IsSubscribed reports whether the connection currently has the room in
// its subscription set.
func (r *Registry) IsSubscribed(connID, roomID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.conns[connID]
	if !ok {
		return false
	}
	_, subscribed := b.rooms[roomID]
	return subscribed
}
