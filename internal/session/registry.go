package session

import (
	"sort"
	"sync"
)

// Member is one connection's participation record in a room.
type Member struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// Registry owns room membership. A connection joins at most one room;
// rooms are created on first join and simply empty out as members leave.
type Registry struct {
	identity *Identity

	mu     sync.RWMutex
	rooms  map[string]map[string]struct{} // room key -> member connection IDs
	joined map[string]string              // connection ID -> room key
}

func NewRegistry() *Registry {
	return &Registry{
		identity: NewIdentity(),
		rooms:    map[string]map[string]struct{}{},
		joined:   map[string]string{},
	}
}

// Join registers the member and returns the room's full roster, joiner
// included. Roster order is stable (sorted by socket ID) so every member
// sees the same list.
func (r *Registry) Join(connID, roomKey, username string) []Member {
	r.identity.Set(connID, username)

	r.mu.Lock()
	if r.rooms[roomKey] == nil {
		r.rooms[roomKey] = map[string]struct{}{}
	}
	r.rooms[roomKey][connID] = struct{}{}
	r.joined[connID] = roomKey
	r.mu.Unlock()

	return r.Members(roomKey)
}

// Leave removes the connection from its room and from the identity map.
// Returns the vacated room keys and the last-known display name so a
// disconnected notice can be broadcast. Idempotent under duplicate calls.
func (r *Registry) Leave(connID string) ([]string, string) {
	username, _ := r.identity.Get(connID)
	r.identity.Remove(connID)

	r.mu.Lock()
	defer r.mu.Unlock()

	var vacated []string
	if roomKey, ok := r.joined[connID]; ok {
		delete(r.joined, connID)
		if members := r.rooms[roomKey]; members != nil {
			delete(members, connID)
		}
		vacated = append(vacated, roomKey)
	}
	return vacated, username
}

// Members returns the current roster of a room.
func (r *Registry) Members(roomKey string) []Member {
	r.mu.RLock()
	ids := make([]string, 0, len(r.rooms[roomKey]))
	for id := range r.rooms[roomKey] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	roster := make([]Member, 0, len(ids))
	for _, id := range ids {
		name, ok := r.identity.Get(id)
		if !ok {
			continue // mid-disconnect, keep the roster free of stale entries
		}
		roster = append(roster, Member{SocketID: id, Username: name})
	}
	return roster
}

// RoomOf returns the room a connection belongs to, if any.
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomKey, ok := r.joined[connID]
	return roomKey, ok
}

// Username looks up a connection's display name.
func (r *Registry) Username(connID string) (string, bool) {
	return r.identity.Get(connID)
}

// RoomCount reports how many rooms currently have at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, members := range r.rooms {
		if len(members) > 0 {
			n++
		}
	}
	return n
}
