package ws

import (
	"fmt"
	"sync"
)

// UserRoom is the personal room every connection of a user joins on connect.
func UserRoom(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// ConversationRoom is the room for a conversation's subscribed connections.
func ConversationRoom(conversationID int64) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

// Rooms groups connections under string names for targeted fan-out.
// Membership is per connection, not per user.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[*Client]struct{}),
		joined:  make(map[*Client]map[string]struct{}),
	}
}

func (r *Rooms) Join(room string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[room]
	if !ok {
		set = make(map[*Client]struct{})
		r.members[room] = set
	}
	set[c] = struct{}{}

	rooms, ok := r.joined[c]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[c] = rooms
	}
	rooms[room] = struct{}{}
}

func (r *Rooms) Leave(room string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(room, c)
}

func (r *Rooms) leaveLocked(room string, c *Client) {
	if set, ok := r.members[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	if rooms, ok := r.joined[c]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, c)
		}
	}
}

// LeaveAll removes the connection from every room it joined. Called on
// disconnect so closed connections never linger in fan-out sets.
func (r *Rooms) LeaveAll(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[c] {
		if set, ok := r.members[room]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(r.members, room)
			}
		}
	}
	delete(r.joined, c)
}

// InRoom reports whether the connection currently belongs to the room.
func (r *Rooms) InRoom(room string, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room][c]
	return ok
}

// Clients returns a snapshot of the room's connections.
func (r *Rooms) Clients(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[room]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// Emit sends the event to every connection in the room. When except is
// non-nil that connection is skipped.
func (r *Rooms) Emit(room, event string, data any, except *Client) {
	for _, c := range r.Clients(room) {
		if c == except {
			continue
		}
		c.Send(event, data)
	}
}

// EmitExceptUser sends the event to every connection in the room that does
// not belong to the given user. Used when all of a user's connections must
// be skipped, not just the one that triggered the event.
func (r *Rooms) EmitExceptUser(room, event string, data any, exceptUserID int64) {
	for _, c := range r.Clients(room) {
		if c.UserID == exceptUserID {
			continue
		}
		c.Send(event, data)
	}
}

// EvictUser removes every connection of the user from the room and returns
// the evicted connections.
func (r *Rooms) EvictUser(room string, userID int64) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*Client
	for c := range r.members[room] {
		if c.UserID == userID {
			evicted = append(evicted, c)
		}
	}
	for _, c := range evicted {
		r.leaveLocked(room, c)
	}
	return evicted
}
