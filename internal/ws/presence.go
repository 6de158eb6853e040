package ws

import (
	"sync"
)

// Presence tracks which users currently hold live connections. It is
// process-local and best-effort; persisted membership stays authoritative.
type Presence struct {
	mu    sync.RWMutex
	conns map[int64]map[*Client]struct{}
}

func NewPresence() *Presence {
	return &Presence{
		conns: make(map[int64]map[*Client]struct{}),
	}
}

// Register adds a connection and reports whether it is the user's first,
// i.e. the user just came online.
func (p *Presence) Register(userID int64, c *Client) (first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userID]
	if !ok {
		set = make(map[*Client]struct{})
		p.conns[userID] = set
	}
	first = len(set) == 0
	set[c] = struct{}{}
	return first
}

// Unregister removes a connection and reports whether it was the user's
// last, i.e. the user just went offline. Removing a connection that was
// never registered reports false.
func (p *Presence) Unregister(userID int64, c *Client) (last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(p.conns, userID)
		return true
	}
	return false
}

func (p *Presence) IsOnline(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID]) > 0
}

// ListOnline returns the IDs of all users with at least one connection.
func (p *Presence) ListOnline() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]int64, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	return ids
}

// ClientsFor returns the user's live connections.
func (p *Presence) ClientsFor(userID int64) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := p.conns[userID]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// AllClients returns every live connection across all users.
func (p *Presence) AllClients() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var clients []*Client
	for _, set := range p.conns {
		for c := range set {
			clients = append(clients, c)
		}
	}
	return clients
}
