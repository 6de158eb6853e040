package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordedFrame struct {
	Event string
	Data  any
}

// recorder is an in-memory wireConn for tests.
type recorder struct {
	mu     sync.Mutex
	frames []recordedFrame
	closed bool
}

func (r *recorder) WriteJSON(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	env := v.(outEnvelope)
	r.frames = append(r.frames, recordedFrame{Event: env.Event, Data: env.Data})
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.frames))
	for i, f := range r.frames {
		names[i] = f.Event
	}
	return names
}

func newTestClient(userID int64, username string) (*Client, *recorder) {
	rec := &recorder{}
	return NewClient(userID, username, rec), rec
}

func TestPresenceFirstAndLast(t *testing.T) {
	p := NewPresence()
	c1, _ := newTestClient(7, "alice")
	c2, _ := newTestClient(7, "alice")

	assert.False(t, p.IsOnline(7))
	assert.True(t, p.Register(7, c1), "first connection brings the user online")
	assert.False(t, p.Register(7, c2), "second connection is not a fresh online")
	assert.True(t, p.IsOnline(7))

	assert.False(t, p.Unregister(7, c1), "one connection remains")
	assert.True(t, p.IsOnline(7))
	assert.True(t, p.Unregister(7, c2), "last connection takes the user offline")
	assert.False(t, p.IsOnline(7))
}

func TestPresenceUnregisterUnknown(t *testing.T) {
	p := NewPresence()
	c1, _ := newTestClient(1, "a")
	c2, _ := newTestClient(1, "a")

	assert.False(t, p.Unregister(1, c1), "never registered")

	p.Register(1, c1)
	assert.False(t, p.Unregister(1, c2), "different connection of the same user")
	assert.True(t, p.IsOnline(1))
}

func TestPresenceListOnline(t *testing.T) {
	p := NewPresence()
	a, _ := newTestClient(1, "a")
	b1, _ := newTestClient(2, "b")
	b2, _ := newTestClient(2, "b")
	p.Register(1, a)
	p.Register(2, b1)
	p.Register(2, b2)

	assert.ElementsMatch(t, []int64{1, 2}, p.ListOnline())
	assert.Len(t, p.ClientsFor(2), 2)
	assert.Len(t, p.AllClients(), 3)

	p.Unregister(2, b1)
	p.Unregister(2, b2)
	assert.ElementsMatch(t, []int64{1}, p.ListOnline())
	assert.Empty(t, p.ClientsFor(2))
}
