package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "user:42", UserRoom(42))
	assert.Equal(t, "conversation:9", ConversationRoom(9))
}

func TestRoomsJoinLeave(t *testing.T) {
	r := NewRooms()
	c, _ := newTestClient(1, "a")

	r.Join("conversation:1", c)
	assert.True(t, r.InRoom("conversation:1", c))

	r.Leave("conversation:1", c)
	assert.False(t, r.InRoom("conversation:1", c))
	assert.Empty(t, r.Clients("conversation:1"))
}

func TestRoomsEmitSkipsExcept(t *testing.T) {
	r := NewRooms()
	a, recA := newTestClient(1, "a")
	b, recB := newTestClient(2, "b")
	r.Join("conversation:5", a)
	r.Join("conversation:5", b)

	r.Emit("conversation:5", EvtNewMessage, nil, a)

	assert.Empty(t, recA.events())
	assert.Equal(t, []string{EvtNewMessage}, recB.events())
}

func TestRoomsEmitExceptUserSkipsAllTheirConnections(t *testing.T) {
	r := NewRooms()
	a1, recA1 := newTestClient(1, "a")
	a2, recA2 := newTestClient(1, "a")
	b, recB := newTestClient(2, "b")
	r.Join("conversation:5", a1)
	r.Join("conversation:5", a2)
	r.Join("conversation:5", b)

	r.EmitExceptUser("conversation:5", EvtUserTyping, nil, 1)

	assert.Empty(t, recA1.events())
	assert.Empty(t, recA2.events())
	assert.Equal(t, []string{EvtUserTyping}, recB.events())
}

func TestRoomsLeaveAll(t *testing.T) {
	r := NewRooms()
	c, _ := newTestClient(1, "a")
	r.Join("user:1", c)
	r.Join("conversation:1", c)
	r.Join("conversation:2", c)

	r.LeaveAll(c)

	assert.False(t, r.InRoom("user:1", c))
	assert.False(t, r.InRoom("conversation:1", c))
	assert.False(t, r.InRoom("conversation:2", c))
}

func TestRoomsEvictUser(t *testing.T) {
	r := NewRooms()
	a1, _ := newTestClient(1, "a")
	a2, _ := newTestClient(1, "a")
	b, _ := newTestClient(2, "b")
	r.Join("conversation:3", a1)
	r.Join("conversation:3", a2)
	r.Join("conversation:3", b)
	r.Join("user:1", a1)

	evicted := r.EvictUser("conversation:3", 1)

	assert.Len(t, evicted, 2)
	assert.False(t, r.InRoom("conversation:3", a1))
	assert.False(t, r.InRoom("conversation:3", a2))
	assert.True(t, r.InRoom("conversation:3", b))
	assert.True(t, r.InRoom("user:1", a1), "other rooms are untouched")
}
