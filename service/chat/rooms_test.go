package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomsJoinIdempotent(t *testing.T) {
	r := NewRooms()
	assert.True(t, r.Join("c1", "chat1"))
	assert.False(t, r.Join("c1", "chat1"))
	assert.Equal(t, []string{"c1"}, r.Members("chat1"))
	assert.True(t, r.In("c1", "chat1"))
	assert.Equal(t, 1, r.Count())
}

func TestRoomsLeave(t *testing.T) {
	r := NewRooms()
	r.Join("c1", "chat1")
	r.Join("c1", "chat2")
	r.Join("c2", "chat1")

	assert.True(t, r.Leave("c1", "chat2"))
	assert.False(t, r.Leave("c1", "chat2"))
	assert.Equal(t, []string{"chat1"}, r.ChatsOf("c1"))
	assert.Equal(t, 1, r.Count())

	assert.Equal(t, []string{"chat1"}, r.LeaveAll("c1"))
	assert.Equal(t, []string{"c2"}, r.Members("chat1"))
	assert.Empty(t, r.LeaveAll("c1"))

	r.LeaveAll("c2")
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.Members("chat1"))
}
