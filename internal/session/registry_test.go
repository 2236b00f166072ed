package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinReturnsFullRoster(t *testing.T) {
	reg := NewRegistry()

	roster := reg.Join("c1", "R1", "alice")
	require.Len(t, roster, 1)
	assert.Equal(t, Member{SocketID: "c1", Username: "alice"}, roster[0])

	roster = reg.Join("c2", "R1", "bob")
	require.Len(t, roster, 2)
	assert.Equal(t, "alice", roster[0].Username)
	assert.Equal(t, "bob", roster[1].Username)
}

func TestRosterIsStableAcrossCalls(t *testing.T) {
	reg := NewRegistry()
	reg.Join("b", "R1", "bob")
	reg.Join("a", "R1", "alice")
	reg.Join("c", "R1", "carol")

	first := reg.Members("R1")
	second := reg.Members("R1")
	assert.Equal(t, first, second)
}

func TestLeaveRemovesMemberAndIdentity(t *testing.T) {
	reg := NewRegistry()
	reg.Join("c1", "R1", "alice")
	reg.Join("c2", "R1", "bob")

	rooms, name := reg.Leave("c1")
	assert.Equal(t, []string{"R1"}, rooms)
	assert.Equal(t, "alice", name)

	roster := reg.Members("R1")
	require.Len(t, roster, 1)
	assert.Equal(t, "c2", roster[0].SocketID)

	_, ok := reg.Username("c1")
	assert.False(t, ok)
}

func TestLeaveIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Join("c1", "R1", "alice")

	rooms, name := reg.Leave("c1")
	assert.Equal(t, []string{"R1"}, rooms)
	assert.Equal(t, "alice", name)

	rooms, name = reg.Leave("c1")
	assert.Empty(t, rooms)
	assert.Empty(t, name)
}

func TestLeaveUnknownConnection(t *testing.T) {
	reg := NewRegistry()
	rooms, name := reg.Leave("ghost")
	assert.Empty(t, rooms)
	assert.Empty(t, name)
}

func TestRoomOf(t *testing.T) {
	reg := NewRegistry()
	reg.Join("c1", "R1", "alice")

	room, ok := reg.RoomOf("c1")
	require.True(t, ok)
	assert.Equal(t, "R1", room)

	_, ok = reg.RoomOf("c2")
	assert.False(t, ok)
}

func TestRoomCountIgnoresEmptiedRooms(t *testing.T) {
	reg := NewRegistry()
	reg.Join("c1", "R1", "alice")
	reg.Join("c2", "R2", "bob")
	assert.Equal(t, 2, reg.RoomCount())

	reg.Leave("c2")
	assert.Equal(t, 1, reg.RoomCount())
}
