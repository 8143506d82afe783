package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/library-min/TF-Planner-sub000/internal/models"
	"github.com/library-min/TF-Planner-sub000/internal/session"
)

func newTestConn(id string) *Conn {
	return newConn(id, nil, ConnInfo{ConnID: id})
}

func TestHubJoinAndSubscribers(t *testing.T) {
	hub := NewHub()
	hub.Add(newTestConn("c1"))
	hub.Add(newTestConn("c2"))

	hub.Join("room-42", "c1")
	hub.Join("room-42", "c2")
	hub.Join("room-42", "c2") // repeated join is a no-op

	assert.ElementsMatch(t, []string{"c1", "c2"}, hub.Subscribers("room-42"))
}

func TestHubJoinUnknownConnIgnored(t *testing.T) {
	hub := NewHub()
	hub.Join("room-42", "ghost")
	assert.Empty(t, hub.Subscribers("room-42"))
}

func TestHubLeave(t *testing.T) {
	hub := NewHub()
	hub.Add(newTestConn("c1"))
	hub.Join("room-42", "c1")

	hub.Leave("room-42", "c1")
	assert.Empty(t, hub.Subscribers("room-42"))

	// leaving a room it never joined must not panic
	hub.Leave("other", "c1")
}

func TestHubRemoveDropsAllSubscriptions(t *testing.T) {
	hub := NewHub()
	hub.Add(newTestConn("c1"))
	hub.Add(newTestConn("c2"))
	hub.Join("room-a", "c1")
	hub.Join("room-b", "c1")
	hub.Join("room-a", "c2")

	hub.Remove("c1")

	_, ok := hub.Get("c1")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"c2"}, hub.Subscribers("room-a"))
	assert.Empty(t, hub.Subscribers("room-b"))
}

func TestHubDeliverUnknownConn(t *testing.T) {
	hub := NewHub()
	err := hub.Deliver("nope", models.ServerEvent{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnNotFound)
}

func TestConnIdentityLifecycle(t *testing.T) {
	conn := newTestConn("c1")

	_, ok := conn.Identity()
	assert.False(t, ok)

	conn.SetIdentity(session.Identity{UserID: "u1", DisplayName: "Alice"})
	id, ok := conn.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
}
