package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/library-min/TF-Planner-sub000/internal/models"
	"github.com/library-min/TF-Planner-sub000/internal/registry"
	"github.com/library-min/TF-Planner-sub000/internal/rooms"
)

// captureSender records deliveries per connection and can be told to fail
// specific connections.
type captureSender struct {
	mu     sync.Mutex
	events map[string][]models.ServerEvent
	fail   map[string]bool
}

func newCaptureSender() *captureSender {
	return &captureSender{events: make(map[string][]models.ServerEvent), fail: make(map[string]bool)}
}

func (s *captureSender) Deliver(connID string, event models.ServerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[connID] {
		return errors.New("write failed")
	}
	s.events[connID] = append(s.events[connID], event)
	return nil
}

func (s *captureSender) byType(connID, eventType string) []models.ServerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ServerEvent
	for _, ev := range s.events[connID] {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type staticSubscribers map[string][]string

func (s staticSubscribers) Subscribers(roomID string) []string { return s[roomID] }

func newTestRelay(subs staticSubscribers) (*Relay, *rooms.InMemoryDirectory, *registry.Registry, *captureSender) {
	dir := rooms.NewInMemoryDirectory(nil)
	reg := registry.New()
	sender := newCaptureSender()
	r := New(dir, reg, sender, subs, nil)
	return r, dir, reg, sender
}

func TestRelayRejectsMalformedRequests(t *testing.T) {
	r, _, _, _ := newTestRelay(nil)

	_, err := r.Relay(context.Background(), Request{RoomID: "dm_1_2", Content: "hi"})
	assert.ErrorIs(t, err, ErrMissingSender)

	_, err = r.Relay(context.Background(), Request{RoomID: "dm_1_2", SenderID: "1"})
	assert.ErrorIs(t, err, ErrMissingContent)
}

func TestRelayDirectMessageEndToEnd(t *testing.T) {
	r, dir, reg, sender := newTestRelay(nil)
	ctx := context.Background()

	reg.Register("1", "alice-conn")
	reg.Register("2", "bob-conn")

	res, err := r.Relay(ctx, Request{
		RoomID:     "dm_1_2",
		SenderID:   "1",
		SenderName: "alice",
		Content:    "hello",
	})
	require.NoError(t, err)

	// the room was lazily created from the dm id convention
	assert.True(t, res.RoomCreated)
	room, err := dir.GetByID(ctx, "dm_1_2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, room.ParticipantIDs)

	// bob receives the message with the sender's identity intact
	bobMsgs := sender.byType("bob-conn", models.EventMessageReceived)
	require.Len(t, bobMsgs, 1)
	payload := bobMsgs[0].Payload.(models.MessageReceivedPayload)
	assert.Equal(t, "hello", payload.Message.Content)
	assert.Equal(t, "1", payload.Message.SenderID)
	require.NotNil(t, payload.Room, "fresh room must carry a snapshot")

	// bob is notified; alice gets her own echo but no notification
	assert.Len(t, sender.byType("bob-conn", models.EventNewMessageNotice), 1)
	assert.Len(t, sender.byType("alice-conn", models.EventMessageReceived), 1)
	assert.Empty(t, sender.byType("alice-conn", models.EventNewMessageNotice))

	assert.Equal(t, 2, res.Delivered)

	// server-assigned stamp
	assert.NotEmpty(t, res.Message.ID)
	assert.False(t, res.Message.Timestamp.IsZero())

	history, err := dir.Messages(ctx, "dm_1_2")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRelayFanOutCoversEveryConnection(t *testing.T) {
	r, dir, reg, sender := newTestRelay(nil)
	ctx := context.Background()

	room, err := dir.CreateGroupRoom(ctx, "a", "ann", []models.Participant{
		{ID: "b", Name: "ben"},
		{ID: "c", Name: "cal"},
	}, "team")
	require.NoError(t, err)

	reg.Register("a", "a1")
	reg.Register("b", "b1")
	reg.Register("b", "b2")
	reg.Register("c", "c1")

	res, err := r.Relay(ctx, Request{RoomID: room.ID, SenderID: "a", SenderName: "ann", Content: "standup?"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Delivered)

	for _, connID := range []string{"a1", "b1", "b2", "c1"} {
		assert.Len(t, sender.byType(connID, models.EventMessageReceived), 1, connID)
	}
	assert.Empty(t, sender.byType("a1", models.EventNewMessageNotice))
	assert.Len(t, sender.byType("b1", models.EventNewMessageNotice), 1)
	assert.Len(t, sender.byType("b2", models.EventNewMessageNotice), 1)
	assert.Len(t, sender.byType("c1", models.EventNewMessageNotice), 1)
}

func TestRelaySnapshotOnlyWhenRosterChanges(t *testing.T) {
	r, dir, reg, sender := newTestRelay(nil)
	ctx := context.Background()

	room, err := dir.CreateGroupRoom(ctx, "a", "ann", []models.Participant{{ID: "b", Name: "ben"}}, "g")
	require.NoError(t, err)
	reg.Register("b", "b1")

	_, err = r.Relay(ctx, Request{RoomID: room.ID, SenderID: "a", SenderName: "ann", Content: "one"})
	require.NoError(t, err)
	_, err = r.Relay(ctx, Request{RoomID: room.ID, SenderID: "a", SenderName: "ann", Content: "two"})
	require.NoError(t, err)

	got := sender.byType("b1", models.EventMessageReceived)
	require.Len(t, got, 2)
	assert.NotNil(t, got[0].Payload.(models.MessageReceivedPayload).Room, "first relay for a room includes a snapshot")
	assert.Nil(t, got[1].Payload.(models.MessageReceivedPayload).Room, "unchanged roster sends no snapshot")

	// roster change re-attaches the snapshot
	_, err = dir.Invite(ctx, room.ID, []models.Participant{{ID: "c", Name: "cal"}})
	require.NoError(t, err)
	_, err = r.Relay(ctx, Request{RoomID: room.ID, SenderID: "a", SenderName: "ann", Content: "three"})
	require.NoError(t, err)

	got = sender.byType("b1", models.EventMessageReceived)
	require.Len(t, got, 3)
	assert.NotNil(t, got[2].Payload.(models.MessageReceivedPayload).Room)
}

func TestRelayLazyGroupFromParticipantHint(t *testing.T) {
	r, dir, reg, sender := newTestRelay(nil)
	ctx := context.Background()

	reg.Register("1", "c1")
	reg.Register("2", "c2")
	reg.Register("3", "c3")

	res, err := r.Relay(ctx, Request{
		RoomID:     "client-generated-id",
		SenderID:   "1",
		SenderName: "alice",
		Content:    "hi all",
		Participants: []models.Participant{
			{ID: "2", Name: "bob"},
			{ID: "3", Name: "carol"},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.RoomCreated)
	assert.Equal(t, models.RoomGroup, res.Room.Type)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, res.Room.ParticipantIDs)
	assert.Equal(t, 3, res.Delivered)
	assert.Len(t, sender.byType("c3", models.EventMessageReceived), 1)

	// the room is keyed under the client's id and the message carries it
	assert.Equal(t, "client-generated-id", res.Room.ID)
	assert.Equal(t, res.Room.ID, res.Message.RoomID)
	room, err := dir.GetByID(ctx, "client-generated-id")
	require.NoError(t, err)

	// a second send to the same id lands in the same room
	again, err := r.Relay(ctx, Request{
		RoomID:     "client-generated-id",
		SenderID:   "2",
		SenderName: "bob",
		Content:    "hi back",
	})
	require.NoError(t, err)
	assert.False(t, again.RoomCreated)
	assert.Equal(t, room.ID, again.Room.ID)

	history, err := dir.Messages(ctx, "client-generated-id")
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, m := range history {
		assert.Equal(t, "client-generated-id", m.RoomID)
	}
}

func TestRelayUnsortedDMIDConvergesOnCanonicalRoom(t *testing.T) {
	r, dir, reg, _ := newTestRelay(nil)
	ctx := context.Background()
	reg.Register("1", "c1")

	res, err := r.Relay(ctx, Request{RoomID: "dm_2_1", SenderID: "2", SenderName: "bob", Content: "hey"})
	require.NoError(t, err)

	// the room resolves to the sorted-pair id and the message is stamped
	// with it, not the id the client addressed
	assert.Equal(t, "dm_1_2", res.Room.ID)
	assert.Equal(t, "dm_1_2", res.Message.RoomID)

	history, err := dir.Messages(ctx, "dm_1_2")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "dm_1_2", history[0].RoomID)

	_, err = dir.GetByID(ctx, "dm_2_1")
	assert.ErrorIs(t, err, rooms.ErrRoomNotFound)
}

func TestRelayLegacyBroadcastFallback(t *testing.T) {
	subs := staticSubscribers{"lobby": {"x1", "x2"}}
	r, _, _, sender := newTestRelay(subs)

	res, err := r.Relay(context.Background(), Request{RoomID: "lobby", SenderID: "1", SenderName: "alice", Content: "anyone?"})
	require.NoError(t, err)
	assert.True(t, res.LegacyPath)
	assert.Equal(t, 2, res.Delivered)
	assert.Len(t, sender.byType("x1", models.EventMessageReceived), 1)
	assert.Len(t, sender.byType("x2", models.EventMessageReceived), 1)
	assert.Empty(t, sender.byType("x1", models.EventNewMessageNotice))
}

func TestRelayBroadcastRoomAuthorOnly(t *testing.T) {
	r, dir, reg, _ := newTestRelay(nil)
	ctx := context.Background()

	room, err := dir.CreateBroadcastRoom(ctx, "admin", "Admin", "announcements", []models.Participant{{ID: "1", Name: "alice"}})
	require.NoError(t, err)
	reg.Register("1", "c1")
	reg.Register("admin", "a1")

	_, err = r.Relay(ctx, Request{RoomID: room.ID, SenderID: "1", SenderName: "alice", Content: "hi"})
	assert.ErrorIs(t, err, ErrNotBroadcaster)

	res, err := r.Relay(ctx, Request{RoomID: room.ID, SenderID: "admin", SenderName: "Admin", Content: "release tonight"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
}

func TestRelayIsolatesDeliveryFailures(t *testing.T) {
	r, dir, reg, sender := newTestRelay(nil)
	ctx := context.Background()

	room, err := dir.CreateGroupRoom(ctx, "a", "ann", []models.Participant{{ID: "b", Name: "ben"}}, "g")
	require.NoError(t, err)
	reg.Register("a", "a1")
	reg.Register("b", "b1")
	sender.fail["a1"] = true

	res, err := r.Relay(ctx, Request{RoomID: room.ID, SenderID: "a", SenderName: "ann", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Len(t, sender.byType("b1", models.EventMessageReceived), 1)
}

func TestRelayOfflineParticipantIsNotAnError(t *testing.T) {
	r, _, reg, _ := newTestRelay(nil)
	reg.Register("1", "c1")
	reg.Unregister("c1")

	res, err := r.Relay(context.Background(), Request{RoomID: "dm_1_2", SenderID: "1", SenderName: "alice", Content: "hello?"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Delivered)
}
