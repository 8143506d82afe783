package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/library-min/TF-Planner-sub000/internal/models"
)

type recordingUpstream struct {
	joined    []string
	refreshed []string
}

func (u *recordingUpstream) JoinRoom(roomID string)                  { u.joined = append(u.joined, roomID) }
func (u *recordingUpstream) RequestParticipantRefresh(roomID string) { u.refreshed = append(u.refreshed, roomID) }

func msg(id, roomID, senderID, senderName, content string) models.Message {
	return models.Message{
		ID:         id,
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Type:       models.MessageText,
		Timestamp:  time.Now().UTC(),
	}
}

func TestMessageForUnknownRoomWithSnapshot(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)

	snapshot := models.Room{
		ID:               "dm_1_2",
		Name:             "alice",
		Type:             models.RoomIndividual,
		ParticipantIDs:   []string{"1", "2"},
		ParticipantNames: []string{"alice", "bob"},
		IsActive:         true,
	}
	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "dm_1_2",
		Message: msg("m1", "dm_1_2", "1", "alice", "hello"),
		Room:    &snapshot,
	})

	state, ok := store.Room("dm_1_2")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, state.ParticipantIDs)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "hello", state.Messages[0].Content)
	assert.Equal(t, 1, state.UnreadCount)
}

func TestSnapshotMissingSelfIsRepaired(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)

	snapshot := models.Room{
		ID:               "room-x",
		Type:             models.RoomGroup,
		ParticipantIDs:   []string{"1"},
		ParticipantNames: []string{"alice"},
	}
	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "room-x",
		Message: msg("m1", "room-x", "1", "alice", "hi"),
		Room:    &snapshot,
	})

	state, ok := store.Room("room-x")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, state.ParticipantIDs)
	assert.Equal(t, []string{"alice", "bob"}, state.ParticipantNames)
}

func TestMessageForUnknownDMRoomSynthesizesFromID(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)

	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "dm_1_2",
		Message: msg("m1", "dm_1_2", "1", "alice", "hey"),
	})

	state, ok := store.Room("dm_1_2")
	require.True(t, ok)
	assert.Equal(t, models.RoomIndividual, state.Type)
	assert.Equal(t, []string{"1", "2"}, state.ParticipantIDs)
	assert.Equal(t, []string{"alice", "bob"}, state.ParticipantNames)
	assert.Equal(t, "alice", state.Name)
}

func TestMessageForUnknownOpaqueRoomSynthesizesGenericGroup(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)

	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "mystery-room",
		Message: msg("m1", "mystery-room", "9", "zoe", "hi"),
	})

	state, ok := store.Room("mystery-room")
	require.True(t, ok)
	assert.Equal(t, models.RoomGroup, state.Type)
	assert.ElementsMatch(t, []string{"9", "2"}, state.ParticipantIDs)
}

func TestSnapshotWinsOverLocalParticipants(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)

	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "dm_1_2",
		Message: msg("m1", "dm_1_2", "1", "alice", "one"),
	})

	// later message carries a grown roster; local state is replaced, not merged
	snapshot := models.Room{
		ID:               "dm_1_2",
		Type:             models.RoomGroup,
		ParticipantIDs:   []string{"1", "2", "3"},
		ParticipantNames: []string{"alice", "bob", "carol"},
	}
	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "dm_1_2",
		Message: msg("m2", "dm_1_2", "3", "carol", "joined"),
		Room:    &snapshot,
	})

	state, _ := store.Room("dm_1_2")
	assert.Equal(t, []string{"1", "2", "3"}, state.ParticipantIDs)
	assert.Len(t, state.Messages, 2)
}

func TestDuplicateMessagesAreDropped(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)

	m := msg("m1", "dm_1_2", "1", "alice", "hello")
	store.ApplyMessageReceived(models.MessageReceivedPayload{RoomID: "dm_1_2", Message: m})
	store.ApplyMessageReceived(models.MessageReceivedPayload{RoomID: "dm_1_2", Message: m})

	state, _ := store.Room("dm_1_2")
	assert.Len(t, state.Messages, 1)
	assert.Equal(t, 1, state.UnreadCount)
}

func TestParticipantsUpdatedOverwrites(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)
	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "dm_1_2",
		Message: msg("m1", "dm_1_2", "1", "alice", "hi"),
	})

	store.ApplyParticipantsUpdated(models.ParticipantsUpdatedPayload{
		RoomID: "dm_1_2",
		Room: models.Room{
			ID:   "dm_1_2",
			Name: "Group chat, 3 people",
			Type: models.RoomGroup,
		},
		ParticipantIDs:   []string{"1", "2", "3"},
		ParticipantNames: []string{"alice", "bob", "carol"},
		ParticipantCount: 3,
	})

	state, _ := store.Room("dm_1_2")
	assert.Equal(t, models.RoomGroup, state.Type)
	assert.Equal(t, []string{"1", "2", "3"}, state.ParticipantIDs)
	assert.Equal(t, "Group chat, 3 people", state.Name)
}

func TestParticipantsUpdatedRemovingSelfDropsRoom(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)
	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "g1",
		Message: msg("m1", "g1", "1", "alice", "hi"),
	})
	store.SetActiveRoom("g1")

	store.ApplyParticipantsUpdated(models.ParticipantsUpdatedPayload{
		RoomID:           "g1",
		Room:             models.Room{ID: "g1", Type: models.RoomGroup},
		ParticipantIDs:   []string{"1", "3"},
		ParticipantNames: []string{"alice", "carol"},
		ParticipantCount: 2,
	})

	_, ok := store.Room("g1")
	assert.False(t, ok, "removal from the roster ends the local mirror")
	assert.Empty(t, store.ActiveRoom())
	assert.Equal(t, 0, store.UnreadCount("g1"))

	// later messages for the departed room are treated as unknown again
	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "g1",
		Message: msg("m2", "g1", "1", "alice", "after removal"),
	})
	state, ok := store.Room("g1")
	require.True(t, ok)
	assert.Len(t, state.Messages, 1)
	assert.Equal(t, "after removal", state.Messages[0].Content)
}

func TestRoomUpsertOnlyWhenSelfIsListed(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)

	store.ApplyRoomUpsert(models.RoomCreatedPayload{
		Room: models.Room{
			ID:               "g1",
			Type:             models.RoomGroup,
			ParticipantIDs:   []string{"1", "3"},
			ParticipantNames: []string{"alice", "carol"},
		},
	})
	_, ok := store.Room("g1")
	assert.False(t, ok, "rooms not containing self are ignored")

	store.ApplyRoomUpsert(models.RoomCreatedPayload{
		Room: models.Room{
			ID:               "g2",
			Type:             models.RoomGroup,
			ParticipantIDs:   []string{"1"},
			ParticipantNames: []string{"alice"},
		},
		// abbreviated room object, fuller out-of-band list
		FullParticipantList:  []string{"1", "2"},
		FullParticipantNames: []string{"alice", "bob"},
	})
	state, ok := store.Room("g2")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, state.ParticipantIDs)
}

func TestSetActiveRoomResetsUnreadAndResubscribes(t *testing.T) {
	upstream := &recordingUpstream{}
	store := NewRoomStore("2", "bob", upstream)

	for _, id := range []string{"m1", "m2", "m3"} {
		store.ApplyMessageReceived(models.MessageReceivedPayload{
			RoomID:  "dm_1_2",
			Message: msg(id, "dm_1_2", "1", "alice", "ping"),
		})
	}
	assert.Equal(t, 3, store.UnreadCount("dm_1_2"))

	store.SetActiveRoom("dm_1_2")
	assert.Equal(t, 0, store.UnreadCount("dm_1_2"))
	assert.Equal(t, []string{"dm_1_2"}, upstream.joined)
	assert.Equal(t, []string{"dm_1_2"}, upstream.refreshed)

	// messages for the active room stay read
	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "dm_1_2",
		Message: msg("m4", "dm_1_2", "1", "alice", "still here"),
	})
	assert.Equal(t, 0, store.UnreadCount("dm_1_2"))

	// navigating away resumes counting
	store.SetActiveRoom("")
	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "dm_1_2",
		Message: msg("m5", "dm_1_2", "1", "alice", "back"),
	})
	assert.Equal(t, 1, store.UnreadCount("dm_1_2"))
}

func TestOwnMessagesNeverCountAsUnread(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)

	store.ApplyMessageReceived(models.MessageReceivedPayload{
		RoomID:  "dm_1_2",
		Message: msg("m1", "dm_1_2", "2", "bob", "my own echo"),
	})
	assert.Equal(t, 0, store.UnreadCount("dm_1_2"))
}

func TestRoomsSortedByActivity(t *testing.T) {
	store := NewRoomStore("2", "bob", nil)

	early := msg("m1", "dm_1_2", "1", "alice", "old")
	early.Timestamp = time.Now().Add(-time.Hour)
	store.ApplyMessageReceived(models.MessageReceivedPayload{RoomID: "dm_1_2", Message: early})
	store.ApplyMessageReceived(models.MessageReceivedPayload{RoomID: "dm_2_3", Message: msg("m2", "dm_2_3", "3", "carol", "new")})

	rooms := store.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "dm_2_3", rooms[0].ID)
}
