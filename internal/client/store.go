// Package client implements the client-side mirror of a user's rooms: a
// reconciliation layer that folds the server's event stream into local room,
// message and unread state. Server snapshots always win over local state;
// the store never merges participant lists.
package client

import (
	"sort"
	"sync"

	"github.com/library-min/TF-Planner-sub000/internal/models"
	"github.com/library-min/TF-Planner-sub000/internal/rooms"
)

// Upstream is the store's outbound edge: events the client emits back to the
// server when rooms are activated.
type Upstream interface {
	JoinRoom(roomID string)
	RequestParticipantRefresh(roomID string)
}

// RoomState is one locally-mirrored room.
type RoomState struct {
	models.Room
	Messages    []models.Message
	UnreadCount int
}

type roomEntry struct {
	room     models.Room
	roster   *models.Roster
	messages []models.Message
	seen     map[string]struct{}
}

// RoomStore reconciles inbound server events into local room state.
type RoomStore struct {
	mu       sync.Mutex
	selfID   string
	selfName string
	upstream Upstream
	unread   *UnreadTracker
	rooms    map[string]*roomEntry
	active   string
}

// NewRoomStore builds a store for the local user. upstream may be nil when
// the client has no live connection (e.g. tests or offline rendering).
func NewRoomStore(selfID, selfName string, upstream Upstream) *RoomStore {
	return &RoomStore{
		selfID:   selfID,
		selfName: selfName,
		upstream: upstream,
		unread:   NewUnreadTracker(selfID),
		rooms:    make(map[string]*roomEntry),
	}
}

// ApplyMessageReceived folds a message-received event into local state,
// materializing the room on the fly when it is unknown.
func (s *RoomStore) ApplyMessageReceived(ev models.MessageReceivedPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, known := s.rooms[ev.RoomID]
	switch {
	case !known && ev.Room != nil:
		entry = s.materializeLocked(*ev.Room)
	case !known:
		entry = s.synthesizeLocked(ev)
	case ev.Room != nil:
		// server snapshot wins wholesale; no client-side merge
		s.adoptRosterLocked(entry, *ev.Room)
	}

	// duplicate delivery is possible during registration races
	if _, dup := entry.seen[ev.Message.ID]; dup {
		return
	}
	entry.seen[ev.Message.ID] = struct{}{}
	entry.messages = append(entry.messages, ev.Message)
	entry.room.LastMessageAt = ev.Message.Timestamp

	s.unread.OnMessage(ev.RoomID, ev.Message.SenderID, s.active == ev.RoomID)
}

// ApplyParticipantsUpdated unconditionally overwrites local participant
// state for the room; the server is authoritative. A roster that no longer
// names the local user means they were removed, and the mirror is dropped.
func (s *RoomStore) ApplyParticipantsUpdated(ev models.ParticipantsUpdatedPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster := models.NewRoster()
	for i, id := range ev.ParticipantIDs {
		name := ""
		if i < len(ev.ParticipantNames) {
			name = ev.ParticipantNames[i]
		}
		roster.Add(id, name)
	}
	if roster.Len() == 0 {
		roster = models.NewRoster(ev.Room.Participants()...)
	}

	if !roster.Has(s.selfID) {
		delete(s.rooms, ev.RoomID)
		if s.active == ev.RoomID {
			s.active = ""
		}
		s.unread.OnActivate(ev.RoomID)
		return
	}

	entry, ok := s.rooms[ev.RoomID]
	if !ok {
		if ev.Room.ID == "" {
			return
		}
		entry = s.materializeLocked(ev.Room)
	}

	entry.roster = roster
	entry.room.Type = ev.Room.Type
	if ev.Room.Name != "" {
		entry.room.Name = ev.Room.Name
	}
	s.syncRosterLocked(entry)
}

// ApplyRoomUpsert handles room-created and room-invited events: the room is
// adopted only when the local user appears in the participant set, preferring
// the full participant list fields over the room object's own lists when the
// relay sent an abbreviated room.
func (s *RoomStore) ApplyRoomUpsert(ev models.RoomCreatedPayload) {
	ids := ev.FullParticipantList
	names := ev.FullParticipantNames
	if len(ids) == 0 {
		ids = ev.Room.ParticipantIDs
		names = ev.Room.ParticipantNames
	}

	member := false
	for _, id := range ids {
		if id == s.selfID {
			member = true
			break
		}
	}
	if !member {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room := ev.Room
	room.ParticipantIDs = ids
	room.ParticipantNames = names

	if entry, ok := s.rooms[room.ID]; ok {
		s.adoptRosterLocked(entry, room)
		if room.Name != "" {
			entry.room.Name = room.Name
		}
		entry.room.Type = room.Type
		return
	}
	s.materializeLocked(room)
}

// SetActiveRoom marks the room as the one on screen, resets its unread
// counter and re-subscribes/refreshes upstream so missed participant updates
// self-heal.
func (s *RoomStore) SetActiveRoom(roomID string) {
	s.mu.Lock()
	s.active = roomID
	s.mu.Unlock()

	s.unread.OnActivate(roomID)
	if s.upstream != nil && roomID != "" {
		s.upstream.JoinRoom(roomID)
		s.upstream.RequestParticipantRefresh(roomID)
	}
}

// ActiveRoom returns the id of the room currently displayed, empty if none.
func (s *RoomStore) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Room returns a copy of one mirrored room.
func (s *RoomStore) Room(roomID string) (RoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.rooms[roomID]
	if !ok {
		return RoomState{}, false
	}
	return s.stateLocked(entry), true
}

// Rooms lists all mirrored rooms, most recent activity first.
func (s *RoomStore) Rooms() []RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RoomState, 0, len(s.rooms))
	for _, entry := range s.rooms {
		out = append(out, s.stateLocked(entry))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// UnreadCount returns the unread counter for a room.
func (s *RoomStore) UnreadCount(roomID string) int {
	return s.unread.Count(roomID)
}

func (s *RoomStore) stateLocked(entry *roomEntry) RoomState {
	msgs := make([]models.Message, len(entry.messages))
	copy(msgs, entry.messages)
	return RoomState{
		Room:        entry.room,
		Messages:    msgs,
		UnreadCount: s.unread.Count(entry.room.ID),
	}
}

// materializeLocked adopts a server room snapshot, defensively appending the
// local user when the snapshot omitted it.
func (s *RoomStore) materializeLocked(room models.Room) *roomEntry {
	roster := models.NewRoster(room.Participants()...)
	roster.Add(s.selfID, s.selfName)

	entry := &roomEntry{
		room:   room,
		roster: roster,
		seen:   make(map[string]struct{}),
	}
	s.rooms[room.ID] = entry
	s.syncRosterLocked(entry)
	return entry
}

// synthesizeLocked builds a minimal local room for a message that arrived
// without a snapshot. Ids following the dm naming convention recover both
// participants; anything else degrades to a generic group of sender and self.
func (s *RoomStore) synthesizeLocked(ev models.MessageReceivedPayload) *roomEntry {
	var room models.Room
	if a, b, ok := rooms.ParseIndividualRoomID(ev.RoomID); ok {
		room = models.Room{
			ID:               ev.RoomID,
			Type:             models.RoomIndividual,
			ParticipantIDs:   []string{a, b},
			ParticipantNames: []string{s.displayName(a, ev), s.displayName(b, ev)},
			IsActive:         true,
		}
		room.Name = s.peerName(room)
	} else {
		room = models.Room{
			ID:               ev.RoomID,
			Name:             ev.Message.SenderName,
			Type:             models.RoomGroup,
			ParticipantIDs:   []string{ev.Message.SenderID, s.selfID},
			ParticipantNames: []string{ev.Message.SenderName, s.selfName},
			IsActive:         true,
		}
	}
	return s.materializeLocked(room)
}

func (s *RoomStore) displayName(userID string, ev models.MessageReceivedPayload) string {
	switch userID {
	case s.selfID:
		return s.selfName
	case ev.Message.SenderID:
		return ev.Message.SenderName
	default:
		return userID
	}
}

// peerName derives a 1:1 room title from the other participant.
func (s *RoomStore) peerName(room models.Room) string {
	for _, p := range room.Participants() {
		if p.ID != s.selfID {
			return p.Name
		}
	}
	return room.ID
}

func (s *RoomStore) adoptRosterLocked(entry *roomEntry, snapshot models.Room) {
	entry.roster = models.NewRoster(snapshot.Participants()...)
	s.syncRosterLocked(entry)
}

func (s *RoomStore) syncRosterLocked(entry *roomEntry) {
	entry.room.ParticipantIDs = entry.roster.IDs()
	entry.room.ParticipantNames = entry.roster.Names()
}
