package rooms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/library-min/TF-Planner-sub000/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

const individualRoomPrefix = "dm_"

// DeriveIndividualRoomID builds the deterministic id for a direct-message
// room. The two ids are sorted lexicographically so both sides of a first
// contact converge on the same room without a negotiation round-trip.
func DeriveIndividualRoomID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return individualRoomPrefix + pair[0] + "_" + pair[1]
}

// ParseIndividualRoomID recovers the two participant ids from a derived room
// id. Best-effort: ids containing the separator themselves are ambiguous, so
// this is only used on legacy fallback paths.
func ParseIndividualRoomID(roomID string) (string, string, bool) {
	if !strings.HasPrefix(roomID, individualRoomPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(roomID, individualRoomPrefix)
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Directory manages room records and their in-memory message history.
type Directory interface {
	GetOrCreateIndividualRoom(ctx context.Context, userA, nameA, userB, nameB string) (models.Room, bool, error)
	CreateGroupRoom(ctx context.Context, creatorID, creatorName string, participants []models.Participant, name string) (models.Room, error)
	EnsureGroupRoom(ctx context.Context, roomID, creatorID, creatorName string, participants []models.Participant) (models.Room, bool, error)
	CreateBroadcastRoom(ctx context.Context, creatorID, creatorName, name string, participants []models.Participant) (models.Room, error)
	Invite(ctx context.Context, roomID string, newParticipants []models.Participant) (models.Room, error)
	Remove(ctx context.Context, roomID, userID string) (models.Room, error)
	GetByID(ctx context.Context, roomID string) (models.Room, error)
	GetByParticipantPair(ctx context.Context, userA, userB string) (models.Room, error)
	RoomsFor(ctx context.Context, userID string) ([]models.Room, error)
	AppendMessage(ctx context.Context, roomID string, msg models.Message) error
	Messages(ctx context.Context, roomID string) ([]models.Message, error)
}

// Archiver is the optional append-only log collaborator behind message
// appends. Delivery to the archive is best-effort and never blocks the relay.
type Archiver interface {
	Append(ctx context.Context, msg models.Message) error
}

type record struct {
	id            string
	name          string
	typ           models.RoomType
	roster        *models.Roster
	createdAt     time.Time
	lastMessageAt time.Time
	createdBy     string
	active        bool
	messages      []models.Message
}

// InMemoryDirectory holds all room state for the process lifetime. Reads
// never observe a partially-applied write: roster and name mutations happen
// under the directory lock and snapshots are deep copies.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	rooms   map[string]*record
	archive Archiver
	now     func() time.Time
}

// NewInMemoryDirectory builds an empty directory. archive may be nil.
func NewInMemoryDirectory(archive Archiver) *InMemoryDirectory {
	return &InMemoryDirectory{
		rooms:   make(map[string]*record),
		archive: archive,
		now:     time.Now,
	}
}

func (d *InMemoryDirectory) snapshotLocked(r *record) models.Room {
	return models.Room{
		ID:               r.id,
		Name:             r.name,
		Type:             r.typ,
		ParticipantIDs:   r.roster.IDs(),
		ParticipantNames: r.roster.Names(),
		CreatedAt:        r.createdAt,
		LastMessageAt:    r.lastMessageAt,
		CreatedBy:        r.createdBy,
		IsActive:         r.active,
	}
}

// GetOrCreateIndividualRoom looks up the room by its derived id and creates
// it if absent. Safe under concurrent first contact from both sides: the
// second creator's call degrades to a lookup.
func (d *InMemoryDirectory) GetOrCreateIndividualRoom(ctx context.Context, userA, nameA, userB, nameB string) (models.Room, bool, error) {
	if userA == "" || userB == "" {
		return models.Room{}, false, errors.New("both participant ids are required")
	}
	if userA == userB {
		return models.Room{}, false, errors.New("cannot create individual room with self")
	}

	id := DeriveIndividualRoomID(userA, userB)

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.rooms[id]; ok {
		return d.snapshotLocked(existing), false, nil
	}

	now := d.now().UTC()
	r := &record{
		id:        id,
		typ:       models.RoomIndividual,
		roster:    models.NewRoster(models.Participant{ID: userA, Name: nameA}, models.Participant{ID: userB, Name: nameB}),
		createdAt: now,
		createdBy: userA,
		active:    true,
	}
	r.name = r.roster.NameOf(userA) + ", " + r.roster.NameOf(userB)
	d.rooms[id] = r
	return d.snapshotLocked(r), true, nil
}

// CreateGroupRoom creates a group room with a fresh unique id. The creator is
// always part of the roster even when omitted from the participant list.
func (d *InMemoryDirectory) CreateGroupRoom(ctx context.Context, creatorID, creatorName string, participants []models.Participant, name string) (models.Room, error) {
	return d.create(models.RoomGroup, creatorID, creatorName, participants, name)
}

// CreateBroadcastRoom creates a room only its creator may author into.
func (d *InMemoryDirectory) CreateBroadcastRoom(ctx context.Context, creatorID, creatorName, name string, participants []models.Participant) (models.Room, error) {
	return d.create(models.RoomBroadcast, creatorID, creatorName, participants, name)
}

// EnsureGroupRoom resolves a client-generated room id, creating a group room
// under that id on first use so repeated sends converge on a single room. An
// empty id gets a fresh one.
func (d *InMemoryDirectory) EnsureGroupRoom(ctx context.Context, roomID, creatorID, creatorName string, participants []models.Participant) (models.Room, bool, error) {
	if creatorID == "" {
		return models.Room{}, false, errors.New("creator id is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if roomID != "" {
		if existing, ok := d.rooms[roomID]; ok {
			return d.snapshotLocked(existing), false, nil
		}
	}
	return d.createLocked(models.RoomGroup, roomID, creatorID, creatorName, participants, ""), true, nil
}

func (d *InMemoryDirectory) create(typ models.RoomType, creatorID, creatorName string, participants []models.Participant, name string) (models.Room, error) {
	if creatorID == "" {
		return models.Room{}, errors.New("creator id is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createLocked(typ, "", creatorID, creatorName, participants, name), nil
}

func (d *InMemoryDirectory) createLocked(typ models.RoomType, id, creatorID, creatorName string, participants []models.Participant, name string) models.Room {
	roster := models.NewRoster(models.Participant{ID: creatorID, Name: creatorName})
	for _, p := range participants {
		roster.Add(p.ID, p.Name)
	}

	if id == "" {
		id = uuid.NewString()
	}
	now := d.now().UTC()
	r := &record{
		id:        id,
		name:      name,
		typ:       typ,
		roster:    roster,
		createdAt: now,
		createdBy: creatorID,
		active:    true,
	}
	if r.name == "" {
		r.name = generatedGroupName(roster.Len())
	}
	d.rooms[r.id] = r
	return d.snapshotLocked(r)
}

// Invite appends participants, deduplicating by id. Growing an individual
// room past two participants promotes it to a group; promotion is
// one-directional and the room never reverts.
func (d *InMemoryDirectory) Invite(ctx context.Context, roomID string, newParticipants []models.Participant) (models.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}

	hadExplicitName := r.typ != models.RoomIndividual && r.name != ""
	for _, p := range newParticipants {
		r.roster.Add(p.ID, p.Name)
	}

	if r.typ == models.RoomIndividual && r.roster.Len() > 2 {
		r.typ = models.RoomGroup
		if !hadExplicitName {
			r.name = generatedGroupName(r.roster.Len())
		}
	}
	return d.snapshotLocked(r), nil
}

// Remove drops a participant and its display name together. A room emptied of
// participants becomes inactive rather than deleted.
func (d *InMemoryDirectory) Remove(ctx context.Context, roomID, userID string) (models.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}

	r.roster.Remove(userID)
	if r.roster.Len() == 0 {
		r.active = false
	}
	return d.snapshotLocked(r), nil
}

// GetByID fetches a room snapshot.
func (d *InMemoryDirectory) GetByID(ctx context.Context, roomID string) (models.Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	return d.snapshotLocked(r), nil
}

// GetByParticipantPair resolves the individual room for a user pair via the
// derived id; no separate pair index is needed.
func (d *InMemoryDirectory) GetByParticipantPair(ctx context.Context, userA, userB string) (models.Room, error) {
	return d.GetByID(ctx, DeriveIndividualRoomID(userA, userB))
}

// RoomsFor lists active rooms containing the user, most recent activity first.
func (d *InMemoryDirectory) RoomsFor(ctx context.Context, userID string) ([]models.Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []models.Room
	for _, r := range d.rooms {
		if r.active && r.roster.Has(userID) {
			out = append(out, d.snapshotLocked(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// AppendMessage stores the message in the room's history and bumps
// lastMessageAt. The archive write, when configured, is fire-and-forget.
func (d *InMemoryDirectory) AppendMessage(ctx context.Context, roomID string, msg models.Message) error {
	d.mu.Lock()
	r, ok := d.rooms[roomID]
	if !ok {
		d.mu.Unlock()
		return ErrRoomNotFound
	}
	r.messages = append(r.messages, msg)
	r.lastMessageAt = msg.Timestamp
	d.mu.Unlock()

	if d.archive != nil {
		go func() {
			if err := d.archive.Append(context.Background(), msg); err != nil {
				log.Printf("message archive append failed: %v", err)
			}
		}()
	}
	return nil
}

// Messages returns a copy of the room's in-memory history.
func (d *InMemoryDirectory) Messages(ctx context.Context, roomID string) ([]models.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := make([]models.Message, len(r.messages))
	copy(out, r.messages)
	return out, nil
}

func generatedGroupName(count int) string {
	return fmt.Sprintf("Group chat, %d people", count)
}
