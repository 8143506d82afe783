package relay

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/library-min/TF-Planner-sub000/internal/models"
	"github.com/library-min/TF-Planner-sub000/internal/observability"
	"github.com/library-min/TF-Planner-sub000/internal/rooms"
)

var (
	ErrMissingSender  = errors.New("sender id is required")
	ErrMissingContent = errors.New("message content is required")
	ErrNotBroadcaster = errors.New("only the broadcaster may post to this room")
)

// Sender delivers one event to one transport connection. Implemented by the
// websocket hub; delivery failures are isolated per connection.
type Sender interface {
	Deliver(connID string, event models.ServerEvent) error
}

// ConnectionSource resolves a user's live connections.
type ConnectionSource interface {
	ConnectionsFor(userID string) []string
}

// RoomSubscribers lists connections subscribed to a raw room id. Used only on
// the legacy fallback path when no participant set can be resolved.
type RoomSubscribers interface {
	Subscribers(roomID string) []string
}

// NameResolver looks up display names for users the request did not name.
type NameResolver interface {
	DisplayName(userID string) (string, bool)
}

// Request is an outbound message to be relayed.
type Request struct {
	RoomID     string
	SenderID   string
	SenderName string
	Content    string
	Type       models.MessageType
	FileURL    string
	FileName   string
	// Participants is the client's fallback hint for rooms the server has
	// never materialized.
	Participants []models.Participant
}

// Result reports what the relay did with a request.
type Result struct {
	Message     models.Message
	Room        models.Room
	RoomCreated bool
	Delivered   int
	LegacyPath  bool
}

// Relay resolves recipients for outbound messages and fans them out to every
// live connection of every participant.
type Relay struct {
	directory   rooms.Directory
	connections ConnectionSource
	sender      Sender
	subscribers RoomSubscribers
	names       NameResolver

	// mu serializes message processing so per-room delivery order matches
	// relay processing order. The working set is small enough that a coarse
	// lock beats per-room bookkeeping.
	mu sync.Mutex

	// rosterSeen tracks the last-published participant signature per room so
	// fan-out only attaches a full snapshot when recipients may be stale.
	rosterSeen map[string]string

	now func() time.Time
}

// New builds a relay. subscribers and names may be nil; the corresponding
// fallbacks are then skipped.
func New(directory rooms.Directory, connections ConnectionSource, sender Sender, subscribers RoomSubscribers, names NameResolver) *Relay {
	return &Relay{
		directory:   directory,
		connections: connections,
		sender:      sender,
		subscribers: subscribers,
		names:       names,
		rosterSeen:  make(map[string]string),
		now:         time.Now,
	}
}

// Relay processes one outbound message: resolve the room (creating it lazily
// when needed), stamp the message, append it, and fan out. Malformed requests
// are the only synchronous failures; everything downstream is best-effort.
func (r *Relay) Relay(ctx context.Context, req Request) (Result, error) {
	if req.SenderID == "" {
		return Result{}, ErrMissingSender
	}
	if req.Content == "" && req.FileURL == "" {
		return Result{}, ErrMissingContent
	}
	if req.Type == "" {
		req.Type = models.MessageText
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, created, err := r.resolveRoom(ctx, req)
	if err != nil {
		if !errors.Is(err, rooms.ErrRoomNotFound) {
			return Result{}, err
		}
		// No participant set at all: best-effort broadcast to whatever is
		// subscribed to the raw room id.
		msg := r.stamp(req.RoomID, req)
		delivered := r.legacyBroadcast(req.RoomID, msg)
		observability.IncRelayMessage("legacy")
		return Result{Message: msg, Delivered: delivered, LegacyPath: true}, nil
	}

	if room.Type == models.RoomBroadcast && room.CreatedBy != req.SenderID {
		return Result{}, ErrNotBroadcaster
	}

	// stamp with the resolved room id: lazily-created rooms and unsorted dm
	// ids may differ from what the client addressed
	msg := r.stamp(room.ID, req)
	if err := r.directory.AppendMessage(ctx, room.ID, msg); err != nil {
		return Result{}, err
	}
	room.LastMessageAt = msg.Timestamp

	snapshot := r.snapshotNeeded(room, created)
	delivered := 0
	for _, participantID := range room.ParticipantIDs {
		for _, connID := range r.connections.ConnectionsFor(participantID) {
			payload := models.MessageReceivedPayload{RoomID: room.ID, Message: msg}
			if snapshot {
				roomCopy := room
				payload.Room = &roomCopy
			}
			if r.deliver(connID, models.ServerEvent{Type: models.EventMessageReceived, Payload: payload}) {
				delivered++
			}
		}
		if participantID == req.SenderID {
			continue
		}
		notice := models.MessageNoticePayload{RoomID: room.ID, SenderName: msg.SenderName, Message: msg}
		for _, connID := range r.connections.ConnectionsFor(participantID) {
			r.deliver(connID, models.ServerEvent{Type: models.EventNewMessageNotice, Payload: notice})
		}
	}

	observability.IncRelayMessage(string(room.Type))
	observability.AddRelayDeliveries(delivered)
	return Result{Message: msg, Room: room, RoomCreated: created, Delivered: delivered}, nil
}

// resolveRoom looks the room up and falls back to lazy creation from the
// request's participant hint or, for dm-convention ids, from the id itself.
func (r *Relay) resolveRoom(ctx context.Context, req Request) (models.Room, bool, error) {
	room, err := r.directory.GetByID(ctx, req.RoomID)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, rooms.ErrRoomNotFound) {
		return models.Room{}, false, err
	}

	if len(req.Participants) > 0 {
		if a, b, ok := rooms.ParseIndividualRoomID(req.RoomID); ok && len(req.Participants) == 2 {
			room, created, err := r.directory.GetOrCreateIndividualRoom(ctx, a, r.nameFor(a, req), b, r.nameFor(b, req))
			return room, created, err
		}
		// the group is keyed under the client-supplied id so repeated sends
		// to it converge on one room
		return r.directory.EnsureGroupRoom(ctx, req.RoomID, req.SenderID, req.SenderName, req.Participants)
	}

	if a, b, ok := rooms.ParseIndividualRoomID(req.RoomID); ok {
		room, created, err := r.directory.GetOrCreateIndividualRoom(ctx, a, r.nameFor(a, req), b, r.nameFor(b, req))
		return room, created, err
	}

	return models.Room{}, false, rooms.ErrRoomNotFound
}

func (r *Relay) nameFor(userID string, req Request) string {
	if userID == req.SenderID && req.SenderName != "" {
		return req.SenderName
	}
	for _, p := range req.Participants {
		if p.ID == userID && p.Name != "" {
			return p.Name
		}
	}
	if r.names != nil {
		if name, ok := r.names.DisplayName(userID); ok {
			return name
		}
	}
	return userID
}

// stamp assigns the server-side message id and timestamp. The server is the
// single source of truth for ordering.
func (r *Relay) stamp(roomID string, req Request) models.Message {
	return models.Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		Content:    req.Content,
		Type:       req.Type,
		Timestamp:  r.now().UTC(),
		FileURL:    req.FileURL,
		FileName:   req.FileName,
	}
}

func (r *Relay) snapshotNeeded(room models.Room, created bool) bool {
	signature := strings.Join(room.ParticipantIDs, "\x1f")
	seen, ok := r.rosterSeen[room.ID]
	r.rosterSeen[room.ID] = signature
	return created || !ok || seen != signature
}

func (r *Relay) legacyBroadcast(roomID string, msg models.Message) int {
	if r.subscribers == nil {
		return 0
	}
	delivered := 0
	payload := models.MessageReceivedPayload{RoomID: roomID, Message: msg}
	for _, connID := range r.subscribers.Subscribers(roomID) {
		if r.deliver(connID, models.ServerEvent{Type: models.EventMessageReceived, Payload: payload}) {
			delivered++
		}
	}
	observability.AddRelayDeliveries(delivered)
	return delivered
}

// deliver isolates a single connection's delivery attempt; one failing
// connection never aborts the rest of the fan-out.
func (r *Relay) deliver(connID string, event models.ServerEvent) bool {
	if err := r.sender.Deliver(connID, event); err != nil {
		log.Printf("relay delivery to %s failed: %v", connID, err)
		observability.IncRelayDeliveryError()
		return false
	}
	return true
}
