package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/library-min/TF-Planner-sub000/internal/directory"
	"github.com/library-min/TF-Planner-sub000/internal/models"
	"github.com/library-min/TF-Planner-sub000/internal/observability"
	"github.com/library-min/TF-Planner-sub000/internal/registry"
	"github.com/library-min/TF-Planner-sub000/internal/relay"
	"github.com/library-min/TF-Planner-sub000/internal/rooms"
	"github.com/library-min/TF-Planner-sub000/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SocketHandler terminates websocket connections and routes client frames to
// the relay and the room directory.
type SocketHandler struct {
	hub      *Hub
	tokens   *session.TokenManager
	registry *registry.Registry
	rooms    rooms.Directory
	relay    *relay.Relay
	users    *directory.UserDirectory
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, tokens *session.TokenManager, reg *registry.Registry, dir rooms.Directory, rel *relay.Relay, users *directory.UserDirectory) *SocketHandler {
	return &SocketHandler{hub: hub, tokens: tokens, registry: reg, rooms: dir, relay: rel, users: users}
}

// Handle upgrades the connection and runs its read loop.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("tf-planner/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	conn := newConn(info.ConnID, sock, info)
	h.hub.Add(conn)

	// a token at handshake time pre-binds the identity; register-identity
	// frames may still (re)bind it later
	if id, ok := session.FromRequestToken(h.tokens, c.GetHeader("Authorization"), c.Query("token")); ok {
		h.bindIdentity(conn, id)
	}

	observability.IncWSActive()
	observability.PublishWSEvent(ctx, observability.WSEvent{Event: "ws_connect", ConnID: info.ConnID},
		h.wsIdentity(conn), time.Time{}, info.RequestID, info.TraceID)

	go h.readLoop(ctx, conn)
}

func (h *SocketHandler) readLoop(ctx context.Context, conn *Conn) {
	var closeReason string
	defer func() {
		h.registry.Unregister(conn.ID)
		h.hub.Remove(conn.ID)
		observability.DecWSActive()
		observability.PublishWSEvent(ctx, observability.WSEvent{Event: "ws_disconnect", ConnID: conn.ID, Reason: closeReason},
			h.wsIdentity(conn), conn.Info.ConnectedAt, conn.Info.RequestID, conn.Info.TraceID)
		conn.sock.Close()
	}()

	for {
		_, data, err := conn.sock.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.PublishWSEvent(ctx, observability.WSEvent{Event: "ws_error", ConnID: conn.ID, Reason: closeReason},
					h.wsIdentity(conn), conn.Info.ConnectedAt, conn.Info.RequestID, conn.Info.TraceID)
			}
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(conn, "malformed frame")
			continue
		}
		h.dispatch(ctx, conn, frame)
	}
}

func (h *SocketHandler) dispatch(ctx context.Context, conn *Conn, frame models.ClientFrame) {
	observability.IncWSEvent(frame.Type)

	if frame.Type == models.EventRegisterIdentity {
		var payload models.RegisterIdentityPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.UserID == "" {
			h.sendError(conn, "invalid identity")
			return
		}
		h.bindIdentity(conn, session.Identity{UserID: payload.UserID, DisplayName: payload.DisplayName})
		return
	}

	id, registered := conn.Identity()
	if !registered {
		h.sendError(conn, "identity not registered")
		return
	}

	switch frame.Type {
	case models.EventJoinRoom:
		if roomID, ok := roomRef(frame.Payload); ok {
			h.hub.Join(roomID, conn.ID)
		}
	case models.EventLeaveRoom:
		if roomID, ok := roomRef(frame.Payload); ok {
			h.hub.Leave(roomID, conn.ID)
		}
	case models.EventSendMessage:
		h.handleSendMessage(ctx, conn, id, frame.Payload)
	case models.EventCreateGroupRoom:
		h.handleCreateGroup(ctx, conn, id, frame.Payload)
	case models.EventInviteToRoom:
		h.handleInvite(ctx, conn, id, frame.Payload)
	case models.EventParticipantRefresh:
		h.handleParticipantRefresh(ctx, conn, frame.Payload)
	default:
		h.sendError(conn, "unknown event type")
	}
}

func (h *SocketHandler) handleSendMessage(ctx context.Context, conn *Conn, id session.Identity, raw json.RawMessage) {
	var payload models.SendMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, "invalid message payload")
		return
	}

	_, err := h.relay.Relay(ctx, relay.Request{
		RoomID:       payload.RoomID,
		SenderID:     id.UserID,
		SenderName:   id.DisplayName,
		Content:      payload.Content,
		Type:         payload.Type,
		FileURL:      payload.FileURL,
		FileName:     payload.FileName,
		Participants: payload.Participants,
	})
	if err != nil {
		// rejections go to the sender only; fan-out failures are silent
		h.sendError(conn, err.Error())
	}
}

func (h *SocketHandler) handleCreateGroup(ctx context.Context, conn *Conn, id session.Identity, raw json.RawMessage) {
	var payload models.CreateGroupRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, "invalid room payload")
		return
	}

	participants := payload.Participants
	if len(participants) == 0 {
		participants = payload.Room.Participants()
	}

	room, err := h.rooms.CreateGroupRoom(ctx, id.UserID, id.DisplayName, participants, payload.Room.Name)
	if err != nil {
		h.sendError(conn, "could not create room")
		return
	}

	h.broadcastToUsers(room.ParticipantIDs, models.ServerEvent{
		Type: models.EventRoomCreated,
		Payload: models.RoomCreatedPayload{
			Room:                 room,
			CreatorID:            id.UserID,
			FullParticipantList:  room.ParticipantIDs,
			FullParticipantNames: room.ParticipantNames,
		},
	})
}

func (h *SocketHandler) handleInvite(ctx context.Context, conn *Conn, id session.Identity, raw json.RawMessage) {
	var payload models.InviteToRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, "invalid invite payload")
		return
	}

	room, err := h.rooms.Invite(ctx, payload.RoomID, payload.NewParticipants)
	if err != nil {
		h.sendError(conn, "room not found")
		return
	}

	invitedBy := payload.InvitedBy
	if invitedBy == "" {
		invitedBy = id.UserID
	}

	updated := models.ServerEvent{
		Type: models.EventParticipantsUpdated,
		Payload: models.ParticipantsUpdatedPayload{
			RoomID:           room.ID,
			Room:             room,
			ParticipantIDs:   room.ParticipantIDs,
			ParticipantNames: room.ParticipantNames,
			ParticipantCount: len(room.ParticipantIDs),
			NewParticipant:   firstParticipant(payload.NewParticipants),
		},
	}
	h.broadcastToUsers(room.ParticipantIDs, updated)

	invited := models.ServerEvent{
		Type: models.EventRoomInvited,
		Payload: models.RoomCreatedPayload{
			Room:                 room,
			InvitedBy:            invitedBy,
			FullParticipantList:  room.ParticipantIDs,
			FullParticipantNames: room.ParticipantNames,
		},
	}
	for _, p := range payload.NewParticipants {
		h.broadcastToUsers([]string{p.ID}, invited)
	}
}

func (h *SocketHandler) handleParticipantRefresh(ctx context.Context, conn *Conn, raw json.RawMessage) {
	roomID, ok := roomRef(raw)
	if !ok {
		h.sendError(conn, "invalid refresh payload")
		return
	}

	room, err := h.rooms.GetByID(ctx, roomID)
	if err != nil {
		h.sendError(conn, "room not found")
		return
	}

	h.deliver(conn.ID, models.ServerEvent{
		Type: models.EventParticipantsUpdated,
		Payload: models.ParticipantsUpdatedPayload{
			RoomID:           room.ID,
			Room:             room,
			ParticipantIDs:   room.ParticipantIDs,
			ParticipantNames: room.ParticipantNames,
			ParticipantCount: len(room.ParticipantIDs),
		},
	})
}

func (h *SocketHandler) bindIdentity(conn *Conn, id session.Identity) {
	conn.SetIdentity(id)
	h.registry.Register(id.UserID, conn.ID)
	h.users.Upsert(id.UserID, id.DisplayName)
}

func (h *SocketHandler) broadcastToUsers(userIDs []string, event models.ServerEvent) {
	for _, userID := range userIDs {
		for _, connID := range h.registry.ConnectionsFor(userID) {
			h.deliver(connID, event)
		}
	}
}

func (h *SocketHandler) deliver(connID string, event models.ServerEvent) {
	if err := h.hub.Deliver(connID, event); err != nil {
		log.Printf("websocket write to %s failed: %v", connID, err)
	}
}

func (h *SocketHandler) sendError(conn *Conn, message string) {
	h.deliver(conn.ID, models.ServerEvent{Type: models.EventError, Payload: models.ErrorPayload{Message: message}})
}

func (h *SocketHandler) wsIdentity(conn *Conn) observability.WSIdentity {
	id, _ := conn.Identity()
	return observability.WSIdentity{
		UserID:   id.UserID,
		DeviceID: conn.Info.DeviceID,
		IP:       conn.Info.IP,
	}
}

func roomRef(raw json.RawMessage) (string, bool) {
	var payload models.RoomRefPayload
	if err := json.Unmarshal(raw, &payload); err == nil && payload.RoomID != "" {
		return payload.RoomID, true
	}
	// some clients send the bare room id instead of an object
	var roomID string
	if err := json.Unmarshal(raw, &roomID); err == nil && roomID != "" {
		return roomID, true
	}
	return "", false
}

func firstParticipant(list []models.Participant) *models.Participant {
	if len(list) == 0 {
		return nil
	}
	p := list[0]
	return &p
}
