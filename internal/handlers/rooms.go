package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/library-min/TF-Planner-sub000/internal/models"
	"github.com/library-min/TF-Planner-sub000/internal/registry"
	"github.com/library-min/TF-Planner-sub000/internal/relay"
	"github.com/library-min/TF-Planner-sub000/internal/rooms"
	"github.com/library-min/TF-Planner-sub000/internal/session"
)

// HistorySource serves archived message history for rooms whose in-memory
// window has been lost, typically after a restart.
type HistorySource interface {
	History(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}

// RoomHandler manages the room endpoints.
type RoomHandler struct {
	rooms    rooms.Directory
	registry *registry.Registry
	sender   relay.Sender
	archive  HistorySource
}

// NewRoomHandler builds a RoomHandler. archive may be nil.
func NewRoomHandler(dir rooms.Directory, reg *registry.Registry, sender relay.Sender, archive HistorySource) *RoomHandler {
	return &RoomHandler{
		rooms:    dir,
		registry: reg,
		sender:   sender,
		archive:  archive,
	}
}

// ListRooms returns the active rooms visible to the authenticated user, most
// recent activity first.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	id := session.FromContext(c)

	list, err := h.rooms.RoomsFor(c.Request.Context(), id.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	if list == nil {
		list = []models.Room{}
	}

	c.JSON(http.StatusOK, gin.H{"rooms": list})
}

// CreateGroupRoom creates a group or broadcast room and notifies every
// participant's live connections.
func (h *RoomHandler) CreateGroupRoom(c *gin.Context) {
	var req struct {
		Name         string               `json:"name"`
		Type         string               `json:"type"`
		Participants []models.Participant `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := session.FromContext(c)

	var room models.Room
	var err error
	switch req.Type {
	case "", string(models.RoomGroup):
		room, err = h.rooms.CreateGroupRoom(c.Request.Context(), id.UserID, id.DisplayName, req.Participants, req.Name)
	case string(models.RoomBroadcast):
		room, err = h.rooms.CreateBroadcastRoom(c.Request.Context(), id.UserID, id.DisplayName, req.Name, req.Participants)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported room type"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	h.notifyUsers(room.ParticipantIDs, models.ServerEvent{
		Type: models.EventRoomCreated,
		Payload: models.RoomCreatedPayload{
			Room:                 room,
			CreatorID:            id.UserID,
			FullParticipantList:  room.ParticipantIDs,
			FullParticipantNames: room.ParticipantNames,
		},
	})

	c.JSON(http.StatusCreated, room)
}

// InviteToRoom adds participants to an existing room.
func (h *RoomHandler) InviteToRoom(c *gin.Context) {
	roomID := c.Param("room_id")

	var req struct {
		Participants []models.Participant `json:"participants" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := session.FromContext(c)

	current, err := h.rooms.GetByID(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(roomErrStatus(err), gin.H{"error": "room not found"})
		return
	}
	if !current.HasParticipant(id.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	room, err := h.rooms.Invite(c.Request.Context(), roomID, req.Participants)
	if err != nil {
		c.JSON(roomErrStatus(err), gin.H{"error": "could not invite"})
		return
	}

	h.notifyUsers(room.ParticipantIDs, models.ServerEvent{
		Type: models.EventParticipantsUpdated,
		Payload: models.ParticipantsUpdatedPayload{
			RoomID:           room.ID,
			Room:             room,
			ParticipantIDs:   room.ParticipantIDs,
			ParticipantNames: room.ParticipantNames,
			ParticipantCount: len(room.ParticipantIDs),
		},
	})
	for _, p := range req.Participants {
		h.notifyUsers([]string{p.ID}, models.ServerEvent{
			Type: models.EventRoomInvited,
			Payload: models.RoomCreatedPayload{
				Room:                 room,
				InvitedBy:            id.UserID,
				FullParticipantList:  room.ParticipantIDs,
				FullParticipantNames: room.ParticipantNames,
			},
		})
	}

	c.JSON(http.StatusOK, room)
}

// LeaveRoom removes the caller from a room.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	roomID := c.Param("room_id")
	id := session.FromContext(c)

	room, err := h.rooms.Remove(c.Request.Context(), roomID, id.UserID)
	if err != nil {
		c.JSON(roomErrStatus(err), gin.H{"error": "could not leave room"})
		return
	}

	h.notifyUsers(room.ParticipantIDs, models.ServerEvent{
		Type: models.EventParticipantsUpdated,
		Payload: models.ParticipantsUpdatedPayload{
			RoomID:           room.ID,
			Room:             room,
			ParticipantIDs:   room.ParticipantIDs,
			ParticipantNames: room.ParticipantNames,
			ParticipantCount: len(room.ParticipantIDs),
		},
	})

	c.Status(http.StatusNoContent)
}

// GetRoomMessages returns message history for a room the caller belongs to.
// source=archive reads the append-only log instead of the in-memory window.
func (h *RoomHandler) GetRoomMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	id := session.FromContext(c)

	room, err := h.rooms.GetByID(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(roomErrStatus(err), gin.H{"error": "room not found"})
		return
	}
	if !room.HasParticipant(id.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	var msgs []models.Message
	if c.Query("source") == "archive" && h.archive != nil {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
		msgs, err = h.archive.History(c.Request.Context(), roomID, limit)
	} else {
		msgs, err = h.rooms.Messages(c.Request.Context(), roomID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *RoomHandler) notifyUsers(userIDs []string, event models.ServerEvent) {
	if h.registry == nil || h.sender == nil {
		return
	}
	for _, userID := range userIDs {
		for _, connID := range h.registry.ConnectionsFor(userID) {
			_ = h.sender.Deliver(connID, event)
		}
	}
}

func roomErrStatus(err error) int {
	if errors.Is(err, rooms.ErrRoomNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
