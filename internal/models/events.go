package models

import "encoding/json"

// Client-to-server event types.
const (
	EventRegisterIdentity   = "register-identity"
	EventJoinRoom           = "join-room"
	EventLeaveRoom          = "leave-room"
	EventSendMessage        = "send-message"
	EventCreateGroupRoom    = "create-group-room"
	EventInviteToRoom       = "invite-to-room"
	EventParticipantRefresh = "request-participant-refresh"
)

// Server-to-client event types.
const (
	EventMessageReceived     = "message-received"
	EventNewMessageNotice    = "new-message-notification"
	EventParticipantsUpdated = "participants-updated"
	EventRoomCreated         = "room-created"
	EventRoomInvited         = "room-invited"
	EventError               = "error"
)

// ClientFrame is the envelope for inbound websocket frames.
type ClientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerEvent is the envelope for outbound websocket frames.
type ServerEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// RegisterIdentityPayload binds a user identity to the connection.
type RegisterIdentityPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// RoomRefPayload names a room for join/leave/refresh events.
type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

// SendMessagePayload is an outbound chat message request. Participants is an
// optional hint used to lazily create the room when the server never saw it.
type SendMessagePayload struct {
	RoomID       string        `json:"roomId"`
	Content      string        `json:"content"`
	Type         MessageType   `json:"type"`
	FileURL      string        `json:"fileUrl,omitempty"`
	FileName     string        `json:"fileName,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
}

// CreateGroupRoomPayload asks the server to create a group room.
type CreateGroupRoomPayload struct {
	Room         Room          `json:"room"`
	Participants []Participant `json:"participants"`
}

// InviteToRoomPayload adds participants to an existing room.
type InviteToRoomPayload struct {
	RoomID          string        `json:"roomId"`
	NewParticipants []Participant `json:"newParticipants"`
	InvitedBy       string        `json:"invitedBy"`
}

// MessageReceivedPayload delivers a message, optionally with a room snapshot
// so recipients can self-heal their local mirror without a separate fetch.
type MessageReceivedPayload struct {
	RoomID  string  `json:"roomId"`
	Message Message `json:"message"`
	Room    *Room   `json:"roomSnapshot,omitempty"`
}

// MessageNoticePayload drives unread counters and desktop notifications. It
// is a distinct event from message-received because UI layers subscribe to
// the two independently.
type MessageNoticePayload struct {
	RoomID     string  `json:"roomId"`
	SenderName string  `json:"senderName"`
	Message    Message `json:"message"`
}

// ParticipantsUpdatedPayload carries the authoritative participant state.
type ParticipantsUpdatedPayload struct {
	RoomID           string       `json:"roomId"`
	Room             Room         `json:"roomSnapshot"`
	ParticipantIDs   []string     `json:"participantIds"`
	ParticipantNames []string     `json:"participantNames"`
	ParticipantCount int          `json:"participantCount"`
	NewParticipant   *Participant `json:"newParticipant,omitempty"`
}

// RoomCreatedPayload announces a new or newly-joined room. The full
// participant fields, when present, take precedence over the room object's
// own (possibly abbreviated) lists.
type RoomCreatedPayload struct {
	Room                 Room     `json:"room"`
	CreatorID            string   `json:"creatorId,omitempty"`
	InvitedBy            string   `json:"invitedBy,omitempty"`
	FullParticipantList  []string `json:"fullParticipantList,omitempty"`
	FullParticipantNames []string `json:"fullParticipantNames,omitempty"`
}

// ErrorPayload reports a request failure to the sender only.
type ErrorPayload struct {
	Message string `json:"message"`
}
