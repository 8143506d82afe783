package models

import "time"

// RoomType classifies a chat room.
type RoomType string

const (
	RoomIndividual RoomType = "individual"
	RoomGroup      RoomType = "group"
	RoomBroadcast  RoomType = "broadcast"
)

// Participant pairs a user id with its display name.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"displayName"`
}

// Room is the wire snapshot of a chat room. ParticipantNames is index-aligned
// with ParticipantIDs; both are produced from the directory's ordered roster.
type Room struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             RoomType  `json:"type"`
	ParticipantIDs   []string  `json:"participantIds"`
	ParticipantNames []string  `json:"participantNames"`
	CreatedAt        time.Time `json:"createdAt"`
	LastMessageAt    time.Time `json:"lastMessageAt"`
	CreatedBy        string    `json:"createdBy"`
	IsActive         bool      `json:"isActive"`
}

// HasParticipant reports whether the snapshot lists the user.
func (r Room) HasParticipant(userID string) bool {
	for _, id := range r.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Participants returns the roster as id/name pairs. A missing name falls back
// to the id so callers always get something displayable.
func (r Room) Participants() []Participant {
	out := make([]Participant, 0, len(r.ParticipantIDs))
	for i, id := range r.ParticipantIDs {
		name := id
		if i < len(r.ParticipantNames) && r.ParticipantNames[i] != "" {
			name = r.ParticipantNames[i]
		}
		out = append(out, Participant{ID: id, Name: name})
	}
	return out
}
