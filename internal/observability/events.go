package observability

import (
	"context"
	"time"
)

const wsRoutingKey = "ws_events.relay"

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEvent describes one websocket lifecycle event (connect, disconnect,
// error) for the event pipeline.
type WSEvent struct {
	RoomID     string `json:"room_id,omitempty"`
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// WSIdentity carries who was on the connection.
type WSIdentity struct {
	UserID   string `json:"user_id,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	IP       string `json:"ip,omitempty"`
}

type wsEventPayload struct {
	WS       WSEvent    `json:"ws"`
	Identity WSIdentity `json:"identity"`
}

// PublishWSEvent counts and publishes a websocket lifecycle event. Connection
// duration is derived from connectedAt; zero for connect events.
func PublishWSEvent(ctx context.Context, event WSEvent, identity WSIdentity, connectedAt time.Time, requestID, traceID string) {
	if !connectedAt.IsZero() && event.DurationMS == 0 {
		event.DurationMS = time.Since(connectedAt).Milliseconds()
	}
	IncWSEvent(event.Event)
	_ = PublishEvent(ctx, wsRoutingKey, EventEnvelope{
		EventType: "ws_events",
		EventName: event.Event,
		Payload:   wsEventPayload{WS: event, Identity: identity},
	}, BuildHeaders(requestID, traceID))
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
