package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// MessageTypeRefreshRequested is sent by a producer view after it
	// saved a record, asking the hub to fan out a refresh.
	MessageTypeRefreshRequested MessageType = "refresh_requested"
	// MessageTypeRefreshAccepted acknowledges a refresh request before
	// any fan-out work happens.
	MessageTypeRefreshAccepted MessageType = "refresh_accepted"
	// MessageTypeRefresh tells a consumer view to re-query the store.
	MessageTypeRefresh MessageType = "refresh"
	// MessageTypeRefreshAck is the consumer's reply to a refresh.
	MessageTypeRefreshAck MessageType = "refresh_ack"
	MessageTypePing      MessageType = "ping"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	MessageID string      `json:"message_id,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"` // unix milliseconds
}

// RefreshRequest asks the hub to notify every other open view that the
// stored data changed.
type RefreshRequest struct {
	BaseMessage
	Force bool `json:"force,omitempty"`
}

// RefreshAccepted is returned to the requester immediately; the sender
// must not block on the outcome of the fan-out.
type RefreshAccepted struct {
	BaseMessage
	Accepted bool `json:"accepted"`
}

// RefreshMessage is fanned out to each reachable consumer view.
type RefreshMessage struct {
	BaseMessage
	Force bool `json:"force,omitempty"`
}

// RefreshAck reports one consumer's refresh outcome back to the hub.
type RefreshAck struct {
	BaseMessage
	Refreshed bool   `json:"refreshed"`
	Error     string `json:"error,omitempty"`
}

// ErrorMessage reports a protocol-level failure to a peer.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// NewRefreshRequest builds a refresh request stamped with now.
func NewRefreshRequest(force bool) RefreshRequest {
	return RefreshRequest{
		BaseMessage: BaseMessage{
			Type:      MessageTypeRefreshRequested,
			Timestamp: time.Now().UnixMilli(),
		},
		Force: force,
	}
}

// ParseMessageType extracts the type field without decoding the full
// payload.
func ParseMessageType(data []byte) (MessageType, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}
	if base.Type == "" {
		return "", fmt.Errorf("message missing type field")
	}
	return base.Type, nil
}
