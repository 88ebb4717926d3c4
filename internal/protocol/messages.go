// Package protocol defines the network message types for client-server communication.
package protocol

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the type of message.
type MessageType string

// Server-to-client message types
const (
	TypeInitialState    MessageType = "initial_state"
	TypeTerritoryUpdate MessageType = "territory_update"
)

// Territorial event broadcast types, one per event type in the store's
// event log. The poller and the hub's direct path both emit these.
const (
	TypeTerritorialCapture         MessageType = "territorial_capture"
	TypeTerritorialAbandon         MessageType = "territorial_abandon"
	TypeTerritorialContest         MessageType = "territorial_contest"
	TypeTerritorialInfluenceChange MessageType = "territorial_influence_change"
)

// Client-to-server message types
const (
	TypeRequestUpdate   MessageType = "request_update"
	TypeInfluenceAction MessageType = "influence_action"
)

// Convoy bridge message types
const (
	TypeConvoyRouteUpdate      MessageType = "convoy_route_update"
	TypeConvoyRouteBatchUpdate MessageType = "convoy_route_batch_update"
)

// System message types
const (
	TypeError MessageType = "error"
	TypePing  MessageType = "ping"
	TypePong  MessageType = "pong"
)

// territorialPrefix is the common prefix of all territorial event broadcasts.
const territorialPrefix = "territorial_"

// IsTerritorial reports whether t is a territorial event broadcast type.
func IsTerritorial(t MessageType) bool {
	return strings.HasPrefix(string(t), territorialPrefix)
}

// TerritorialType builds the broadcast message type for a stored event type.
func TerritorialType(eventType string) MessageType {
	return MessageType(territorialPrefix + eventType)
}

// Message is the envelope for all messages.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewMessage creates a new message with the given type and payload.
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		ID:        uuid.New().String(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   data,
	}, nil
}

// ParsePayload unmarshals the payload into the given type.
func (m *Message) ParsePayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// ErrorCode represents an error type.
type ErrorCode string

const (
	ErrCodeInvalidPayload    ErrorCode = "invalid_payload"
	ErrCodeUnknownType       ErrorCode = "unknown_type"
	ErrCodeTerritoryNotFound ErrorCode = "territory_not_found"
	ErrCodeFactionNotFound   ErrorCode = "faction_not_found"
	ErrCodeStoreUnavailable  ErrorCode = "store_unavailable"
	ErrCodeInternalError     ErrorCode = "internal_error"
)

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
