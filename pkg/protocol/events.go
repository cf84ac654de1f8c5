// Package protocol defines the JSON event envelope spoken over the
// chat WebSocket, along with the payload types and rejection reason
// codes shared by server and clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client → server events
const (
	EventGetHistory  = "get-history"
	EventSendMessage = "send-message"
)

// Server → client events
const (
	EventHistory    = "history"
	EventNewMessage = "new-message"
	EventError      = "error"
)

// Rejection reasons carried in an "error" event. Every reason applies
// to a single send and is delivered to the sender only.
const (
	ReasonRateLimited   = "RATE_LIMITED"
	ReasonInvalidFormat = "INVALID_FORMAT"
	ReasonEmptyMessage  = "EMPTY_MESSAGE"
	ReasonTooLong       = "TOO_LONG"
	ReasonStoreError    = "STORE_ERROR"
)

// Role labels attached to broadcast messages. Clients use them purely
// for display (crown/shield/person icons).
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ErrMissingEvent indicates an envelope without an event name.
var ErrMissingEvent = errors.New("envelope has no event name")

// Envelope is the outer frame of every message on the wire.
// Data is left raw so each handler decodes its own payload shape.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is the wire form of a persisted chat entry. Field names
// match the chat_messages columns the web client already consumes.
type ChatMessage struct {
	ID          int64  `json:"id"`
	UserID      *int64 `json:"userId,omitempty"`
	Username    string `json:"username"`
	Message     string `json:"message"`
	IsAnonymous bool   `json:"isAnonymous"`
	UserRole    string `json:"userRole"`
	CreatedAt   int64  `json:"createdAt"` // unix milliseconds
}

// SendMessagePayload is the client payload of a send-message event.
// Message stays raw: a non-string value is a caller mistake the relay
// reports as INVALID_FORMAT, not a decode failure.
type SendMessagePayload struct {
	Message json.RawMessage `json:"message"`
	Token   string          `json:"token,omitempty"`
}

// ErrorPayload is the unicast payload of an error event.
type ErrorPayload struct {
	Reason string `json:"reason"`
}

// EncodeEvent marshals an event with its payload into a wire frame.
func EncodeEvent(event string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
		}
		raw = encoded
	}

	return json.Marshal(Envelope{Event: event, Data: raw})
}

// DecodeEnvelope parses a wire frame into an envelope. The payload is
// not decoded; use the payload-specific helpers for that.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Event == "" {
		return nil, ErrMissingEvent
	}
	return &env, nil
}

// DecodeSendMessage decodes the payload of a send-message envelope.
func (e *Envelope) DecodeSendMessage() (*SendMessagePayload, error) {
	var payload SendMessagePayload
	if len(e.Data) == 0 {
		return &payload, nil
	}
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		return nil, fmt.Errorf("malformed send-message payload: %w", err)
	}
	return &payload, nil
}

// Text returns the message body if the client sent it as a JSON
// string. ok is false for absent or non-string values.
func (p *SendMessagePayload) Text() (string, bool) {
	if len(p.Message) == 0 || string(p.Message) == "null" {
		return "", false
	}
	var text string
	if err := json.Unmarshal(p.Message, &text); err != nil {
		return "", false
	}
	return text, true
}

// ValidRole reports whether role is one of the known role labels.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleUser:
		return true
	}
	return false
}
