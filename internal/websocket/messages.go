package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeEventChanged           MessageType = "event.changed"
	TypeReleaseStatusChanged   MessageType = "release.status_changed"
	TypeReassignmentConfirmed  MessageType = "release.reassignment_confirmed"
	TypeCalendarImportFinished MessageType = "calendar.import_finished"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventChangedPayload is the payload for event.changed messages.
type EventChangedPayload struct {
	Action  string    `json:"action"` // created, updated, moved, deleted
	EventID string    `json:"eventId"`
	OwnerID string    `json:"ownerId"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// ReleaseStatusPayload is the payload for release.status_changed messages.
type ReleaseStatusPayload struct {
	ReleaseID        string   `json:"releaseId"`
	ExaminerID       string   `json:"examinerId"`
	PreviousStatus   string   `json:"previousStatus"`
	NewStatus        string   `json:"newStatus"`
	AffectedEventIDs []string `json:"affectedEventIds,omitempty"`
}

// ReassignmentPayload is the payload for release.reassignment_confirmed messages.
type ReassignmentPayload struct {
	ReleaseID string   `json:"releaseId"`
	Moved     []string `json:"moved"`
	Removed   []string `json:"removed"`
}

// ImportPayload is the payload for calendar.import_finished messages.
type ImportPayload struct {
	OwnerID  string `json:"ownerId"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"originalType,omitempty"`
}
