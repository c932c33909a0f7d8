package model

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	EventTypeError   EventType = "error"
	EventTypeBusy    EventType = "busy"
	EventTypeLogout  EventType = "logout"
	EventTypeExpired EventType = "expired"
)

// SessionEvent is a non-turn occurrence recorded in the durable log.
type SessionEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	TenantID  string         `json:"tenant_id"`
	Type      EventType      `json:"type"`
	Reason    string         `json:"reason"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Sequence  uint64         `json:"sequence,omitempty"`
}

// TurnRecord is a turn as written to the durable log.
type TurnRecord struct {
	SessionID string    `json:"session_id"`
	TenantID  string    `json:"tenant_id"`
	Actor     ActorKind `json:"actor"`
	UserID    string    `json:"user_id,omitempty"`
	Turn      Turn      `json:"turn"`

	// Sequence is the log sequence, populated on read.
	Sequence uint64 `json:"log_sequence,omitempty"`
}
