// Package model defines data structures for the chat engine.
package model

import (
	"slices"
	"time"
)

// ActorKind is the class of caller driving a conversation.
type ActorKind string

const (
	ActorGuest     ActorKind = "guest"
	ActorStaff     ActorKind = "staff"
	ActorAnonymous ActorKind = "anonymous"
)

// Valid reports whether k is a known actor kind.
func (k ActorKind) Valid() bool {
	switch k {
	case ActorGuest, ActorStaff, ActorAnonymous:
		return true
	}
	return false
}

// PermissionAdminKnowledge lets a staff actor read admin-only documents.
const PermissionAdminKnowledge = "knowledge:admin"

// Actor is the identity resolved by the authentication collaborator.
// It is read-only to the engine.
type Actor struct {
	Kind        ActorKind `json:"kind"`
	UserID      string    `json:"user_id,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
}

// Has reports whether the actor carries the given permission.
func (a Actor) Has(permission string) bool {
	return slices.Contains(a.Permissions, permission)
}

// Clearance returns the highest visibility level the actor may read.
func (a Actor) Clearance() Visibility {
	switch a.Kind {
	case ActorStaff:
		if a.Has(PermissionAdminKnowledge) {
			return VisibilityAdmin
		}
		return VisibilityStaff
	case ActorGuest:
		return VisibilityGuest
	default:
		return VisibilityPublic
	}
}

// Role represents the role of a turn author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// SourceRef points at a document that grounded an assistant turn.
type SourceRef struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
}

// Turn is one side of a request/response exchange. Turns are append-only and
// ordered by Sequence within a session.
type Turn struct {
	Sequence  uint64      `json:"sequence"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Sources   []SourceRef `json:"sources,omitempty"`
	TokensIn  int         `json:"tokens_in,omitempty"`
	TokensOut int         `json:"tokens_out,omitempty"`
}

// Session is the durable state of one conversation.
type Session struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Actor        ActorKind `json:"actor"`
	UserID       string    `json:"user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Intent       Intent    `json:"intent"`
	TurnCount    uint64    `json:"turn_count"`
	Turns        []Turn    `json:"turns"`
	Version      int64     `json:"version"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Intent = s.Intent.Clone()
	c.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		t.Sources = slices.Clone(t.Sources)
		c.Turns[i] = t
	}
	return &c
}

// IdleSince reports how long the session has been inactive at now.
func (s *Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}
