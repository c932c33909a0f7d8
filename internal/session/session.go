// Package session implements the conversation session store: per
// conversation turn history, accumulated intent and owner identity.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/toneill57/innpilot-sub001/internal/intent"
	"github.com/toneill57/innpilot-sub001/internal/model"
)

var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")

	// ErrOwnerMismatch is returned when a session id is presented by a
	// tenant, actor class or user other than the one that created it.
	ErrOwnerMismatch = errors.New("session belongs to another owner")

	// ErrConflict is returned when concurrent writers exhaust the retries
	// of an optimistic update.
	ErrConflict = errors.New("session update conflict")

	// ErrBusy is returned by a Guard when another turn holds the session.
	ErrBusy = errors.New("session busy")
)

// Store is the conversation session store. Mutations of one session are
// serialized; different sessions are independent.
type Store interface {
	// GetOrCreate returns the session, creating it when id is unknown or
	// expired. Creation is idempotent per id.
	GetOrCreate(ctx context.Context, id, tenantID string, actor model.Actor) (*model.Session, error)

	// Get returns a copy of the session or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Session, error)

	// Append adds turns in order, assigning sequence numbers, and returns
	// them as stored.
	Append(ctx context.Context, id string, turns ...model.Turn) ([]model.Turn, error)

	// MergeIntent folds partial into the accumulated intent and reports
	// whether any slot was captured.
	MergeIntent(ctx context.Context, id string, partial model.Intent) (model.Intent, bool, error)

	// Touch refreshes the last-activity time.
	Touch(ctx context.Context, id string) error

	// Delete removes the session (explicit logout).
	Delete(ctx context.Context, id string) error

	// Sweep removes sessions idle longer than the TTL at now and returns
	// their ids. Stores with native expiry may return nothing.
	Sweep(ctx context.Context, now time.Time) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Options configure a Store.
type Options struct {
	// TTL is the inactivity window after which a session expires.
	TTL time.Duration

	// RetainedTurns bounds the turns kept on the session record.
	// Zero keeps every turn.
	RetainedTurns int

	// Now overrides the time source.
	Now func() time.Time
}

const (
	defaultTTL = 2 * time.Hour
)

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// NewID mints a session id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func newSession(id, tenantID string, actor model.Actor, now time.Time) *model.Session {
	return &model.Session{
		ID:           id,
		TenantID:     tenantID,
		Actor:        actor.Kind,
		UserID:       actor.UserID,
		CreatedAt:    now,
		LastActivity: now,
		Turns:        []model.Turn{},
		Version:      1,
	}
}

// CheckOwner returns ErrOwnerMismatch unless the session was created by
// the same tenant, actor class and user.
func CheckOwner(s *model.Session, tenantID string, actor model.Actor) error {
	if s.TenantID != tenantID || s.Actor != actor.Kind || s.UserID != actor.UserID {
		return ErrOwnerMismatch
	}
	return nil
}

func expired(s *model.Session, ttl time.Duration, now time.Time) bool {
	return s.IdleSince(now) > ttl
}

// appendTurns assigns sequence numbers, trims the retained window and
// returns the stored copies of turns.
func appendTurns(s *model.Session, turns []model.Turn, retain int, now time.Time) []model.Turn {
	stored := make([]model.Turn, 0, len(turns))
	for _, t := range turns {
		s.TurnCount++
		t.Sequence = s.TurnCount
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		s.Turns = append(s.Turns, t)
		stored = append(stored, t)
	}
	if retain > 0 && len(s.Turns) > retain {
		s.Turns = append([]model.Turn(nil), s.Turns[len(s.Turns)-retain:]...)
	}
	s.LastActivity = now
	s.Version++
	return stored
}

func mergeIntent(s *model.Session, partial model.Intent, now time.Time) (model.Intent, bool) {
	merged, captured := intent.Merge(s.Intent, partial)
	s.Intent = merged
	s.LastActivity = now
	s.Version++
	return merged.Clone(), captured
}
