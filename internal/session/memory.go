package session

import (
	"context"
	"sync"
	"time"

	"github.com/toneill57/innpilot-sub001/internal/model"
)

type memoryEntry struct {
	mu      sync.Mutex
	session *model.Session
	removed bool
}

// Memory is an in-process Store. Each session has its own lock so turns
// on different sessions never contend.
type Memory struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*memoryEntry
}

// NewMemory creates an in-process session store.
func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:     opts.withDefaults(),
		sessions: make(map[string]*memoryEntry),
	}
}

// GetOrCreate implements Store.
func (m *Memory) GetOrCreate(_ context.Context, id, tenantID string, actor model.Actor) (*model.Session, error) {
	if id == "" {
		id = NewID()
	}
	now := m.opts.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[id]; ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.removed && !expired(e.session, m.opts.TTL, now) {
			if err := CheckOwner(e.session, tenantID, actor); err != nil {
				return nil, err
			}
			e.session.LastActivity = now
			return e.session.Clone(), nil
		}
		e.removed = true
	}

	s := newSession(id, tenantID, actor, now)
	m.sessions[id] = &memoryEntry{session: s}
	return s.Clone(), nil
}

// with runs fn on a live session while holding its lock.
func (m *Memory) with(id string, fn func(s *model.Session) error) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || expired(e.session, m.opts.TTL, m.opts.Now()) {
		return ErrNotFound
	}
	return fn(e.session)
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, id string) (*model.Session, error) {
	var out *model.Session
	err := m.with(id, func(s *model.Session) error {
		out = s.Clone()
		return nil
	})
	return out, err
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, id string, turns ...model.Turn) ([]model.Turn, error) {
	var stored []model.Turn
	err := m.with(id, func(s *model.Session) error {
		stored = appendTurns(s, turns, m.opts.RetainedTurns, m.opts.Now())
		return nil
	})
	return stored, err
}

// MergeIntent implements Store.
func (m *Memory) MergeIntent(_ context.Context, id string, partial model.Intent) (model.Intent, bool, error) {
	var (
		merged   model.Intent
		captured bool
	)
	err := m.with(id, func(s *model.Session) error {
		merged, captured = mergeIntent(s, partial, m.opts.Now())
		return nil
	})
	return merged, captured, err
}

// Touch implements Store.
func (m *Memory) Touch(_ context.Context, id string) error {
	return m.with(id, func(s *model.Session) error {
		s.LastActivity = m.opts.Now()
		return nil
	})
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	return nil
}

// Sweep implements Store.
func (m *Memory) Sweep(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, e := range m.sessions {
		e.mu.Lock()
		if e.removed || expired(e.session, m.opts.TTL, now) {
			e.removed = true
			delete(m.sessions, id)
			ids = append(ids, id)
		}
		e.mu.Unlock()
	}
	return ids, nil
}

// Len reports the number of tracked sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string]*memoryEntry)
	return nil
}

var _ Store = (*Memory)(nil)
