package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	openByCounterpart map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Session)
	now               func() time.Time
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		openByCounterpart: make(map[string]string),
		inactivityTimeout: inactivityTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Open returns the counterpart's open session, creating one when none exists.
// created reports whether a new session was started. Every call counts as a turn.
func (m *Manager) Open(counterpart string) (s *Session, created bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.openByCounterpart[counterpart]; ok {
		existing := m.sessions[id]
		existing.Turns++
		existing.LastActivityAt = now
		return clone(existing), false
	}

	fresh := &Session{
		ID:             uuid.NewString(),
		Counterpart:    counterpart,
		Status:         StatusOpen,
		Turns:          1,
		StartedAt:      now,
		LastActivityAt: now,
	}
	m.sessions[fresh.ID] = fresh
	m.openByCounterpart[counterpart] = fresh.ID
	return clone(fresh), true
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// Current returns the counterpart's open session.
func (m *Manager) Current(counterpart string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.openByCounterpart[counterpart]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m.sessions[id]), nil
}

// End closes the counterpart's open session.
func (m *Manager) End(counterpart string) (*Session, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.openByCounterpart[counterpart]
	if !ok {
		return nil, ErrNotFound
	}
	s := m.sessions[id]
	endLocked(s, now)
	delete(m.openByCounterpart, counterpart)
	return clone(s), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.openByCounterpart)
}

// expireInactive ends idle sessions and forgets ended ones past the timeout.
func (m *Manager) expireInactive() {
	now := m.now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		idle := now.Sub(s.LastActivityAt)
		if s.Status == StatusEnded {
			if idle >= m.inactivityTimeout {
				delete(m.sessions, id)
			}
			continue
		}
		if idle < m.inactivityTimeout {
			continue
		}
		endLocked(s, now)
		delete(m.openByCounterpart, s.Counterpart)
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func endLocked(s *Session, now time.Time) {
	s.Status = StatusEnded
	s.EndedAt = now
	s.LastActivityAt = now
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
