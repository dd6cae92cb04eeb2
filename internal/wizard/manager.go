package wizard

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/daybookhq/daybook/internal/logging"
)

// Manager owns the live sessions. One user typically has one session at a
// time, but nothing enforces that; each session is independent.
type Manager struct {
	deps       Deps
	idleExpiry time.Duration

	mu       sync.Mutex
	sessions map[string]*Session

	stop chan struct{}
	once sync.Once
}

// NewManager creates a session manager. idleExpiry bounds how long an
// untouched session survives; zero means one hour.
func NewManager(deps Deps, idleExpiry time.Duration) *Manager {
	if idleExpiry <= 0 {
		idleExpiry = time.Hour
	}
	m := &Manager{
		deps:       deps,
		idleExpiry: idleExpiry,
		sessions:   make(map[string]*Session),
		stop:       make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Start creates a new session in the select step.
func (m *Manager) Start() *Session {
	s := newSession(newSessionID(), m.deps)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.deps.event(s.ID, "session started", nil)
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// Close closes and removes a session. Closing an unknown session is an
// error; closing twice is not.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNoSession
	}
	s.Close()
	return nil
}

// List snapshots every live session.
func (m *Manager) List() []State {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]State, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.State())
	}
	return out
}

// Shutdown stops the janitor and closes every live session.
func (m *Manager) Shutdown() {
	m.once.Do(func() { close(m.stop) })

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.expireIdle()
		}
	}
}

func (m *Manager) expireIdle() {
	cutoff := time.Now().Add(-m.idleExpiry)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := !s.busy && s.lastActive.Before(cutoff)
		s.mu.Unlock()
		if idle {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		logging.Info("wizard", "expiring idle session %s", s.ID)
		s.Close()
	}
}

func newSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("150405.000000")))
	}
	return hex.EncodeToString(b)
}
