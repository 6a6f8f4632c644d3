package auth

import (
	"context"
	"sync"
	"time"
	"tutorhub-portal-svc/src/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	contextKeySession  = "auth_session"
	contextKeyClientID = "client_id"
)

// Manager owns the auth session of every portal client.
type Manager struct {
	backend       Backend
	store         storage.Storage
	verifyTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*managedSession
	onDrop   []func(clientID string)
}

type managedSession struct {
	session  *Session
	lastSeen time.Time
}

func NewManager(backend Backend, store storage.Storage, verifyTimeout time.Duration) *Manager {
	return &Manager{
		backend:       backend,
		store:         store,
		verifyTimeout: verifyTimeout,
		sessions:      make(map[string]*managedSession),
	}
}

// OnDrop registers fn to run whenever a client's session is torn down.
func (m *Manager) OnDrop(fn func(clientID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDrop = append(m.onDrop, fn)
}

// Get returns the client's session, creating it and starting the stored
// login verification on first use.
func (m *Manager) Get(clientID string) *Session {
	m.mu.Lock()
	if managed, ok := m.sessions[clientID]; ok {
		managed.lastSeen = time.Now()
		m.mu.Unlock()
		return managed.session
	}

	session := NewSession(clientID, m.backend, m.store)
	m.sessions[clientID] = &managedSession{session: session, lastSeen: time.Now()}
	m.mu.Unlock()

	logrus.WithField("client_id", clientID).Debug("Auth session created, verifying stored login")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.verifyTimeout)
		defer cancel()
		session.Verify(ctx)
	}()

	return session
}

// Drop forgets the client's session. The persisted state is left alone;
// Logout is what clears it.
func (m *Manager) Drop(clientID string) {
	m.drop(clientID, time.Time{})
}

// drop removes the client unless it was seen at or after idleBefore. A zero
// idleBefore drops unconditionally. It reports whether the client was dropped.
func (m *Manager) drop(clientID string, idleBefore time.Time) bool {
	m.mu.Lock()
	managed, ok := m.sessions[clientID]
	if ok && !idleBefore.IsZero() && !managed.lastSeen.Before(idleBefore) {
		ok = false
	}
	if ok {
		delete(m.sessions, clientID)
	}
	hooks := append([]func(string){}, m.onDrop...)
	m.mu.Unlock()

	if !ok {
		return false
	}
	for _, hook := range hooks {
		hook(clientID)
	}
	return true
}

// Sweep drops sessions idle for longer than maxIdle and reports how many.
// A dropped client that returns is verified again from storage.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var idle []string
	for clientID, managed := range m.sessions {
		if managed.lastSeen.Before(cutoff) {
			idle = append(idle, clientID)
		}
	}
	m.mu.Unlock()

	dropped := 0
	for _, clientID := range idle {
		// The client may have come back since the scan.
		if m.drop(clientID, cutoff) {
			dropped++
		}
	}
	return dropped
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SetContext attaches the client's session to the request.
func SetContext(c *gin.Context, session *Session) {
	c.Set(contextKeySession, session)
	c.Set(contextKeyClientID, session.ClientID())
}

// FromContext returns the session attached by SetContext, or nil.
func FromContext(c *gin.Context) *Session {
	value, exists := c.Get(contextKeySession)
	if !exists {
		return nil
	}
	session, _ := value.(*Session)
	return session
}
