package session

import (
	"context"
	"strings"
	"sync"

	"previewsync/internal/fileset"
	"previewsync/internal/preview"
)

// Manager owns the per-document sessions. A session exists only while its
// document is open; Teardown on navigation out releases the sandbox and all
// timers.
type Manager struct {
	sandbox  preview.SandboxControl
	baseline BaselineSource

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(sandbox preview.SandboxControl, baseline BaselineSource) *Manager {
	return &Manager{
		sandbox:  sandbox,
		baseline: baseline,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for documentID, creating it on first use. The
// accumulation mode may be empty for observers (the bridge, read endpoints)
// that attach before any generation: the session stays undecided until the
// first concrete mode settles it, and a settled mode is never changed.
func (m *Manager) Open(documentID string, mode fileset.Mode) *Session {
	if m == nil {
		return nil
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[documentID]; ok {
		s.store.EnsureMode(mode)
		return s
	}
	s := newSession(documentID, mode, m.sandbox, m.baseline)
	m.sessions[documentID] = s
	return s
}

// Get returns an existing session without creating one.
func (m *Manager) Get(documentID string) (*Session, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[documentID]
	return s, ok
}

// Teardown closes and removes the session for documentID.
func (m *Manager) Teardown(ctx context.Context, documentID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	s, ok := m.sessions[documentID]
	delete(m.sessions, documentID)
	m.mu.Unlock()
	if ok {
		s.Close(ctx)
	}
}
