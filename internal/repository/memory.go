package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"crisis-assistant/internal/domain"
)

type memoryEntry struct {
	state     domain.DialogueState
	expiresAt time.Time
}

// MemoryStore keeps session state in process memory. State is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memoryEntry
	lastScan time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      resolveTTL(ttl),
		sessions: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) GetState(_ context.Context, sessionID string) (domain.DialogueState, error) {
	if !validSessionID(sessionID) {
		return domain.DialogueState{}, errors.New("repository: session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok || !now().Before(e.expiresAt) {
		delete(m.sessions, sessionID)
		return domain.NewDialogueState(sessionID), nil
	}
	return e.state, nil
}

func (m *MemoryStore) SaveState(_ context.Context, state domain.DialogueState) error {
	if !validSessionID(state.SessionID) {
		return errors.New("repository: session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := now()
	m.sessions[state.SessionID] = memoryEntry{state: state, expiresAt: t.Add(m.ttl)}
	if t.Sub(m.lastScan) >= m.ttl {
		m.evictLocked(t)
		m.lastScan = t
	}
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(now())
	return len(m.sessions)
}

func (m *MemoryStore) evictLocked(t time.Time) {
	for id, e := range m.sessions {
		if !t.Before(e.expiresAt) {
			delete(m.sessions, id)
		}
	}
}
