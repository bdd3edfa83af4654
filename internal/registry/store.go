// Package registry owns the live sessions: it allocates room codes, seats
// joining connections, keeps a connection → session index and reaps
// finished sessions.
package registry

import (
	"sync"

	"github.com/Feddakalkun/chess-platform/internal/domain"
)

// Store is the backing store for live sessions. Implementations must make
// Insert atomic so two sessions can never share an id.
type Store interface {
	// Insert stores s unless its id is taken, reporting success.
	Insert(s *domain.Session) bool
	Get(id string) (*domain.Session, bool)
	Delete(id string) bool
	List() []*domain.Session
	Len() int
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

func (m *MemoryStore) Insert(s *domain.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.sessions[s.ID]; taken {
		return false
	}
	m.sessions[s.ID] = s
	return true
}

func (m *MemoryStore) Get(id string) (*domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *MemoryStore) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *MemoryStore) List() []*domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
