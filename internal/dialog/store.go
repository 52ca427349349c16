package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrRemoveSession is returned by an Update callback to drop the session
// instead of writing it back.
var ErrRemoveSession = errors.New("remove session")

// SessionStore holds live sessions by id.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	// Update loads the session, runs fn on it and writes the result back.
	// Concurrent updates of one id are serialized across every user of the
	// store. Any error from fn except ErrRemoveSession discards the changes.
	Update(ctx context.Context, id string, fn func(*Session) error) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is the default process-local SessionStore. Sessions are copied
// in and out so callers never share mutable state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	locks    *keyedMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		locks:    newKeyedMutex(),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("dialog %s: %w", id, ErrNotFound)
	}
	return s.clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*Session) error) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	switch err := fn(sess); {
	case errors.Is(err, ErrRemoveSession):
		return m.Delete(ctx, id)
	case err != nil:
		return err
	}
	return m.Put(ctx, sess)
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("dialog %s: %w", id, ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}
