package story

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryArchiver keeps stories in process memory. It is not persistent and is
// only suitable for development and tests.
type MemoryArchiver struct {
	mu         sync.RWMutex
	byDialogID map[string]Story
	byUserID   map[string][]string
}

func NewMemoryArchiver() *MemoryArchiver {
	return &MemoryArchiver{
		byDialogID: make(map[string]Story),
		byUserID:   make(map[string][]string),
	}
}

func (m *MemoryArchiver) Append(_ context.Context, st *Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byDialogID[st.DialogID]; exists {
		return fmt.Errorf("dialog %s: %w", st.DialogID, ErrAlreadyArchived)
	}
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}

	m.byDialogID[st.DialogID] = *st
	m.byUserID[st.UserID] = append(m.byUserID[st.UserID], st.DialogID)
	return nil
}

func (m *MemoryArchiver) GetByDialogID(_ context.Context, dialogID string) (*Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.byDialogID[dialogID]
	if !ok {
		return nil, fmt.Errorf("dialog %s: %w", dialogID, ErrNotFound)
	}
	return &st, nil
}

func (m *MemoryArchiver) ListByUser(_ context.Context, userID string, limit int) ([]Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byUserID[userID]
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	out := make([]Story, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.byDialogID[ids[i]])
	}
	return out, nil
}
