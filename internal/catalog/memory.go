package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"
)

// Snapshot is a full copy of the catalog contents.
type Snapshot struct {
	Conditions []Condition         `json:"conditions"`
	Scenarios  []Scenario          `json:"scenarios"`
	Symptoms   []SymptomDefinition `json:"symptoms"`
}

// MemoryCatalog serves a Snapshot from memory. It is used by tests, the
// memory storage backend and as the swap target of Cache.
type MemoryCatalog struct {
	mu      sync.RWMutex
	snap    Snapshot
	version atomic.Uint64
}

func NewMemory(snap Snapshot) *MemoryCatalog {
	return &MemoryCatalog{snap: snap}
}

// LoadSnapshotFile reads a JSON catalog file.
func LoadSnapshotFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read catalog file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode catalog file: %w", err)
	}
	return snap, nil
}

// Replace swaps the served snapshot.
func (m *MemoryCatalog) Replace(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.version.Add(1)
}

// Version changes every time the snapshot is replaced.
func (m *MemoryCatalog) Version() uint64 {
	return m.version.Load()
}

func (m *MemoryCatalog) ListConditions(_ context.Context) ([]Condition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.snap.Conditions), nil
}

func (m *MemoryCatalog) GetCondition(_ context.Context, id string) (*Condition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.snap.Conditions {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, fmt.Errorf("condition %s: %w", id, ErrNotFound)
}

func (m *MemoryCatalog) ListScenarios(_ context.Context) ([]Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.snap.Scenarios), nil
}

func (m *MemoryCatalog) GetScenario(_ context.Context, id string) (*Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.snap.Scenarios {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
}

func (m *MemoryCatalog) ListScenariosByDisease(_ context.Context, diseaseKey string) ([]Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Scenario
	for _, s := range m.snap.Scenarios {
		if slices.Contains(s.DiseaseKeys, diseaseKey) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryCatalog) ListSymptoms(_ context.Context) ([]SymptomDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.snap.Symptoms), nil
}
