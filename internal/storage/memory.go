package storage

import (
	"context"
	"sync"

	"github.com/cloo-solutions/mmrag/internal/domain"
)

// MemoryDocumentStore is an in-process document store used when no object
// storage is configured. Contents are lost on restart.
type MemoryDocumentStore struct {
	mu    sync.RWMutex
	units map[string]*domain.ContentUnit
	order []string
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{units: make(map[string]*domain.ContentUnit)}
}

func (m *MemoryDocumentStore) GetMany(_ context.Context, ids []string) (map[string]*domain.ContentUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*domain.ContentUnit, len(ids))
	for _, id := range ids {
		if u, ok := m.units[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *MemoryDocumentStore) SetMany(_ context.Context, units []*domain.ContentUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range units {
		if _, exists := m.units[u.ID]; !exists {
			m.order = append(m.order, u.ID)
		}
		cp := *u
		m.units[u.ID] = &cp
	}
	return nil
}

// ListKeys returns ids in insertion order.
func (m *MemoryDocumentStore) ListKeys(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.order)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]string(nil), m.order[:n]...), nil
}

func (m *MemoryDocumentStore) DeleteMany(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := m.units[id]; ok {
			delete(m.units, id)
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return nil
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}
