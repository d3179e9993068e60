package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store used in tests and single-node development.
type Memory struct {
	collections map[string]map[string]Record
	mu          sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]Record),
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}

	data := make([]byte, len(rec.Data))
	copy(data, rec.Data)
	return &Record{ID: rec.ID, Data: data}, nil
}

func (m *Memory) Put(ctx context.Context, collection string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]Record)
	}

	data := make([]byte, len(rec.Data))
	copy(data, rec.Data)
	m.collections[collection][rec.ID] = Record{ID: rec.ID, Data: data}
	return nil
}

func (m *Memory) Query(ctx context.Context, collection, field, value string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.collections[collection] {
		if fieldMatches(rec.Data, field, value) {
			data := make([]byte, len(rec.Data))
			copy(data, rec.Data)
			out = append(out, Record{ID: rec.ID, Data: data})
		}
	}
	return out, nil
}
