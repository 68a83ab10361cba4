package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. State is lost when the process exits.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) PutAll(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	for _, e := range entries {
		m.data[e.Key] = e.Value
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
