package storage

import (
	"bytes"
	"context"
	"sync"
)

// Memory keeps the record in process memory. Contents are lost on exit.
type Memory struct {
	mu    sync.Mutex
	data  []byte
	saved bool
	saves int
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns a copy of the record, or ErrNotFound before the first Save.
func (m *Memory) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return nil, ErrNotFound
	}
	return bytes.Clone(m.data), nil
}

// Save replaces the record with a copy of data.
func (m *Memory) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = bytes.Clone(data)
	m.saved = true
	m.saves++
	return nil
}

// Clear drops the record; Load reports ErrNotFound until the next Save.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.saved = false
}

// Saves returns how many times Save succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
