package storage

import (
	"context"
	"sync"
)

// Memory is a Database that keeps everything in process. Values are lost on
// restart.
type Memory struct {
	mu     sync.Mutex
	values map[string]map[string]string
}

var _ Database = (*Memory)(nil)

// NewMemory returns an empty Memory database.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]map[string]string),
	}
}

// GetValue implements Database.
func (m *Memory) GetValue(ctx context.Context, sessionID, key string) (string, error) {
	if err := validateKey(sessionID, key); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[sessionID][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetValue implements Database.
func (m *Memory) SetValue(ctx context.Context, sessionID, key, value string) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[sessionID] == nil {
		m.values[sessionID] = make(map[string]string)
	}
	m.values[sessionID][key] = value
	return nil
}

// DeleteValue implements Database.
func (m *Memory) DeleteValue(ctx context.Context, sessionID, key string) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values[sessionID], key)
	if len(m.values[sessionID]) == 0 {
		delete(m.values, sessionID)
	}
	return nil
}

// Close implements Database.
func (m *Memory) Close() error {
	return nil
}
