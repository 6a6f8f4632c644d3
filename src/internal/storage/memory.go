package storage

import (
	"context"
	"sync"
	"tutorhub-portal-svc/src/internal/models"
)

type memoryStorage struct {
	mu      sync.RWMutex
	clients map[string]map[string]string
}

// NewMemoryStorage keeps client state in process memory. State does not
// survive a restart.
func NewMemoryStorage() Storage {
	return &memoryStorage{clients: make(map[string]map[string]string)}
}

func (m *memoryStorage) Get(ctx context.Context, clientID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.clients[clientID][key]
	if !ok {
		return "", models.ErrStorageNotFound
	}
	return value, nil
}

func (m *memoryStorage) Set(ctx context.Context, clientID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.clients[clientID]
	if !ok {
		entries = make(map[string]string)
		m.clients[clientID] = entries
	}
	entries[key] = value
	return nil
}

func (m *memoryStorage) Remove(ctx context.Context, clientID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.clients[clientID]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(entries, key)
	}
	if len(entries) == 0 {
		delete(m.clients, clientID)
	}
	return nil
}

func (m *memoryStorage) Ping(ctx context.Context) error {
	return nil
}
