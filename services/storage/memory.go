package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBlobStore keeps objects in memory. Used in tests and local runs
// without a bucket.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ BlobStore = (*MemoryBlobStore)(nil)

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

func (m *MemoryBlobStore) PresignedURL(key string, expiration time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.objects[key]; !ok {
		return "", fmt.Errorf("object %q not found", key)
	}
	return fmt.Sprintf("memory://%s?expires=%d", key, int(expiration.Seconds())), nil
}

// Object returns a stored object.
func (m *MemoryBlobStore) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	return data, ok
}
