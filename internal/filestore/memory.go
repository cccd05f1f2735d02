package filestore

import (
	"context"
	"sync"

	"leasecover/pkg/platform/sentinel"
)

// Memory keeps binaries in a map. Used by tests and local runs without a
// storage directory.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, pathHint string, content []byte, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	sum := Checksum(content)
	key := "mem://" + objectKey(pathHint, sum, contentType)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), content...)
	return Object{Location: key, Checksum: sum, Size: int64(len(content))}, nil
}

func (m *Memory) Delete(_ context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[location]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.objects, location)
	return nil
}

// Get returns a copy of the stored binary.
func (m *Memory) Get(location string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[location]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
