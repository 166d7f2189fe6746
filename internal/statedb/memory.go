package statedb

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryBackend is an in-process Backend used by tests; it keeps every
// space as a map and sorts its keys on each Iterate so the ordering
// matches BoltBackend's.
type MemoryBackend struct {
	mu     sync.RWMutex
	spaces map[string]map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{spaces: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) Get(space Space, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.spaces[string(space)]
	if !ok {
		return nil, false, nil
	}
	v, ok := bucket[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryBackend) Put(space Space, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.spaces[string(space)]
	if !ok {
		bucket = make(map[string][]byte)
		m.spaces[string(space)] = bucket
	}
	bucket[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Delete(space Space, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bucket, ok := m.spaces[string(space)]; ok {
		delete(bucket, string(key))
	}
	return nil
}

func (m *MemoryBackend) Iterate(space Space, from []byte, dir Direction, fn func(key, value []byte) bool) error {
	m.mu.RLock()
	bucket, ok := m.spaces[string(space)]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	values := make(map[string][]byte, len(bucket))
	for k, v := range bucket {
		values[k] = append([]byte(nil), v...)
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	if dir == Ascending {
		for _, k := range keys {
			if len(from) > 0 && bytes.Compare([]byte(k), from) < 0 {
				continue
			}
			if !fn([]byte(k), values[k]) {
				return nil
			}
		}
		return nil
	}
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		if len(from) > 0 && bytes.Compare([]byte(k), from) > 0 {
			continue
		}
		if !fn([]byte(k), values[k]) {
			return nil
		}
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
