package storage

import (
	"sort"
	"sync"
)

// Memory is an in-process Store. It is the default backend and the one the
// test suites use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get implements Store.Get.
func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok
}

// Set implements Store.Set.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete implements Store.Delete.
func (m *Memory) Delete(prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.values {
		if underPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

// List implements Store.List.
func (m *Memory) List(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key := range m.values {
		if underPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
