package cache

import (
	"sort"
	"strings"
	"sync"
)

// MemCache is an in-process Store backed by a map.
type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]Entry
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]Entry),
	}
}

func (m MemCache) Initialize() error {
	return nil
}

func (m MemCache) Get(key string) (*Entry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.db[key]
	if !ok {
		return nil, nil
	}
	return entry.clone(), nil
}

func (m MemCache) Put(key string, entry Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry.Key = key
	m.db[key] = *entry.clone()
	return nil
}

func (m MemCache) Remove(key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, key)
	return nil
}

func (m MemCache) Clear() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for key := range m.db {
		delete(m.db, key)
	}
	return nil
}

func (m MemCache) Keys(prefix string, cb func(string)) error {
	m.mutex.RLock()
	keys := make([]string, 0, len(m.db))
	for key := range m.db {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	m.mutex.RUnlock()
	sort.Strings(keys)
	for _, key := range keys {
		cb(key)
	}
	return nil
}
