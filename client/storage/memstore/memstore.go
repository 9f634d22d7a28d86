package memstore

import (
	"maps"
	"sync"

	"github.com/jrsteele09/go-calendar-sync/client/storage"
)

var _ storage.Store = (*MemStore)(nil)

// MemStore is an in-memory storage.Store used by tests and ephemeral clients.
type MemStore struct {
	values map[string]string
	lock   sync.RWMutex
}

func New() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

// NewWith returns a store seeded with values.
func NewWith(values map[string]string) *MemStore {
	s := New()
	maps.Copy(s.values, values)
	return s
}

func (s *MemStore) Get(key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *MemStore) Set(values map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	maps.Copy(s.values, values)
	return nil
}

func (s *MemStore) Clear(keys ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Len reports the number of stored keys.
func (s *MemStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.values)
}
