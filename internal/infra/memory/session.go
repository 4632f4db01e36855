package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrQuotaExceeded is returned by SessionStorage.Save while writes are failing.
var ErrQuotaExceeded = errors.New("session storage quota exceeded")

// SessionStorage is a map-backed port.SessionStorage.
type SessionStorage struct {
	mu         sync.RWMutex
	data       map[string][]byte
	failWrites bool
	writes     int
}

func NewSessionStorage() *SessionStorage {
	return &SessionStorage{data: make(map[string][]byte)}
}

func (s *SessionStorage) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.data[key]
	return slices.Clone(b), ok, nil
}

func (s *SessionStorage) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites {
		return ErrQuotaExceeded
	}
	s.data[key] = slices.Clone(data)
	s.writes++
	return nil
}

// FailWrites makes every following Save fail until called with false.
func (s *SessionStorage) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

// Put writes raw bytes bypassing the failure toggle (seeding malformed blobs in tests).
func (s *SessionStorage) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = slices.Clone(data)
}

// Writes counts successful saves.
func (s *SessionStorage) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
