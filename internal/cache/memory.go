package cache

import (
	"context"
	"sync"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
)

// MemoryStore keeps the serialized blob in memory. Callers never share
// pointers with the stored copy.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte

	// FailSave makes Save return this error when set.
	FailSave error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*core.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, ErrNotFound
	}
	return core.Decode(s.data)
}

func (s *MemoryStore) Save(_ context.Context, l *core.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	data, err := core.Encode(l)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

// Raw returns the stored blob, or nil.
func (s *MemoryStore) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data...)
}

// SetRaw stores an arbitrary blob, e.g. one written by an older version.
func (s *MemoryStore) SetRaw(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), b...)
}
