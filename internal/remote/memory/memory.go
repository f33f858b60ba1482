package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

var (
	errOffline = errors.New("memory store offline")
	errReject  = errors.New("memory store rejects writes")
)

var _ remote.Store = (*Store)(nil)

// Store is an in-process remote. It backs the "memory" backend and tests.
type Store struct {
	mu       sync.Mutex
	units    map[remote.UnitKey]remote.UnitRecord
	payments map[remote.PaymentKey]remote.PaymentRecord
	services []remote.ServiceRecord

	offline bool
	reject  bool
	writes  int
}

func New() *Store {
	return &Store{
		units:    map[remote.UnitKey]remote.UnitRecord{},
		payments: map[remote.PaymentKey]remote.PaymentRecord{},
	}
}

// SetOffline makes every call fail with remote.ErrUnavailable.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// SetRejectWrites makes every write fail with remote.ErrRejected.
func (s *Store) SetRejectWrites(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = reject
}

// Writes returns the number of successful writes.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) checkRead() error {
	if s.offline {
		return remote.Unavailable(errOffline)
	}
	return nil
}

func (s *Store) checkWrite() error {
	if err := s.checkRead(); err != nil {
		return err
	}
	if s.reject {
		return remote.Rejected(errReject)
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkRead()
}

// ListUnits returns units ordered by category then id.
func (s *Store) ListUnits(_ context.Context) ([]remote.UnitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRead(); err != nil {
		return nil, err
	}
	out := make([]remote.UnitRecord, 0, len(s.units))
	for _, r := range s.units {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].UnitID < out[j].UnitID
	})
	return out, nil
}

func (s *Store) UpsertUnit(_ context.Context, r remote.UnitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWrite(); err != nil {
		return err
	}
	if !r.Category.Valid() || r.UnitID <= 0 {
		return remote.Rejected(fmt.Errorf("invalid unit key %s/%d", r.Category, r.UnitID))
	}
	s.units[r.Key()] = r
	s.writes++
	return nil
}

func (s *Store) ListPayments(_ context.Context) ([]remote.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRead(); err != nil {
		return nil, err
	}
	out := make([]remote.PaymentRecord, 0, len(s.payments))
	for _, r := range s.payments {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.UnitID != b.UnitID {
			return a.UnitID < b.UnitID
		}
		return a.MonthKey.Before(b.MonthKey)
	})
	return out, nil
}

func (s *Store) UpsertPayment(_ context.Context, r remote.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWrite(); err != nil {
		return err
	}
	if r.MonthKey.IsZero() {
		return remote.Rejected(errors.New("payment without month key"))
	}
	s.payments[r.Key()] = r
	s.writes++
	return nil
}

func (s *Store) DeletePayment(_ context.Context, key remote.PaymentKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWrite(); err != nil {
		return err
	}
	delete(s.payments, key)
	s.writes++
	return nil
}

func (s *Store) ListServices(_ context.Context) ([]remote.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRead(); err != nil {
		return nil, err
	}
	return append([]remote.ServiceRecord(nil), s.services...), nil
}

func (s *Store) ReplaceAllServices(_ context.Context, rs []remote.ServiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWrite(); err != nil {
		return err
	}
	s.services = append([]remote.ServiceRecord(nil), rs...)
	s.writes++
	return nil
}
