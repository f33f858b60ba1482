package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	bs, err := NewBoltStore(filepath.Join(t.TempDir(), "sub", "cache.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = bs.Close() })
	return map[string]Store{"bolt": bs, "memory": NewMemoryStore()}
}

func TestLoadEmpty(t *testing.T) {
	for name, s := range stores(t) {
		if _, err := s.Load(context.Background()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	march := core.NewMonthKey(2025, time.March)
	for name, s := range stores(t) {
		l := core.DefaultLedger(core.NewMoney(1500), core.NewMoney(4500))
		l.Rooms[0].Payments[march] = &core.Payment{Paid: true, PaidDate: core.NewDate(2025, 3, 2), Notes: "efectivo"}
		l.Rooms[1].Occupied = false
		l.Services[core.Water] = []core.ServiceExpense{{ID: "w1", Category: core.Water, Date: core.NewDate(2025, 3, 9), Cost: core.NewMoney(300)}}

		if err := s.Save(context.Background(), l); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		got, err := s.Load(context.Background())
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		p := got.Rooms[0].Payments[march]
		if p == nil || !p.Paid || p.PaidDate.String() != "2025-03-02" || p.Notes != "efectivo" {
			t.Fatalf("%s: unexpected payment %+v", name, p)
		}
		if got.Rooms[1].Occupied {
			t.Fatalf("%s: occupancy lost", name)
		}
		if len(got.Services[core.Water]) != 1 || got.Services[core.Water][0].ID != "w1" {
			t.Fatalf("%s: unexpected services %+v", name, got.Services)
		}

		// Mutating the loaded copy must not affect the stored blob.
		got.Rooms[0].OccupantName = "changed"
		again, _ := s.Load(context.Background())
		if again.Rooms[0].OccupantName == "changed" {
			t.Fatalf("%s: loaded ledger aliases stored state", name)
		}
	}
}

func TestBoltStoreCorruptBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketLedger)).Put([]byte(Key), []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = s.Load(context.Background())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestMemoryStoreLegacyBlob(t *testing.T) {
	s := NewMemoryStore()
	s.SetRaw([]byte(`{"cuartos":[{"id":1,"inquilino":"Ana","renta":1500}],"departamentos":[],"servicios":{}}`))
	l, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !l.Rooms[0].Occupied || l.Version != core.SchemaVersion || len(l.Services) != 4 {
		t.Fatalf("legacy blob not normalized: %+v", l)
	}
}

func TestMemoryStoreFailSave(t *testing.T) {
	s := NewMemoryStore()
	s.FailSave = errors.New("disk full")
	if err := s.Save(context.Background(), core.DefaultLedger(core.NewMoney(1), core.NewMoney(1))); err == nil {
		t.Fatalf("expected error")
	}
	if len(s.Raw()) != 0 {
		t.Fatalf("nothing should be stored")
	}
}
