package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remote.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo.Close()
	version, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected schema version 2, got %d", version)
	}
}

func TestUnitUpsert(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	rent, _ := core.ParseMoney("1500.50")
	rec := remote.UnitRecord{Category: core.Rooms, UnitID: 1, OccupantName: "Ana", RentAmount: rent, Occupied: true}
	if err := repo.UpsertUnit(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec.OccupantName = "Luis"
	rec.Occupied = false
	if err := repo.UpsertUnit(ctx, rec); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if err := repo.UpsertUnit(ctx, remote.UnitRecord{Category: core.Apartments, UnitID: 1, RentAmount: core.NewMoney(4500)}); err != nil {
		t.Fatalf("upsert apartment: %v", err)
	}

	units, err := repo.ListUnits(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	room := units[0]
	if room.Category != core.Rooms || room.OccupantName != "Luis" || room.Occupied || room.RentAmount.String() != "1500.5" {
		t.Fatalf("unexpected room %+v", room)
	}
}

func TestUnitUpsertRejectsInvalidCategory(t *testing.T) {
	repo := newRepo(t)
	err := repo.UpsertUnit(context.Background(), remote.UnitRecord{Category: "garage", UnitID: 1})
	if !errors.Is(err, remote.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestPaymentUpsertAndDelete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	march := core.NewMonthKey(2025, time.March)
	april := core.NewMonthKey(2025, time.April)

	rec := remote.PaymentRecord{Category: core.Rooms, UnitID: 2, MonthKey: march, Paid: true, PaidDate: core.NewDate(2025, 3, 2)}
	if err := repo.UpsertPayment(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpsertPayment(ctx, remote.PaymentRecord{Category: core.Rooms, UnitID: 2, MonthKey: april}); err != nil {
		t.Fatalf("upsert april: %v", err)
	}
	rec.Paid = false
	rec.PaidDate = core.Date{}
	if err := repo.UpsertPayment(ctx, rec); err != nil {
		t.Fatalf("upsert unpaid: %v", err)
	}

	list, err := repo.ListPayments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].MonthKey != march || list[0].Paid || !list[0].PaidDate.IsZero() {
		t.Fatalf("unexpected payments %+v", list)
	}

	if err := repo.DeletePayment(ctx, rec.Key()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = repo.ListPayments(ctx)
	if len(list) != 1 || list[0].MonthKey != april {
		t.Fatalf("unexpected payments after delete %+v", list)
	}
}

func TestPaymentNotes(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	march := core.NewMonthKey(2025, time.March)

	rec := remote.PaymentRecord{Category: core.Rooms, UnitID: 1, MonthKey: march, Notes: "pago parcial, resta 500"}
	if err := repo.UpsertPayment(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	list, err := repo.ListPayments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Notes != rec.Notes || list[0].Paid {
		t.Fatalf("unexpected payments %+v", list)
	}

	rec.Notes = ""
	rec.Paid = true
	rec.PaidDate = core.NewDate(2025, 3, 9)
	if err := repo.UpsertPayment(ctx, rec); err != nil {
		t.Fatalf("upsert cleared notes: %v", err)
	}
	list, _ = repo.ListPayments(ctx)
	if len(list) != 1 || list[0].Notes != "" || !list[0].Paid {
		t.Fatalf("notes not cleared %+v", list)
	}
}

func TestReplaceAllServicesKeepsOrder(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	first := []remote.ServiceRecord{
		{ID: "a", Category: core.Water, Date: core.NewDate(2025, 3, 1), Cost: core.NewMoney(300), Quantity: core.NewQuantity(decimal.NewFromInt(12000))},
		{ID: "b", Category: core.Electricity, Date: core.NewDate(2025, 3, 2), Cost: core.NewMoney(450), Notes: "bimestral"},
		{ID: "c", Category: core.Other, Cost: core.NewMoney(10)},
	}
	if err := repo.ReplaceAllServices(ctx, first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := repo.ListServices(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("unexpected order %+v", got)
	}
	if got[0].Quantity.String() != "12000" || got[1].Notes != "bimestral" || !got[2].Date.IsZero() || got[2].Quantity.Valid {
		t.Fatalf("fields not preserved %+v", got)
	}

	if err := repo.ReplaceAllServices(ctx, first[:1]); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = repo.ListServices(ctx)
	if len(got) != 1 {
		t.Fatalf("expected full replacement, got %d rows", len(got))
	}
}

func TestReplaceAllServicesRollsBackOnReject(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	if err := repo.ReplaceAllServices(ctx, []remote.ServiceRecord{{ID: "a", Category: core.Water, Cost: core.NewMoney(1)}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	bad := []remote.ServiceRecord{{ID: "b", Category: core.Water, Cost: core.NewMoney(1)}, {ID: "c", Category: "gas", Cost: core.NewMoney(1)}}
	if err := repo.ReplaceAllServices(ctx, bad); !errors.Is(err, remote.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	got, _ := repo.ListServices(ctx)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("failed replace must leave previous rows, got %+v", got)
	}
}
