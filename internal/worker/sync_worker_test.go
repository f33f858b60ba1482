package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/javieronasis1-eng/administracion-rentas/internal/amqp"
	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote/memory"
)

func TestSyncWorkerApply(t *testing.T) {
	store := memory.New()
	w := NewSyncWorker(store, 2)
	ctx := context.Background()
	march := core.NewMonthKey(2025, time.March)
	pay := remote.PaymentRecord{Category: core.Rooms, UnitID: 1, MonthKey: march, Paid: true, PaidDate: core.NewDate(2025, 3, 3)}

	steps := []*amqp.SyncMessage{
		unitMsg(1, "Ana"),
		amqp.NewPaymentMessage(pay),
		amqp.NewServicesMessage([]remote.ServiceRecord{{ID: "s1", Category: core.Water, Cost: core.NewMoney(300)}}),
	}
	for _, m := range steps {
		if err := w.Apply(ctx, m); err != nil {
			t.Fatalf("apply %s: %v", m.Kind, err)
		}
	}

	payments, _ := store.ListPayments(ctx)
	if len(payments) != 1 || !payments[0].Paid {
		t.Fatalf("unexpected payments %+v", payments)
	}
	services, _ := store.ListServices(ctx)
	if len(services) != 1 || services[0].ID != "s1" {
		t.Fatalf("unexpected services %+v", services)
	}

	if err := w.Apply(ctx, amqp.NewPaymentDeleteMessage(pay.Key())); err != nil {
		t.Fatalf("delete: %v", err)
	}
	payments, _ = store.ListPayments(ctx)
	if len(payments) != 0 {
		t.Fatalf("payment not deleted: %+v", payments)
	}
}

func TestSyncWorkerApplyFull(t *testing.T) {
	store := memory.New()
	w := NewSyncWorker(store, 0)
	snap := remote.Snapshot{
		Units: []remote.UnitRecord{
			{Category: core.Rooms, UnitID: 1, RentAmount: core.NewMoney(1500), Occupied: true},
			{Category: core.Rooms, UnitID: 2, RentAmount: core.NewMoney(1500), Occupied: true},
			{Category: core.Apartments, UnitID: 1, RentAmount: core.NewMoney(4500), Occupied: true},
		},
		Payments: []remote.PaymentRecord{
			{Category: core.Rooms, UnitID: 1, MonthKey: core.NewMonthKey(2025, time.January), Paid: true},
		},
		Services: []remote.ServiceRecord{{ID: "x", Category: core.Other, Cost: core.NewMoney(10)}},
	}
	if err := w.Apply(context.Background(), amqp.NewFullMessage(snap)); err != nil {
		t.Fatalf("apply full: %v", err)
	}
	units, _ := store.ListUnits(context.Background())
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	if store.Writes() != 5 {
		t.Fatalf("expected 5 writes, got %d", store.Writes())
	}
}

func TestSyncWorkerApplyClassifiesErrors(t *testing.T) {
	store := memory.New()
	w := NewSyncWorker(store, 0)
	ctx := context.Background()

	if err := w.Apply(ctx, &amqp.SyncMessage{Kind: amqp.KindUnit}); !errors.Is(err, remote.ErrRejected) {
		t.Fatalf("invalid message must be rejected, got %v", err)
	}

	store.SetOffline(true)
	if err := w.Apply(ctx, unitMsg(1, "Ana")); !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
