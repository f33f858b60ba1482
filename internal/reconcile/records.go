package reconcile

import (
	"sort"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

// FromRecords rebuilds a ledger from remote rows. Payments are joined to
// their unit by (category, unit_id); payments of unknown units are dropped
// and counted. Rows with an invalid category are skipped.
func FromRecords(units []remote.UnitRecord, payments []remote.PaymentRecord, services []remote.ServiceRecord) (*core.Ledger, int) {
	l := &core.Ledger{Version: core.SchemaVersion}
	byKey := make(map[remote.UnitKey]*core.Unit, len(units))

	for _, r := range units {
		if !r.Category.Valid() || r.UnitID <= 0 {
			continue
		}
		u := &core.Unit{
			ID:           r.UnitID,
			Category:     r.Category,
			OccupantName: r.OccupantName,
			MonthlyRent:  r.RentAmount,
			Occupied:     r.Occupied,
			Payments:     map[core.MonthKey]*core.Payment{},
		}
		if _, dup := byKey[r.Key()]; dup {
			// last row wins, same as an upsert
			*byKey[r.Key()] = *u
			continue
		}
		byKey[r.Key()] = u
		l.AddUnit(u)
	}

	dropped := 0
	for _, r := range payments {
		u, ok := byKey[r.Key().Unit()]
		if !ok || r.MonthKey.IsZero() {
			dropped++
			continue
		}
		p := &core.Payment{Paid: r.Paid, Notes: r.Notes}
		if r.Paid {
			p.PaidDate = r.PaidDate
		}
		u.Payments[r.MonthKey] = p
	}

	l.Services = map[core.ServiceCategory][]core.ServiceExpense{}
	for _, r := range services {
		if !r.Category.Valid() {
			continue
		}
		l.Services[r.Category] = append(l.Services[r.Category], r.Expense())
	}
	return l, dropped
}

// ToRecords flattens a ledger into the rows of a full push. Payment rows are
// ordered by unit then month so pushes are reproducible.
func ToRecords(l *core.Ledger) remote.Snapshot {
	var snap remote.Snapshot
	for _, u := range l.AllUnits() {
		snap.Units = append(snap.Units, remote.UnitRecordFrom(u))

		months := make([]core.MonthKey, 0, len(u.Payments))
		for m := range u.Payments {
			months = append(months, m)
		}
		sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
		for _, m := range months {
			snap.Payments = append(snap.Payments, remote.PaymentRecordFrom(u, m, u.Payments[m]))
		}
	}
	snap.Services = remote.ServiceRecordsFrom(l)
	return snap
}
