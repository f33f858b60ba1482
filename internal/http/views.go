package http

import (
	"sort"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/worker"
)

type (
	paymentView struct {
		Month    core.MonthKey `json:"month"`
		Paid     bool          `json:"paid"`
		PaidDate core.Date     `json:"paid_date"`
		Notes    string        `json:"notes,omitempty"`
	}

	unitView struct {
		Category      core.UnitCategory `json:"category"`
		ID            int               `json:"id"`
		OccupantName  string            `json:"occupant_name"`
		MonthlyRent   core.Money        `json:"monthly_rent"`
		Occupied      bool              `json:"occupied"`
		SelectedMonth core.MonthKey     `json:"selected_month"`
		Payments      []paymentView     `json:"payments"`
	}

	serviceView struct {
		ID       string               `json:"id"`
		Category core.ServiceCategory `json:"category"`
		Index    int                  `json:"index"`
		Date     core.Date            `json:"date"`
		Cost     core.Money           `json:"cost"`
		Quantity core.Quantity        `json:"quantity"`
		Notes    string               `json:"notes,omitempty"`
	}

	ledgerView struct {
		Rooms      []unitView                             `json:"rooms"`
		Apartments []unitView                             `json:"apartments"`
		Services   map[core.ServiceCategory][]serviceView `json:"services"`
	}

	// syncView tells the client how far the remote write got.
	syncView struct {
		State string `json:"state"`
		Error string `json:"error,omitempty"`
	}

	mutationResponse struct {
		Unit    *unitView    `json:"unit,omitempty"`
		Service *serviceView `json:"service,omitempty"`
		Sync    syncView     `json:"sync"`
	}
)

// Sync states reported to clients.
const (
	SyncLocal   = "local"
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncFailed  = "failed"
)

func newUnitView(u *core.Unit) unitView {
	v := unitView{
		Category:      u.Category,
		ID:            u.ID,
		OccupantName:  u.OccupantName,
		MonthlyRent:   u.MonthlyRent,
		Occupied:      u.Occupied,
		SelectedMonth: u.SelectedMonth,
		Payments:      make([]paymentView, 0, len(u.Payments)),
	}
	for month, p := range u.Payments {
		v.Payments = append(v.Payments, paymentView{Month: month, Paid: p.Paid, PaidDate: p.PaidDate, Notes: p.Notes})
	}
	sort.Slice(v.Payments, func(i, j int) bool {
		return v.Payments[j].Month.Before(v.Payments[i].Month)
	})
	return v
}

func newUnitViews(units []*core.Unit) []unitView {
	out := make([]unitView, 0, len(units))
	for _, u := range units {
		out = append(out, newUnitView(u))
	}
	return out
}

func newServiceView(e core.ServiceExpense, index int) serviceView {
	return serviceView{
		ID:       e.ID,
		Category: e.Category,
		Index:    index,
		Date:     e.Date,
		Cost:     e.Cost,
		Quantity: e.Quantity,
		Notes:    e.Notes,
	}
}

func newLedgerView(l *core.Ledger) ledgerView {
	v := ledgerView{
		Rooms:      newUnitViews(l.Rooms),
		Apartments: newUnitViews(l.Apartments),
		Services:   make(map[core.ServiceCategory][]serviceView, len(core.ServiceCategories())),
	}
	for _, cat := range core.ServiceCategories() {
		list := make([]serviceView, 0, len(l.Services[cat]))
		for i, e := range l.Services[cat] {
			e.Category = cat
			list = append(list, newServiceView(e, i))
		}
		v.Services[cat] = list
	}
	return v
}

func newSyncView(t *worker.Ticket) syncView {
	if t == nil {
		return syncView{State: SyncLocal}
	}
	select {
	case <-t.Done():
	default:
		return syncView{State: SyncPending}
	}
	if err := t.Err(); err != nil {
		return syncView{State: SyncFailed, Error: err.Error()}
	}
	return syncView{State: SyncDone}
}
