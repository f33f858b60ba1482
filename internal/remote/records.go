package remote

import (
	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
)

// Row shapes of the remote tables. UserScope is always empty: the ledger is
// single-tenant, the column only reserves room for scoping.
type (
	UnitRecord struct {
		UserScope    string            `json:"user_scope,omitempty"`
		Category     core.UnitCategory `json:"category"`
		UnitID       int               `json:"unit_id"`
		OccupantName string            `json:"occupant_name"`
		RentAmount   core.Money        `json:"rent_amount"`
		Occupied     bool              `json:"occupied"`
	}

	PaymentRecord struct {
		UserScope string            `json:"user_scope,omitempty"`
		Category  core.UnitCategory `json:"category"`
		UnitID    int               `json:"unit_id"`
		MonthKey  core.MonthKey     `json:"month_key"`
		Paid      bool              `json:"paid"`
		PaidDate  core.Date         `json:"paid_date"`
		Notes     string            `json:"notes,omitempty"`
	}

	ServiceRecord struct {
		UserScope string               `json:"user_scope,omitempty"`
		ID        string               `json:"id"`
		Category  core.ServiceCategory `json:"category"`
		Date      core.Date            `json:"date"`
		Cost      core.Money           `json:"cost"`
		Quantity  core.Quantity        `json:"quantity"`
		Notes     string               `json:"notes,omitempty"`
	}

	UnitKey struct {
		Category core.UnitCategory `json:"category"`
		UnitID   int               `json:"unit_id"`
	}

	PaymentKey struct {
		Category core.UnitCategory `json:"category"`
		UnitID   int               `json:"unit_id"`
		MonthKey core.MonthKey     `json:"month_key"`
	}
)

func (r UnitRecord) Key() UnitKey {
	return UnitKey{Category: r.Category, UnitID: r.UnitID}
}

func (r PaymentRecord) Key() PaymentKey {
	return PaymentKey{Category: r.Category, UnitID: r.UnitID, MonthKey: r.MonthKey}
}

func (k PaymentKey) Unit() UnitKey {
	return UnitKey{Category: k.Category, UnitID: k.UnitID}
}

// UnitRecordFrom projects a unit onto its remote row.
func UnitRecordFrom(u *core.Unit) UnitRecord {
	return UnitRecord{
		Category:     u.Category,
		UnitID:       u.ID,
		OccupantName: u.OccupantName,
		RentAmount:   u.MonthlyRent,
		Occupied:     u.Occupied,
	}
}

// PaymentRecordFrom projects one payment entry onto its remote row.
func PaymentRecordFrom(u *core.Unit, month core.MonthKey, p *core.Payment) PaymentRecord {
	r := PaymentRecord{Category: u.Category, UnitID: u.ID, MonthKey: month}
	if p != nil {
		r.Paid = p.Paid
		r.PaidDate = p.PaidDate
		r.Notes = p.Notes
	}
	return r
}

func ServiceRecordFrom(s core.ServiceExpense) ServiceRecord {
	return ServiceRecord{
		ID:       s.ID,
		Category: s.Category,
		Date:     s.Date,
		Cost:     s.Cost,
		Quantity: s.Quantity,
		Notes:    s.Notes,
	}
}

// ServiceRecordsFrom flattens every expense of the ledger in category order.
func ServiceRecordsFrom(l *core.Ledger) []ServiceRecord {
	all := l.AllServices()
	out := make([]ServiceRecord, 0, len(all))
	for _, s := range all {
		out = append(out, ServiceRecordFrom(s))
	}
	return out
}

// Expense converts a row back into a ledger expense.
func (r ServiceRecord) Expense() core.ServiceExpense {
	return core.ServiceExpense{
		ID:       r.ID,
		Category: r.Category,
		Date:     r.Date,
		Cost:     r.Cost,
		Quantity: r.Quantity,
		Notes:    r.Notes,
	}
}
