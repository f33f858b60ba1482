package summary

import (
	"sort"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
)

type (
	// HistoryEntry is one month of a unit's payment history.
	// Amount is the unit's current rent and is only set for paid months.
	HistoryEntry struct {
		Month       core.MonthKey `json:"month"`
		DisplayName string        `json:"display_name"`
		Paid        bool          `json:"paid"`
		PaidDate    core.Date     `json:"paid_date"`
		Amount      *core.Money   `json:"amount,omitempty"`
		Notes       string        `json:"notes,omitempty"`
	}

	UnitHistory struct {
		Category     core.UnitCategory `json:"category"`
		UnitID       int               `json:"unit_id"`
		OccupantName string            `json:"occupant_name"`
		Entries      []HistoryEntry    `json:"entries"`
		PaidCount    int               `json:"paid_count"`
		PendingCount int               `json:"pending_count"`
		TotalMonths  int               `json:"total_months"`
	}
)

// History lists a unit's payment entries most recent first, with counts.
func History(u *core.Unit) UnitHistory {
	h := UnitHistory{
		Category:     u.Category,
		UnitID:       u.ID,
		OccupantName: u.OccupantName,
		Entries:      make([]HistoryEntry, 0, len(u.Payments)),
	}
	months := make([]core.MonthKey, 0, len(u.Payments))
	for k := range u.Payments {
		months = append(months, k)
	}
	sort.Slice(months, func(i, j int) bool { return months[j].Before(months[i]) })

	for _, k := range months {
		p := u.Payments[k]
		e := HistoryEntry{
			Month:       k,
			DisplayName: k.DisplayName(),
			Paid:        p.Paid,
			PaidDate:    p.PaidDate,
			Notes:       p.Notes,
		}
		if p.Paid {
			rent := u.MonthlyRent
			e.Amount = &rent
			h.PaidCount++
		} else {
			h.PendingCount++
		}
		h.Entries = append(h.Entries, e)
	}
	h.TotalMonths = len(h.Entries)
	return h
}
