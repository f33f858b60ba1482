package summary

import "github.com/javieronasis1-eng/administracion-rentas/internal/core"

// ServiceMonth groups the dated expenses of one month by category.
// ByCategory always holds the four fixed buckets.
type ServiceMonth struct {
	Month       core.MonthKey                                  `json:"month"`
	DisplayName string                                         `json:"display_name"`
	ByCategory  map[core.ServiceCategory][]core.ServiceExpense `json:"by_category"`
	Total       core.Money                                     `json:"total"`
}

// ServiceTotals are the all-time sums over dated expenses.
type ServiceTotals struct {
	Water         core.Money `json:"water"`
	OtherServices core.Money `json:"other_services"`
	Grand         core.Money `json:"grand"`
}

// GroupServices partitions dated expenses by the month of their date, most
// recent month first. Undated expenses are skipped.
func GroupServices(l *core.Ledger) []ServiceMonth {
	byMonth := map[core.MonthKey]*ServiceMonth{}
	seen := map[core.MonthKey]struct{}{}
	for _, cat := range core.ServiceCategories() {
		for _, s := range l.Services[cat] {
			if !s.Dated() {
				continue
			}
			key := s.Date.MonthKey()
			m, ok := byMonth[key]
			if !ok {
				m = newServiceMonth(key)
				byMonth[key] = m
				seen[key] = struct{}{}
			}
			m.ByCategory[cat] = append(m.ByCategory[cat], s)
			m.Total = m.Total.Add(s.Cost)
		}
	}
	out := make([]ServiceMonth, 0, len(byMonth))
	for _, k := range sortedDesc(seen) {
		out = append(out, *byMonth[k])
	}
	return out
}

func newServiceMonth(key core.MonthKey) *ServiceMonth {
	m := &ServiceMonth{
		Month:       key,
		DisplayName: key.DisplayName(),
		ByCategory:  make(map[core.ServiceCategory][]core.ServiceExpense, 4),
	}
	for _, c := range core.ServiceCategories() {
		m.ByCategory[c] = []core.ServiceExpense{}
	}
	return m
}

// Totals sums dated water expenses, dated expenses of the other three
// categories, and both together.
func Totals(l *core.Ledger) ServiceTotals {
	var t ServiceTotals
	for _, cat := range core.ServiceCategories() {
		for _, s := range l.Services[cat] {
			if !s.Dated() {
				continue
			}
			if cat == core.Water {
				t.Water = t.Water.Add(s.Cost)
			} else {
				t.OtherServices = t.OtherServices.Add(s.Cost)
			}
		}
	}
	t.Grand = t.Water.Add(t.OtherServices)
	return t
}
