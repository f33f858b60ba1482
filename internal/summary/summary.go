// Package summary derives read-only aggregates from a ledger.
//
// Every function here is pure: it reads the ledger it is given and never
// mutates it. Historical months use each unit's current rent and current
// occupancy because the ledger does not record how either changed over time.
package summary

import (
	"sort"
	"time"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
)

// MonthSummary is the rent collection status of one month.
type MonthSummary struct {
	Month       core.MonthKey `json:"month"`
	DisplayName string        `json:"display_name"`
	Expected    core.Money    `json:"expected"`
	Collected   core.Money    `json:"collected"`
	Pending     core.Money    `json:"pending"`
	Percentage  int64         `json:"percentage"`
	Progress    int64         `json:"progress"`
}

// Complete reports whether the month reached its collection target.
func (m MonthSummary) Complete() bool {
	return m.Percentage >= 100
}

// CurrentMonth computes expected, collected and pending rent for month.
// Expected counts occupied units; collected counts units marked paid for the
// month whether or not they are occupied now.
func CurrentMonth(l *core.Ledger, month core.MonthKey) MonthSummary {
	s := MonthSummary{Month: month, DisplayName: month.DisplayName()}
	for _, u := range l.AllUnits() {
		if u.Occupied {
			s.Expected = s.Expected.Add(u.MonthlyRent)
		}
		if u.IsPaid(month) {
			s.Collected = s.Collected.Add(u.MonthlyRent)
		}
	}
	s.Pending = s.Expected.Sub(s.Collected)
	s.Percentage = s.Collected.Percent(s.Expected)
	s.Progress = clampProgress(s.Percentage)
	return s
}

// RevenueHistory summarizes every month that appears in any unit's payments,
// most recent first.
func RevenueHistory(l *core.Ledger) []MonthSummary {
	months := PaymentMonths(l)
	out := make([]MonthSummary, 0, len(months))
	for _, m := range months {
		out = append(out, CurrentMonth(l, m))
	}
	return out
}

// PaymentMonths returns the distinct month keys with payment entries, descending.
func PaymentMonths(l *core.Ledger) []core.MonthKey {
	seen := map[core.MonthKey]struct{}{}
	for _, u := range l.AllUnits() {
		for k := range u.Payments {
			seen[k] = struct{}{}
		}
	}
	return sortedDesc(seen)
}

func sortedDesc(set map[core.MonthKey]struct{}) []core.MonthKey {
	keys := make([]core.MonthKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[j].Before(keys[i]) })
	return keys
}

func clampProgress(p int64) int64 {
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// Dashboard bundles every aggregate the overview screen needs.
type Dashboard struct {
	Current  MonthSummary   `json:"current"`
	Revenue  []MonthSummary `json:"revenue"`
	Services []ServiceMonth `json:"services"`
	Totals   ServiceTotals  `json:"totals"`
}

// BuildDashboard computes all aggregates relative to now.
func BuildDashboard(l *core.Ledger, now time.Time) Dashboard {
	return Dashboard{
		Current:  CurrentMonth(l, core.CurrentMonthKey(now)),
		Revenue:  RevenueHistory(l),
		Services: GroupServices(l),
		Totals:   Totals(l),
	}
}
