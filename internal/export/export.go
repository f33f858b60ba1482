// Package export writes ledger data and its aggregates as CSV, YAML or JSON
// for spreadsheets and backups.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/summary"
)

type (
	Format  string
	Dataset string
)

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

const (
	DatasetPayments Dataset = "payments"
	DatasetUnits    Dataset = "units"
	DatasetServices Dataset = "services"
	DatasetRevenue  Dataset = "revenue"
)

var (
	ErrUnknownFormat  = errors.New("unknown export format")
	ErrUnknownDataset = errors.New("unknown export dataset")
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatYAML, FormatJSON:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func ParseDataset(s string) (Dataset, error) {
	switch d := Dataset(strings.ToLower(strings.TrimSpace(s))); d {
	case DatasetPayments, DatasetUnits, DatasetServices, DatasetRevenue:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDataset, s)
}

// Datasets lists every dataset in a stable order.
func Datasets() []Dataset {
	return []Dataset{DatasetUnits, DatasetPayments, DatasetServices, DatasetRevenue}
}

type (
	// PaymentRow is one month of one unit.
	PaymentRow struct {
		Category core.UnitCategory `csv:"category" yaml:"category" json:"category"`
		UnitID   int               `csv:"unit_id" yaml:"unit_id" json:"unit_id"`
		Occupant string            `csv:"occupant" yaml:"occupant" json:"occupant"`
		Month    core.MonthKey     `csv:"month" yaml:"month" json:"month"`
		Paid     bool              `csv:"paid" yaml:"paid" json:"paid"`
		PaidDate core.Date         `csv:"paid_date" yaml:"paid_date" json:"paid_date"`
		Amount   core.Money        `csv:"amount" yaml:"amount" json:"amount"`
		Notes    string            `csv:"notes" yaml:"notes,omitempty" json:"notes,omitempty"`
	}

	UnitRow struct {
		Category      core.UnitCategory `csv:"category" yaml:"category" json:"category"`
		UnitID        int               `csv:"unit_id" yaml:"unit_id" json:"unit_id"`
		Occupant      string            `csv:"occupant" yaml:"occupant" json:"occupant"`
		MonthlyRent   core.Money        `csv:"monthly_rent" yaml:"monthly_rent" json:"monthly_rent"`
		Occupied      bool              `csv:"occupied" yaml:"occupied" json:"occupied"`
		PaidMonths    int               `csv:"paid_months" yaml:"paid_months" json:"paid_months"`
		PendingMonths int               `csv:"pending_months" yaml:"pending_months" json:"pending_months"`
	}

	ServiceRow struct {
		ID       string               `csv:"id" yaml:"id" json:"id"`
		Category core.ServiceCategory `csv:"category" yaml:"category" json:"category"`
		Date     core.Date            `csv:"date" yaml:"date" json:"date"`
		Cost     core.Money           `csv:"cost" yaml:"cost" json:"cost"`
		Quantity core.Quantity        `csv:"quantity" yaml:"quantity" json:"quantity"`
		Notes    string               `csv:"notes" yaml:"notes,omitempty" json:"notes,omitempty"`
	}

	RevenueRow struct {
		Month       core.MonthKey `csv:"month" yaml:"month" json:"month"`
		DisplayName string        `csv:"display_name" yaml:"display_name" json:"display_name"`
		Expected    core.Money    `csv:"expected" yaml:"expected" json:"expected"`
		Collected   core.Money    `csv:"collected" yaml:"collected" json:"collected"`
		Pending     core.Money    `csv:"pending" yaml:"pending" json:"pending"`
		Percentage  int64         `csv:"percentage" yaml:"percentage" json:"percentage"`
	}
)

// PaymentRows lists every payment entry, units in ledger order and months
// ascending. Amount is the unit's current rent for paid months.
func PaymentRows(l *core.Ledger) []PaymentRow {
	var rows []PaymentRow
	for _, u := range l.AllUnits() {
		months := make([]core.MonthKey, 0, len(u.Payments))
		for m := range u.Payments {
			months = append(months, m)
		}
		sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
		for _, m := range months {
			p := u.Payments[m]
			row := PaymentRow{
				Category: u.Category,
				UnitID:   u.ID,
				Occupant: u.OccupantName,
				Month:    m,
				Paid:     p.Paid,
				PaidDate: p.PaidDate,
				Notes:    p.Notes,
			}
			if p.Paid {
				row.Amount = u.MonthlyRent
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func UnitRows(l *core.Ledger) []UnitRow {
	rows := make([]UnitRow, 0, len(l.Rooms)+len(l.Apartments))
	for _, u := range l.AllUnits() {
		h := summary.History(u)
		rows = append(rows, UnitRow{
			Category:      u.Category,
			UnitID:        u.ID,
			Occupant:      u.OccupantName,
			MonthlyRent:   u.MonthlyRent,
			Occupied:      u.Occupied,
			PaidMonths:    h.PaidCount,
			PendingMonths: h.PendingCount,
		})
	}
	return rows
}

// ServiceRows lists every expense, undated ones included, by category.
func ServiceRows(l *core.Ledger) []ServiceRow {
	var rows []ServiceRow
	for _, cat := range core.ServiceCategories() {
		for _, e := range l.Services[cat] {
			rows = append(rows, ServiceRow{
				ID:       e.ID,
				Category: cat,
				Date:     e.Date,
				Cost:     e.Cost,
				Quantity: e.Quantity,
				Notes:    e.Notes,
			})
		}
	}
	return rows
}

func RevenueRows(l *core.Ledger) []RevenueRow {
	history := summary.RevenueHistory(l)
	rows := make([]RevenueRow, 0, len(history))
	for _, m := range history {
		rows = append(rows, RevenueRow{
			Month:       m.Month,
			DisplayName: m.DisplayName,
			Expected:    m.Expected,
			Collected:   m.Collected,
			Pending:     m.Pending,
			Percentage:  m.Percentage,
		})
	}
	return rows
}

// Write renders dataset of l to w in format.
func Write(ctx context.Context, w io.Writer, l *core.Ledger, dataset Dataset, format Format) error {
	var (
		rows  any
		count int
	)
	switch dataset {
	case DatasetPayments:
		r := PaymentRows(l)
		rows, count = r, len(r)
	case DatasetUnits:
		r := UnitRows(l)
		rows, count = r, len(r)
	case DatasetServices:
		r := ServiceRows(l)
		rows, count = r, len(r)
	case DatasetRevenue:
		r := RevenueRows(l)
		rows, count = r, len(r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}

	if err := encode(w, rows, format); err != nil {
		slog.ErrorContext(ctx, "Export failed",
			log.FieldComponent, log.ComponentExport,
			log.FieldOperation, log.OpExport,
			"dataset", dataset,
			"format", format,
			log.FieldError, err)
		return fmt.Errorf("export %s as %s: %w", dataset, format, err)
	}

	slog.DebugContext(ctx, "Export written",
		log.FieldComponent, log.ComponentExport,
		"dataset", dataset,
		"format", format,
		"rows", count)
	return nil
}

func encode(w io.Writer, rows any, format Format) error {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
