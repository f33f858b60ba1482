package google

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

// Header rows written to row 1 of each tab.
var (
	unitsHeader    = []any{"user_scope", "category", "unit_id", "occupant_name", "rent_amount", "occupied"}
	paymentsHeader = []any{"user_scope", "category", "unit_id", "month_key", "paid", "paid_date", "notes"}
	servicesHeader = []any{"user_scope", "id", "category", "date", "cost", "quantity", "notes"}
)

func unitRow(r remote.UnitRecord) []any {
	return []any{r.UserScope, string(r.Category), r.UnitID, r.OccupantName, r.RentAmount.String(), r.Occupied}
}

func paymentRow(r remote.PaymentRecord) []any {
	return []any{r.UserScope, string(r.Category), r.UnitID, r.MonthKey.String(), r.Paid, r.PaidDate.String(), r.Notes}
}

func serviceRow(r remote.ServiceRecord) []any {
	return []any{r.UserScope, r.ID, string(r.Category), r.Date.String(), r.Cost.String(), r.Quantity.String(), r.Notes}
}

// parseUnits converts a values matrix into unit rows. The header row and
// rows that do not parse are skipped.
func parseUnits(values [][]any) ([]remote.UnitRecord, error) {
	var out []remote.UnitRecord
	for i, raw := range values {
		row := toStrings(raw)
		if isHeaderOrBlank(row) {
			continue
		}
		cat, err := core.ParseUnitCategory(safeGet(row, 1))
		if err != nil {
			return nil, fmt.Errorf("units row %d: %w", i+1, err)
		}
		id, err := strconv.Atoi(safeGet(row, 2))
		if err != nil {
			return nil, fmt.Errorf("units row %d: invalid unit_id %q", i+1, safeGet(row, 2))
		}
		rent, err := parseAmount(safeGet(row, 4))
		if err != nil {
			return nil, fmt.Errorf("units row %d: rent: %w", i+1, err)
		}
		out = append(out, remote.UnitRecord{
			UserScope:    safeGet(row, 0),
			Category:     cat,
			UnitID:       id,
			OccupantName: safeGet(row, 3),
			RentAmount:   rent,
			Occupied:     parseBool(safeGet(row, 5), true),
		})
	}
	return out, nil
}

func parsePayments(values [][]any) ([]remote.PaymentRecord, error) {
	var out []remote.PaymentRecord
	for i, raw := range values {
		row := toStrings(raw)
		if isHeaderOrBlank(row) {
			continue
		}
		cat, err := core.ParseUnitCategory(safeGet(row, 1))
		if err != nil {
			return nil, fmt.Errorf("payments row %d: %w", i+1, err)
		}
		id, err := strconv.Atoi(safeGet(row, 2))
		if err != nil {
			return nil, fmt.Errorf("payments row %d: invalid unit_id %q", i+1, safeGet(row, 2))
		}
		month, err := core.ParseMonthKey(safeGet(row, 3))
		if err != nil {
			return nil, fmt.Errorf("payments row %d: %w", i+1, err)
		}
		date, err := core.ParseDate(safeGet(row, 5))
		if err != nil {
			return nil, fmt.Errorf("payments row %d: %w", i+1, err)
		}
		out = append(out, remote.PaymentRecord{
			UserScope: safeGet(row, 0),
			Category:  cat,
			UnitID:    id,
			MonthKey:  month,
			Paid:      parseBool(safeGet(row, 4), false),
			PaidDate:  date,
			Notes:     safeGet(row, 6),
		})
	}
	return out, nil
}

func parseServices(values [][]any) ([]remote.ServiceRecord, error) {
	var out []remote.ServiceRecord
	for i, raw := range values {
		row := toStrings(raw)
		if isHeaderOrBlank(row) {
			continue
		}
		cat, err := core.ParseServiceCategory(safeGet(row, 2))
		if err != nil {
			return nil, fmt.Errorf("services row %d: %w", i+1, err)
		}
		date, err := core.ParseDate(safeGet(row, 3))
		if err != nil {
			return nil, fmt.Errorf("services row %d: %w", i+1, err)
		}
		cost, err := parseAmount(safeGet(row, 4))
		if err != nil {
			return nil, fmt.Errorf("services row %d: cost: %w", i+1, err)
		}
		rec := remote.ServiceRecord{
			UserScope: safeGet(row, 0),
			ID:        safeGet(row, 1),
			Category:  cat,
			Date:      date,
			Cost:      cost,
			Notes:     safeGet(row, 6),
		}
		if q := safeGet(row, 5); q != "" {
			d, err := decimal.NewFromString(strings.ReplaceAll(q, ",", ""))
			if err != nil {
				return nil, fmt.Errorf("services row %d: quantity %q", i+1, q)
			}
			rec.Quantity = core.NewQuantity(d)
		}
		out = append(out, rec)
	}
	return out, nil
}

// findRow returns the 1-based sheet row whose key columns match, or -1.
func findRow(values [][]any, match func(row []string) bool) int {
	for i, raw := range values {
		row := toStrings(raw)
		if isHeaderOrBlank(row) {
			continue
		}
		if match(row) {
			return i + 1
		}
	}
	return -1
}

func unitMatcher(cat core.UnitCategory, id int) func([]string) bool {
	idStr := strconv.Itoa(id)
	return func(row []string) bool {
		return safeGet(row, 0) == "" && safeGet(row, 1) == string(cat) && safeGet(row, 2) == idStr
	}
}

func paymentMatcher(k remote.PaymentKey) func([]string) bool {
	unit := unitMatcher(k.Category, k.UnitID)
	month := k.MonthKey.String()
	return func(row []string) bool {
		return unit(row) && safeGet(row, 3) == month
	}
}

func isHeaderOrBlank(row []string) bool {
	if len(row) == 0 {
		return true
	}
	blank := true
	for _, v := range row {
		if v != "" {
			blank = false
			break
		}
	}
	return blank || strings.EqualFold(safeGet(row, 1), "category") || strings.EqualFold(safeGet(row, 1), "id")
}

func parseAmount(s string) (core.Money, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return core.Money{}, nil
	}
	// Sheets may render thousands separators in formatted values.
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, s)
	}
	return core.MoneyFromDecimal(d), nil
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return def
	}
	return b
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
