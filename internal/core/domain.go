package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxNotesLength bounds free-text notes on payments and expenses.
const MaxNotesLength = 500

const (
	Rooms      UnitCategory = "cuartos"
	Apartments UnitCategory = "departamentos"
)

const (
	Water       ServiceCategory = "agua"
	Electricity ServiceCategory = "luz"
	Internet    ServiceCategory = "internet"
	Other       ServiceCategory = "otros"
)

type (
	UnitCategory    string
	ServiceCategory string

	// Payment is the rent status of one unit for one month.
	Payment struct {
		Paid     bool   `json:"pagado"`
		PaidDate Date   `json:"fecha"`
		Notes    string `json:"notas"`
	}

	// Unit is a rentable room or apartment.
	Unit struct {
		ID           int                   `json:"id"`
		Category     UnitCategory          `json:"-"`
		OccupantName string                `json:"inquilino"`
		MonthlyRent  Money                 `json:"renta"`
		Occupied     bool                  `json:"ocupado"`
		Payments     map[MonthKey]*Payment `json:"pagos"`

		// SelectedMonth is the view cursor. It is never persisted.
		SelectedMonth MonthKey `json:"-"`
	}

	// ServiceExpense is one utility bill.
	ServiceExpense struct {
		ID       string          `json:"id,omitempty"`
		Category ServiceCategory `json:"-"`
		Date     Date            `json:"fecha"`
		Cost     Money           `json:"costo"`
		Quantity Quantity        `json:"cantidad"`
		Notes    string          `json:"notas,omitempty"`
	}
)

var (
	ErrInvalidMonthKey        = errors.New("invalid month key")
	ErrInvalidDate            = errors.New("invalid date")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidUnitCategory    = errors.New("invalid unit category")
	ErrInvalidServiceCategory = errors.New("invalid service category")
	ErrInvalidUnitID          = errors.New("invalid unit id")
	ErrUnitNotFound           = errors.New("unit not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrPaymentNotPaid         = errors.New("payment is not marked as paid")
	ErrServiceNotFound        = errors.New("service expense not found")
	ErrNotesTooLong           = errors.New("notes too long")
	ErrUnsupportedSchema      = errors.New("unsupported ledger schema version")
)

// UnitCategories returns the unit categories in display order.
func UnitCategories() []UnitCategory {
	return []UnitCategory{Rooms, Apartments}
}

// ParseUnitCategory accepts the persisted names as well as "room"/"apartment".
func ParseUnitCategory(s string) (UnitCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cuartos", "cuarto", "room", "rooms":
		return Rooms, nil
	case "departamentos", "departamento", "apartment", "apartments":
		return Apartments, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidUnitCategory, s)
}

func (c UnitCategory) Valid() bool {
	return c == Rooms || c == Apartments
}

// Label is the singular display name used for default occupant names.
func (c UnitCategory) Label() string {
	if c == Apartments {
		return "Departamento"
	}
	return "Cuarto"
}

// ServiceCategories returns the four fixed service buckets in display order.
func ServiceCategories() []ServiceCategory {
	return []ServiceCategory{Water, Electricity, Internet, Other}
}

func ParseServiceCategory(s string) (ServiceCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agua", "water":
		return Water, nil
	case "luz", "electricity":
		return Electricity, nil
	case "internet":
		return Internet, nil
	case "otros", "other":
		return Other, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidServiceCategory, s)
}

func (c ServiceCategory) Valid() bool {
	switch c {
	case Water, Electricity, Internet, Other:
		return true
	}
	return false
}

// Label returns the display name of the category.
func (c ServiceCategory) Label() string {
	switch c {
	case Water:
		return "Agua"
	case Electricity:
		return "Luz"
	case Internet:
		return "Internet"
	case Other:
		return "Otros"
	}
	return string(c)
}

// UnmarshalJSON defaults a missing "ocupado" to true, matching blobs written
// before occupancy was tracked.
func (u *Unit) UnmarshalJSON(b []byte) error {
	type alias Unit
	aux := struct {
		*alias
		Occupied *bool `json:"ocupado"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	u.Occupied = aux.Occupied == nil || *aux.Occupied
	return nil
}

func (u *Unit) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUnitID, u.ID)
	}
	if !u.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidUnitCategory, u.Category)
	}
	if u.MonthlyRent.IsNegative() {
		return fmt.Errorf("rent: %w", ErrInvalidAmount)
	}
	return nil
}

// Payment returns the entry for month, or nil when none exists.
func (u *Unit) Payment(month MonthKey) *Payment {
	if u.Payments == nil {
		return nil
	}
	return u.Payments[month]
}

// IsPaid reports whether the unit has a paid entry for month.
func (u *Unit) IsPaid(month MonthKey) bool {
	p := u.Payment(month)
	return p != nil && p.Paid
}

// Clone returns a deep copy of the unit.
func (u *Unit) Clone() *Unit {
	c := *u
	if u.Payments != nil {
		c.Payments = make(map[MonthKey]*Payment, len(u.Payments))
		for k, p := range u.Payments {
			if p == nil {
				continue
			}
			cp := *p
			c.Payments[k] = &cp
		}
	}
	return &c
}

func (p Payment) Validate() error {
	if !p.Paid && !p.PaidDate.IsZero() {
		return fmt.Errorf("%w: date set on unpaid month", ErrInvalidDate)
	}
	return nil
}

func (s ServiceExpense) Validate() error {
	if !s.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidServiceCategory, s.Category)
	}
	if s.Cost.IsNegative() {
		return fmt.Errorf("cost: %w", ErrInvalidAmount)
	}
	if s.Quantity.Valid && s.Quantity.Amount.IsNegative() {
		return fmt.Errorf("quantity: %w", ErrInvalidAmount)
	}
	if len(s.Notes) > MaxNotesLength {
		return fmt.Errorf("%w (max %d characters)", ErrNotesTooLong, MaxNotesLength)
	}
	return nil
}

// Dated reports whether the expense participates in aggregation.
func (s ServiceExpense) Dated() bool {
	return !s.Date.IsZero()
}
