package core

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// SchemaVersion is the ledger layout written by this version.
// Blobs without a version field are version 0 and are upgraded in place.
const SchemaVersion = 1

const (
	DefaultUnitsPerCategory = 4
	DefaultRoomRent         = 1500
	DefaultApartmentRent    = 4500
)

// Ledger is the whole bookkeeping state. It is persisted locally as a single blob.
type Ledger struct {
	Version    int                                  `json:"version"`
	Rooms      []*Unit                              `json:"cuartos"`
	Apartments []*Unit                              `json:"departamentos"`
	Services   map[ServiceCategory][]ServiceExpense `json:"servicios"`
}

// DefaultLedger builds the bootstrap ledger: four rooms and four apartments,
// all occupied, with no payments and no services.
func DefaultLedger(roomRent, apartmentRent Money) *Ledger {
	l := &Ledger{
		Version:  SchemaVersion,
		Services: emptyServices(),
	}
	for i := 1; i <= DefaultUnitsPerCategory; i++ {
		l.Rooms = append(l.Rooms, defaultUnit(Rooms, i, roomRent))
		l.Apartments = append(l.Apartments, defaultUnit(Apartments, i, apartmentRent))
	}
	return l
}

func defaultUnit(cat UnitCategory, id int, rent Money) *Unit {
	return &Unit{
		ID:           id,
		Category:     cat,
		OccupantName: fmt.Sprintf("%s %d", cat.Label(), id),
		MonthlyRent:  rent,
		Occupied:     true,
		Payments:     map[MonthKey]*Payment{},
	}
}

func emptyServices() map[ServiceCategory][]ServiceExpense {
	m := make(map[ServiceCategory][]ServiceExpense, 4)
	for _, c := range ServiceCategories() {
		m[c] = []ServiceExpense{}
	}
	return m
}

// EnsureStructure normalizes a ledger loaded from any persisted version:
// nil payment maps become empty, nil payment entries are dropped, the four
// service buckets exist, categories are stamped on units and expenses, and
// expenses without an id get one. It is idempotent.
func EnsureStructure(l *Ledger) error {
	if l.Version > SchemaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedSchema, l.Version)
	}
	l.Version = SchemaVersion

	for _, cat := range UnitCategories() {
		units := l.units(cat)
		kept := units[:0]
		for _, u := range units {
			if u == nil {
				continue
			}
			u.Category = cat
			if u.Payments == nil {
				u.Payments = map[MonthKey]*Payment{}
			}
			for k, p := range u.Payments {
				if p == nil {
					delete(u.Payments, k)
					continue
				}
				if !p.Paid {
					p.PaidDate = Date{}
				}
			}
			kept = append(kept, u)
		}
		l.setUnits(cat, kept)
	}

	if l.Services == nil {
		l.Services = emptyServices()
	}
	for cat := range l.Services {
		if !cat.Valid() {
			delete(l.Services, cat)
		}
	}
	for _, cat := range ServiceCategories() {
		if l.Services[cat] == nil {
			l.Services[cat] = []ServiceExpense{}
		}
		for i := range l.Services[cat] {
			s := &l.Services[cat][i]
			s.Category = cat
			if s.ID == "" {
				s.ID = uuid.NewString()
			}
		}
	}
	return nil
}

func (l *Ledger) units(cat UnitCategory) []*Unit {
	if cat == Apartments {
		return l.Apartments
	}
	return l.Rooms
}

func (l *Ledger) setUnits(cat UnitCategory, units []*Unit) {
	if units == nil {
		units = []*Unit{}
	}
	if cat == Apartments {
		l.Apartments = units
		return
	}
	l.Rooms = units
}

// Units returns the units of one category in stored order.
func (l *Ledger) Units(cat UnitCategory) []*Unit {
	return l.units(cat)
}

// AllUnits returns rooms followed by apartments.
func (l *Ledger) AllUnits() []*Unit {
	all := make([]*Unit, 0, len(l.Rooms)+len(l.Apartments))
	all = append(all, l.Rooms...)
	return append(all, l.Apartments...)
}

// Unit looks a unit up by category and id.
func (l *Ledger) Unit(cat UnitCategory, id int) (*Unit, error) {
	if !cat.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnitCategory, cat)
	}
	for _, u := range l.units(cat) {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s #%d", ErrUnitNotFound, cat, id)
}

// AddUnit inserts a unit keeping its category sorted by id.
func (l *Ledger) AddUnit(u *Unit) {
	units := append(l.units(u.Category), u)
	sort.SliceStable(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	l.setUnits(u.Category, units)
}

// AllServices returns every expense, categories in fixed order, insertion order within.
func (l *Ledger) AllServices() []ServiceExpense {
	var out []ServiceExpense
	for _, c := range ServiceCategories() {
		out = append(out, l.Services[c]...)
	}
	return out
}

// Clone returns a deep copy safe to hand to readers.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{Version: l.Version}
	for _, cat := range UnitCategories() {
		src := l.units(cat)
		dst := make([]*Unit, 0, len(src))
		for _, u := range src {
			dst = append(dst, u.Clone())
		}
		c.setUnits(cat, dst)
	}
	if l.Services != nil {
		c.Services = make(map[ServiceCategory][]ServiceExpense, len(l.Services))
		for k, v := range l.Services {
			c.Services[k] = append([]ServiceExpense(nil), v...)
			if c.Services[k] == nil {
				c.Services[k] = []ServiceExpense{}
			}
		}
	}
	return c
}

// Encode serializes the ledger to its persisted blob form.
func Encode(l *Ledger) ([]byte, error) {
	return json.Marshal(l)
}

// Decode parses a persisted blob and normalizes it.
func Decode(b []byte) (*Ledger, error) {
	var l Ledger
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if err := EnsureStructure(&l); err != nil {
		return nil, err
	}
	return &l, nil
}
