package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/javieronasis1-eng/administracion-rentas/internal/amqp"
	"github.com/javieronasis1-eng/administracion-rentas/internal/cache"
	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/reconcile"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
	"github.com/javieronasis1-eng/administracion-rentas/internal/worker"
)

// LedgerService owns the in-memory ledger. Every mutation is written through
// to the local cache before it returns, then handed to the publisher for the
// remote store.
type LedgerService struct {
	mu        sync.RWMutex
	ledger    *core.Ledger
	cache     cache.Store
	publisher worker.Publisher
	now       func() time.Time
}

// NewLedgerService takes ownership of l. A nil publisher disables remote sync.
func NewLedgerService(l *core.Ledger, c cache.Store, p worker.Publisher) *LedgerService {
	return &LedgerService{
		ledger:    l,
		cache:     c,
		publisher: p,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for auto-dated payments.
func (s *LedgerService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Snapshot returns a deep copy. Units without a selected month get the
// current one.
func (s *LedgerService) Snapshot() *core.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.ledger.Clone()
	current := core.CurrentMonthKey(s.now())
	for _, u := range c.AllUnits() {
		if u.SelectedMonth.IsZero() {
			u.SelectedMonth = current
		}
	}
	return c
}

// Now returns the service clock.
func (s *LedgerService) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

// SyncStatus reports the publisher state when it exposes one.
func (s *LedgerService) SyncStatus() (worker.Status, bool) {
	sp, ok := s.publisher.(interface{ Status() worker.Status })
	if !ok {
		return worker.Status{Transport: "none"}, false
	}
	return sp.Status(), true
}

// mutate applies fn under the write lock. On any failure the ledger is
// restored, so a failed cache write never leaves memory ahead of disk.
func (s *LedgerService) mutate(ctx context.Context, op string, fn func(l *core.Ledger) (*amqp.SyncMessage, error)) (*worker.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.ledger.Clone()
	msg, err := fn(s.ledger)
	if err != nil {
		s.ledger = backup
		return nil, err
	}
	if err := s.cache.Save(ctx, s.ledger); err != nil {
		s.ledger = backup
		slog.ErrorContext(ctx, "Failed to save ledger",
			log.FieldComponent, log.ComponentLedger,
			log.FieldOperation, op,
			log.FieldError, err)
		return nil, fmt.Errorf("save ledger: %w", err)
	}

	// Publishing under the lock keeps queue order equal to mutation order.
	return s.publish(ctx, op, msg), nil
}

func (s *LedgerService) publish(ctx context.Context, op string, msg *amqp.SyncMessage) *worker.Ticket {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Remote sync disabled, skipping", log.FieldOperation, op)
		return worker.Completed(nil)
	}
	t := s.publisher.Publish(ctx, msg)
	if err := t.Err(); err != nil {
		// Local state is already saved; the next full push repairs the remote.
		slog.WarnContext(ctx, "Failed to publish sync message",
			log.FieldComponent, log.ComponentLedger,
			log.FieldOperation, op,
			log.FieldError, err)
	}
	return t
}

func (s *LedgerService) updateUnit(ctx context.Context, op string, cat core.UnitCategory, id int, fn func(u *core.Unit) error) (*worker.Ticket, error) {
	return s.mutate(ctx, op, func(l *core.Ledger) (*amqp.SyncMessage, error) {
		u, err := l.Unit(cat, id)
		if err != nil {
			return nil, err
		}
		if err := fn(u); err != nil {
			return nil, err
		}
		return amqp.NewUnitMessage(remote.UnitRecordFrom(u)), nil
	})
}

func (s *LedgerService) updatePayment(ctx context.Context, op string, cat core.UnitCategory, id int, month core.MonthKey, fn func(u *core.Unit, p *core.Payment) error) (*worker.Ticket, error) {
	if month.IsZero() {
		return nil, core.ErrInvalidMonthKey
	}
	return s.mutate(ctx, op, func(l *core.Ledger) (*amqp.SyncMessage, error) {
		u, err := l.Unit(cat, id)
		if err != nil {
			return nil, err
		}
		p := u.Payments[month]
		if p == nil {
			p = &core.Payment{}
			u.Payments[month] = p
		}
		if err := fn(u, p); err != nil {
			return nil, err
		}
		return amqp.NewPaymentMessage(remote.PaymentRecordFrom(u, month, p)), nil
	})
}

func (s *LedgerService) SetOccupied(ctx context.Context, cat core.UnitCategory, id int, occupied bool) (*worker.Ticket, error) {
	return s.updateUnit(ctx, "set_occupied", cat, id, func(u *core.Unit) error {
		u.Occupied = occupied
		return nil
	})
}

func (s *LedgerService) RenameOccupant(ctx context.Context, cat core.UnitCategory, id int, name string) (*worker.Ticket, error) {
	return s.updateUnit(ctx, "rename_occupant", cat, id, func(u *core.Unit) error {
		u.OccupantName = strings.TrimSpace(name)
		return nil
	})
}

func (s *LedgerService) SetRent(ctx context.Context, cat core.UnitCategory, id int, rent core.Money) (*worker.Ticket, error) {
	if rent.IsNegative() {
		return nil, fmt.Errorf("rent: %w", core.ErrInvalidAmount)
	}
	return s.updateUnit(ctx, "set_rent", cat, id, func(u *core.Unit) error {
		u.MonthlyRent = rent
		return nil
	})
}

// SetPaid marks a month paid or unpaid. A paid month keeps an existing
// date; a newly paid month is dated today; an unpaid month has no date.
func (s *LedgerService) SetPaid(ctx context.Context, cat core.UnitCategory, id int, month core.MonthKey, paid bool) (*worker.Ticket, error) {
	return s.updatePayment(ctx, "set_paid", cat, id, month, func(_ *core.Unit, p *core.Payment) error {
		p.Paid = paid
		switch {
		case !paid:
			p.PaidDate = core.Date{}
		case p.PaidDate.IsZero():
			p.PaidDate = core.Today(s.now())
		}
		return nil
	})
}

// SetPaidDate back-dates a paid month.
func (s *LedgerService) SetPaidDate(ctx context.Context, cat core.UnitCategory, id int, month core.MonthKey, date core.Date) (*worker.Ticket, error) {
	if date.IsZero() {
		return nil, core.ErrInvalidDate
	}
	return s.updatePayment(ctx, "set_paid_date", cat, id, month, func(_ *core.Unit, p *core.Payment) error {
		if !p.Paid {
			return fmt.Errorf("%w: %s", core.ErrPaymentNotPaid, month)
		}
		p.PaidDate = date
		return nil
	})
}

// SetPaymentNotes records notes for a month, creating an unpaid placeholder
// entry when none exists.
func (s *LedgerService) SetPaymentNotes(ctx context.Context, cat core.UnitCategory, id int, month core.MonthKey, notes string) (*worker.Ticket, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > core.MaxNotesLength {
		return nil, fmt.Errorf("%w (max %d characters)", core.ErrNotesTooLong, core.MaxNotesLength)
	}
	return s.updatePayment(ctx, "set_payment_notes", cat, id, month, func(_ *core.Unit, p *core.Payment) error {
		p.Notes = notes
		return nil
	})
}

func (s *LedgerService) DeletePaymentRecord(ctx context.Context, cat core.UnitCategory, id int, month core.MonthKey) (*worker.Ticket, error) {
	return s.mutate(ctx, "delete_payment", func(l *core.Ledger) (*amqp.SyncMessage, error) {
		u, err := l.Unit(cat, id)
		if err != nil {
			return nil, err
		}
		if _, ok := u.Payments[month]; !ok {
			return nil, fmt.Errorf("%w: %s #%d %s", core.ErrPaymentNotFound, cat, id, month)
		}
		delete(u.Payments, month)
		return amqp.NewPaymentDeleteMessage(remote.PaymentKey{Category: cat, UnitID: id, MonthKey: month}), nil
	})
}

// SelectMonth moves the view cursor of a unit. Nothing is persisted.
func (s *LedgerService) SelectMonth(cat core.UnitCategory, id int, month core.MonthKey) error {
	if month.IsZero() {
		return core.ErrInvalidMonthKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.ledger.Unit(cat, id)
	if err != nil {
		return err
	}
	u.SelectedMonth = month
	return nil
}

// AddServiceExpense appends e to its category and returns the stored copy.
func (s *LedgerService) AddServiceExpense(ctx context.Context, cat core.ServiceCategory, e core.ServiceExpense) (core.ServiceExpense, *worker.Ticket, error) {
	e.Category = cat
	e.Notes = strings.TrimSpace(e.Notes)
	if err := e.Validate(); err != nil {
		return core.ServiceExpense{}, nil, err
	}
	if e.Date.IsZero() {
		return core.ServiceExpense{}, nil, fmt.Errorf("%w: date is required", core.ErrInvalidDate)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	t, err := s.mutate(ctx, "add_service", func(l *core.Ledger) (*amqp.SyncMessage, error) {
		l.Services[cat] = append(l.Services[cat], e)
		return amqp.NewServicesMessage(remote.ServiceRecordsFrom(l)), nil
	})
	if err != nil {
		return core.ServiceExpense{}, nil, err
	}
	return e, t, nil
}

// DeleteServiceExpense removes the expense at position index of cat.
func (s *LedgerService) DeleteServiceExpense(ctx context.Context, cat core.ServiceCategory, index int) (*worker.Ticket, error) {
	if !cat.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidServiceCategory, cat)
	}
	return s.mutate(ctx, "delete_service", func(l *core.Ledger) (*amqp.SyncMessage, error) {
		list := l.Services[cat]
		if index < 0 || index >= len(list) {
			return nil, fmt.Errorf("%w: %s[%d]", core.ErrServiceNotFound, cat, index)
		}
		l.Services[cat] = append(list[:index:index], list[index+1:]...)
		return amqp.NewServicesMessage(remote.ServiceRecordsFrom(l)), nil
	})
}

// DeleteServiceExpenseByID removes an expense by its stable id.
func (s *LedgerService) DeleteServiceExpenseByID(ctx context.Context, id string) (*worker.Ticket, error) {
	return s.mutate(ctx, "delete_service", func(l *core.Ledger) (*amqp.SyncMessage, error) {
		for _, cat := range core.ServiceCategories() {
			for i, e := range l.Services[cat] {
				if e.ID == id {
					l.Services[cat] = append(l.Services[cat][:i:i], l.Services[cat][i+1:]...)
					return amqp.NewServicesMessage(remote.ServiceRecordsFrom(l)), nil
				}
			}
		}
		return nil, fmt.Errorf("%w: %s", core.ErrServiceNotFound, id)
	})
}

// PushAll republishes the whole ledger, e.g. after a period offline.
func (s *LedgerService) PushAll(ctx context.Context) (*worker.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publish(ctx, "push_all", amqp.NewFullMessage(reconcile.ToRecords(s.ledger))), nil
}
