package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/worker"
)

type (
	occupiedRequest struct {
		Occupied *bool `json:"occupied"`
	}
	occupantRequest struct {
		Name *string `json:"name"`
	}
	rentRequest struct {
		Rent *core.Money `json:"rent"`
	}
	paidRequest struct {
		Paid *bool `json:"paid"`
	}
	dateRequest struct {
		Date core.Date `json:"date"`
	}
	notesRequest struct {
		Notes string `json:"notes"`
	}
	monthRequest struct {
		Month core.MonthKey `json:"month"`
	}
)

// writeDecodeError answers a body that failed DecodeJSON or lacks a field.
func writeDecodeError(w http.ResponseWriter, err error) {
	if resp := ErrorFor(err); resp.statusCode == http.StatusUnprocessableEntity {
		resp.Write(w)
		return
	}
	if errors.Is(err, errMalformedBody) {
		BadRequestError(err.Error()).Write(w)
		return
	}
	UnprocessableEntityError(err.Error()).Write(w)
}

var errMissingField = errors.New("missing required field")

// unitMutation runs op against the unit addressed by the route and answers
// with the updated unit and the sync state of its remote write.
func (s *Server) unitMutation(w http.ResponseWriter, r *http.Request, operation string, op func(ctx context.Context, ref UnitRef) (*worker.Ticket, error)) {
	ref, err := ParseUnitRef(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	ctx := r.Context()
	ticket, err := op(ctx, ref)
	if err != nil {
		s.logMutationError(ctx, operation, err)
		ErrorFor(err).Write(w)
		return
	}

	month := ""
	if m, err := ParseMonthParam(r, "month"); err == nil {
		month = m.String()
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogMutation(ctx, operation, string(ref.Category), ref.ID, month)

	s.waitIfAsked(r, ticket)
	u, err := s.ledger.Snapshot().Unit(ref.Category, ref.ID)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	view := newUnitView(u)
	NewJSONResponse().Body(mutationResponse{Unit: &view, Sync: newSyncView(ticket)}).Write(w)
}

// waitIfAsked blocks on the ticket for ?wait=true, bounded by syncWait.
func (s *Server) waitIfAsked(r *http.Request, t *worker.Ticket) {
	if t == nil || !ParseBoolQuery(r.URL.Query(), "wait") {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.syncWait)
	defer cancel()
	_ = t.Wait(ctx)
}

func (s *Server) logMutationError(ctx context.Context, operation string, err error) {
	fields := log.NewFields()
	switch status := ErrorFor(err).statusCode; {
	case status >= http.StatusInternalServerError:
		fields[log.FieldErrorType] = log.ErrorTypeInternal
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Ledger mutation failed", err, log.ComponentLedger, operation, fields)
		return
	case status == http.StatusNotFound:
		fields[log.FieldErrorType] = log.ErrorTypeNotFound
	default:
		fields[log.FieldErrorType] = log.ErrorTypeValidation
	}
	log.FromContext(ctx).DebugContext(ctx, "Ledger mutation refused", fields.WithError(err).WithOperation(operation).ToSlice()...)
}

func (s *Server) handleSetOccupied(w http.ResponseWriter, r *http.Request) {
	var req occupiedRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Occupied == nil {
		writeDecodeError(w, errMissingField)
		return
	}
	s.unitMutation(w, r, "set_occupied", func(ctx context.Context, ref UnitRef) (*worker.Ticket, error) {
		return s.ledger.SetOccupied(ctx, ref.Category, ref.ID, *req.Occupied)
	})
}

func (s *Server) handleRenameOccupant(w http.ResponseWriter, r *http.Request) {
	var req occupantRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Name == nil {
		writeDecodeError(w, errMissingField)
		return
	}
	name := sanitizeInput(*req.Name)
	s.unitMutation(w, r, "rename_occupant", func(ctx context.Context, ref UnitRef) (*worker.Ticket, error) {
		return s.ledger.RenameOccupant(ctx, ref.Category, ref.ID, name)
	})
}

func (s *Server) handleSetRent(w http.ResponseWriter, r *http.Request) {
	var req rentRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Rent == nil {
		writeDecodeError(w, errMissingField)
		return
	}
	s.unitMutation(w, r, "set_rent", func(ctx context.Context, ref UnitRef) (*worker.Ticket, error) {
		return s.ledger.SetRent(ctx, ref.Category, ref.ID, *req.Rent)
	})
}

func (s *Server) handleSelectMonth(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	s.unitMutation(w, r, "select_month", func(_ context.Context, ref UnitRef) (*worker.Ticket, error) {
		return nil, s.ledger.SelectMonth(ref.Category, ref.ID, req.Month)
	})
}

// paymentMutation parses {month} before running op.
func (s *Server) paymentMutation(w http.ResponseWriter, r *http.Request, operation string, op func(ctx context.Context, ref UnitRef, month core.MonthKey) (*worker.Ticket, error)) {
	month, err := ParseMonthParam(r, "month")
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.unitMutation(w, r, operation, func(ctx context.Context, ref UnitRef) (*worker.Ticket, error) {
		return op(ctx, ref, month)
	})
}

func (s *Server) handleSetPaid(w http.ResponseWriter, r *http.Request) {
	var req paidRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Paid == nil {
		writeDecodeError(w, errMissingField)
		return
	}
	s.paymentMutation(w, r, "set_paid", func(ctx context.Context, ref UnitRef, month core.MonthKey) (*worker.Ticket, error) {
		return s.ledger.SetPaid(ctx, ref.Category, ref.ID, month, *req.Paid)
	})
}

func (s *Server) handleSetPaidDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	s.paymentMutation(w, r, "set_paid_date", func(ctx context.Context, ref UnitRef, month core.MonthKey) (*worker.Ticket, error) {
		return s.ledger.SetPaidDate(ctx, ref.Category, ref.ID, month, req.Date)
	})
}

func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	notes := sanitizeInput(req.Notes)
	s.paymentMutation(w, r, "set_payment_notes", func(ctx context.Context, ref UnitRef, month core.MonthKey) (*worker.Ticket, error) {
		return s.ledger.SetPaymentNotes(ctx, ref.Category, ref.ID, month, notes)
	})
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	s.paymentMutation(w, r, "delete_payment", func(ctx context.Context, ref UnitRef, month core.MonthKey) (*worker.Ticket, error) {
		return s.ledger.DeletePaymentRecord(ctx, ref.Category, ref.ID, month)
	})
}
