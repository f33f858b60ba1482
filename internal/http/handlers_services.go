package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
)

type serviceRequest struct {
	Date     core.Date     `json:"date"`
	Cost     core.Money    `json:"cost"`
	Quantity core.Quantity `json:"quantity"`
	Notes    string        `json:"notes"`
}

func (s *Server) handleAddService(w http.ResponseWriter, r *http.Request) {
	cat, err := core.ParseServiceCategory(chi.URLParam(r, "category"))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	var req serviceRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	ctx := r.Context()
	stored, ticket, err := s.ledger.AddServiceExpense(ctx, cat, core.ServiceExpense{
		Date:     req.Date,
		Cost:     req.Cost,
		Quantity: req.Quantity,
		Notes:    sanitizeInput(req.Notes),
	})
	if err != nil {
		s.logMutationError(ctx, "add_service", err)
		ErrorFor(err).Write(w)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Service expense added",
		log.FieldCategory, string(cat),
		"service_id", stored.ID)

	s.waitIfAsked(r, ticket)
	view := newServiceView(stored, s.serviceIndex(cat, stored.ID))
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(mutationResponse{Service: &view, Sync: newSyncView(ticket)}).
		Write(w)
}

// serviceIndex finds the current position of id, or -1.
func (s *Server) serviceIndex(cat core.ServiceCategory, id string) int {
	for i, e := range s.ledger.Snapshot().Services[cat] {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	cat, err := core.ParseServiceCategory(chi.URLParam(r, "category"))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		UnprocessableEntityError("index must be an integer").Write(w)
		return
	}

	ctx := r.Context()
	ticket, err := s.ledger.DeleteServiceExpense(ctx, cat, index)
	if err != nil {
		s.logMutationError(ctx, "delete_service", err)
		ErrorFor(err).Write(w)
		return
	}
	s.waitIfAsked(r, ticket)
	NewJSONResponse().Body(mutationResponse{Sync: newSyncView(ticket)}).Write(w)
}

func (s *Server) handleDeleteServiceByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticket, err := s.ledger.DeleteServiceExpenseByID(ctx, chi.URLParam(r, "serviceID"))
	if err != nil {
		s.logMutationError(ctx, "delete_service", err)
		ErrorFor(err).Write(w)
		return
	}
	s.waitIfAsked(r, ticket)
	NewJSONResponse().Body(mutationResponse{Sync: newSyncView(ticket)}).Write(w)
}

// handlePushAll republishes the whole ledger to the remote store.
func (s *Server) handlePushAll(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.ledger.PushAll(r.Context())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.waitIfAsked(r, ticket)
	NewJSONResponse().Status(http.StatusAccepted).Body(mutationResponse{Sync: newSyncView(ticket)}).Write(w)
}
