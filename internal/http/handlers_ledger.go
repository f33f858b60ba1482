package http

import (
	"net/http"

	"github.com/javieronasis1-eng/administracion-rentas/internal/summary"
)

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(newLedgerView(s.ledger.Snapshot())).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(summary.BuildDashboard(s.ledger.Snapshot(), s.now())).Write(w)
}

func (s *Server) handleCurrentSummary(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthQuery(r.URL.Query(), s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Body(summary.CurrentMonth(s.ledger.Snapshot(), month)).Write(w)
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"months": summary.RevenueHistory(s.ledger.Snapshot()),
	}).Write(w)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"months": summary.GroupServices(s.ledger.Snapshot()),
	}).Write(w)
}

func (s *Server) handleServiceTotals(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(summary.Totals(s.ledger.Snapshot())).Write(w)
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request) {
	ref, err := ParseUnitRef(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	u, err := s.ledger.Snapshot().Unit(ref.Category, ref.ID)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Body(newUnitView(u)).Write(w)
}

func (s *Server) handleUnitHistory(w http.ResponseWriter, r *http.Request) {
	ref, err := ParseUnitRef(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	u, err := s.ledger.Snapshot().Unit(ref.Category, ref.ID)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Body(summary.History(u)).Write(w)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, enabled := s.ledger.SyncStatus()
	NewJSONResponse().Body(map[string]any{
		"enabled":    enabled,
		"sync":       status,
		"requests":   s.tracer.GetMetrics(),
		"rate_limit": s.limiter.GetMetrics(),
	}).Write(w)
}
