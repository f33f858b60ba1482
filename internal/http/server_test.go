package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/javieronasis1-eng/administracion-rentas/internal/cache"
	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote/memory"
	"github.com/javieronasis1-eng/administracion-rentas/internal/services"
	"github.com/javieronasis1-eng/administracion-rentas/internal/worker"
)

var fixedNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv    *Server
	remote *memory.Store
	ledger *services.LedgerService
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	rs := memory.New()
	q := worker.NewQueue(worker.NewSyncWorker(rs, 0), worker.QueueConfig{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	if err := q.Start(ctx); err != nil {
		t.Fatalf("start queue: %v", err)
	}
	t.Cleanup(func() {
		_ = q.Stop(context.Background())
		cancel()
	})

	l := core.DefaultLedger(core.NewMoney(1500), core.NewMoney(4500))
	svc := services.NewLedgerService(l, cache.NewMemoryStore(), q)
	svc.SetClock(func() time.Time { return fixedNow })

	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, remote: rs, ledger: svc}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	ready := false
	env := newTestEnv(t, Options{Ready: func() bool { return ready }})

	if rr := env.do(t, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before load status=%d", rr.Code)
	}
	ready = true
	rr := env.do(t, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("middleware headers missing: %v", rr.Header())
	}
}

func TestGetLedger(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/api/ledger", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	v := decode[ledgerView](t, rr)
	if len(v.Rooms) != 4 || len(v.Apartments) != 4 {
		t.Fatalf("units = %d/%d", len(v.Rooms), len(v.Apartments))
	}
	if v.Rooms[0].SelectedMonth.String() != "2025-03" {
		t.Errorf("selected month = %s, want current month", v.Rooms[0].SelectedMonth)
	}
	if len(v.Services) != 4 {
		t.Errorf("service buckets = %d", len(v.Services))
	}
}

func TestSetPaidSyncsToRemote(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPut, "/api/units/cuartos/1/payments/2025-03/paid?wait=true", `{"paid":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decode[mutationResponse](t, rr)
	if resp.Sync.State != SyncDone {
		t.Errorf("sync = %+v, want synced", resp.Sync)
	}
	if len(resp.Unit.Payments) != 1 || !resp.Unit.Payments[0].Paid || resp.Unit.Payments[0].PaidDate.String() != "2025-03-15" {
		t.Errorf("payments = %+v", resp.Unit.Payments)
	}

	payments, err := env.remote.ListPayments(context.Background())
	if err != nil || len(payments) != 1 {
		t.Fatalf("remote payments = %v, %v", payments, err)
	}

	rr = env.do(t, http.MethodPut, "/api/units/room/1/payments/2025-03/date", `{"date":"2025-03-02"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("set date status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[mutationResponse](t, rr).Unit.Payments[0].PaidDate.String(); got != "2025-03-02" {
		t.Errorf("paid date = %s", got)
	}
}

func TestMutationErrors(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"malformed json", http.MethodPut, "/api/units/cuartos/1/payments/2025-03/paid", `{"paid":`, http.StatusBadRequest},
		{"unknown field", http.MethodPut, "/api/units/cuartos/1/occupied", `{"ocupado":true}`, http.StatusBadRequest},
		{"missing field", http.MethodPut, "/api/units/cuartos/1/occupied", `{}`, http.StatusUnprocessableEntity},
		{"invalid month in path", http.MethodPut, "/api/units/cuartos/1/payments/2025-13/paid", `{"paid":true}`, http.StatusUnprocessableEntity},
		{"invalid month in body", http.MethodPut, "/api/units/cuartos/1/selected-month", `{"month":"March"}`, http.StatusUnprocessableEntity},
		{"date on unpaid month", http.MethodPut, "/api/units/cuartos/1/payments/2025-03/date", `{"date":"2025-03-02"}`, http.StatusUnprocessableEntity},
		{"negative rent", http.MethodPut, "/api/units/cuartos/1/rent", `{"rent":"-5"}`, http.StatusUnprocessableEntity},
		{"unknown category", http.MethodPut, "/api/units/garage/1/occupied", `{"occupied":true}`, http.StatusUnprocessableEntity},
		{"unknown unit", http.MethodPut, "/api/units/cuartos/9/occupied", `{"occupied":false}`, http.StatusNotFound},
		{"delete missing payment", http.MethodDelete, "/api/units/cuartos/1/payments/2025-03", "", http.StatusNotFound},
		{"delete missing service", http.MethodDelete, "/api/services/id/nope", "", http.StatusNotFound},
		{"service index out of range", http.MethodDelete, "/api/services/agua/3", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if body := decode[ErrorBody](t, rr); body.Error == "" {
				t.Error("error code missing")
			}
		})
	}
}

func TestUnitMutations(t *testing.T) {
	env := newTestEnv(t, Options{})

	if rr := env.do(t, http.MethodPut, "/api/units/departamentos/2/occupant", `{"name":"  Sofía "}`); rr.Code != http.StatusOK {
		t.Fatalf("rename status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/units/departamentos/2/rent", `{"rent":"5000.50"}`); rr.Code != http.StatusOK {
		t.Fatalf("rent status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/units/departamentos/2/occupied", `{"occupied":false}`); rr.Code != http.StatusOK {
		t.Fatalf("occupied status=%d", rr.Code)
	}
	rr := env.do(t, http.MethodPut, "/api/units/departamentos/2/selected-month", `{"month":"2024-12"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("select month status=%d", rr.Code)
	}
	resp := decode[mutationResponse](t, rr)
	if resp.Sync.State != SyncLocal {
		t.Errorf("select month must not sync, got %+v", resp.Sync)
	}

	u := decode[unitView](t, env.do(t, http.MethodGet, "/api/units/departamentos/2", ""))
	if u.OccupantName != "Sofía" || u.MonthlyRent.String() != "5000.5" || u.Occupied || u.SelectedMonth.String() != "2024-12" {
		t.Errorf("unit = %+v", u)
	}
}

func TestNotesAndHistory(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.do(t, http.MethodPut, "/api/units/cuartos/2/payments/2025-01/paid", `{"paid":true}`)
	if rr := env.do(t, http.MethodPut, "/api/units/cuartos/2/payments/2025-02/notes", `{"notes":"pagará el 20"}`); rr.Code != http.StatusOK {
		t.Fatalf("notes status=%d", rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/units/cuartos/2/history", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("history status=%d", rr.Code)
	}
	var h struct {
		Entries []struct {
			Month string `json:"month"`
			Paid  bool   `json:"paid"`
			Notes string `json:"notes"`
		} `json:"entries"`
		PaidCount    int `json:"paid_count"`
		PendingCount int `json:"pending_count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &h); err != nil {
		t.Fatal(err)
	}
	if len(h.Entries) != 2 || h.Entries[0].Month != "2025-02" || h.Entries[0].Notes != "pagará el 20" {
		t.Errorf("entries = %+v", h.Entries)
	}
	if h.PaidCount != 1 || h.PendingCount != 1 {
		t.Errorf("counts = %d/%d", h.PaidCount, h.PendingCount)
	}

	if rr := env.do(t, http.MethodDelete, "/api/units/cuartos/2/payments/2025-02", ""); rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if got := decode[unitView](t, env.do(t, http.MethodGet, "/api/units/cuartos/2", "")); len(got.Payments) != 1 {
		t.Errorf("payments after delete = %+v", got.Payments)
	}
}

func TestSummaries(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPut, "/api/units/cuartos/1/payments/2025-03/paid", `{"paid":true}`)

	var cur struct {
		Month     string     `json:"month"`
		Expected  core.Money `json:"expected"`
		Collected core.Money `json:"collected"`
	}
	rr := env.do(t, http.MethodGet, "/api/summary/current", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &cur); err != nil {
		t.Fatal(err)
	}
	if cur.Month != "2025-03" || cur.Expected.String() != "24000" || cur.Collected.String() != "1500" {
		t.Errorf("current = %+v", cur)
	}

	if rr := env.do(t, http.MethodGet, "/api/summary/current?month=bad", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/summary/revenue", ""); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "2025-03") {
		t.Errorf("revenue = %d %s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodGet, "/api/dashboard", ""); rr.Code != http.StatusOK {
		t.Errorf("dashboard status=%d", rr.Code)
	}
}

func TestServiceExpenses(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/api/services/agua?wait=true", `{"date":"2025-03-01","cost":"300","quantity":"12.5","notes":"bimestre"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status=%d body=%s", rr.Code, rr.Body.String())
	}
	added := decode[mutationResponse](t, rr)
	if added.Service == nil || added.Service.ID == "" || added.Service.Index != 0 || added.Sync.State != SyncDone {
		t.Fatalf("add response = %+v", added)
	}
	remoteRows, _ := env.remote.ListServices(context.Background())
	if len(remoteRows) != 1 {
		t.Errorf("remote services = %d", len(remoteRows))
	}

	env.do(t, http.MethodPost, "/api/services/internet", `{"date":"2025-02-10","cost":"500"}`)
	if rr := env.do(t, http.MethodPost, "/api/services/internet", `{"cost":"500"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("undated expense status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/services/gas", `{"date":"2025-02-10","cost":"1"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad category status=%d", rr.Code)
	}

	var totals struct {
		Water core.Money `json:"water"`
		Grand core.Money `json:"grand"`
	}
	if err := json.Unmarshal(env.do(t, http.MethodGet, "/api/services/totals", "").Body.Bytes(), &totals); err != nil {
		t.Fatal(err)
	}
	if totals.Water.String() != "300" || totals.Grand.String() != "800" {
		t.Errorf("totals = %+v", totals)
	}

	if rr := env.do(t, http.MethodGet, "/api/services", ""); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "2025-02") {
		t.Errorf("grouped services = %d %s", rr.Code, rr.Body.String())
	}

	if rr := env.do(t, http.MethodDelete, "/api/services/id/"+added.Service.ID, ""); rr.Code != http.StatusOK {
		t.Fatalf("delete by id status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/services/internet/0", ""); rr.Code != http.StatusOK {
		t.Fatalf("delete by index status=%d", rr.Code)
	}
	if got := decode[ledgerView](t, env.do(t, http.MethodGet, "/api/ledger", "")); len(got.Services[core.Water])+len(got.Services[core.Internet]) != 0 {
		t.Errorf("services left: %+v", got.Services)
	}
}

func TestSyncStatusAndPush(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/api/sync/push?wait=true", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("push status=%d", rr.Code)
	}
	units, _ := env.remote.ListUnits(context.Background())
	if len(units) != 8 {
		t.Errorf("remote units = %d, want 8", len(units))
	}

	var status struct {
		Enabled bool          `json:"enabled"`
		Sync    worker.Status `json:"sync"`
	}
	if err := json.Unmarshal(env.do(t, http.MethodGet, "/api/sync/status", "").Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.Enabled || status.Sync.Transport != "queue" || status.Sync.Succeeded < 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestRateLimitOnlyMutations(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 1})

	for i := 0; i < 3; i++ {
		if rr := env.do(t, http.MethodGet, "/api/ledger", ""); rr.Code != http.StatusOK {
			t.Fatalf("GET %d status=%d", i, rr.Code)
		}
	}
	if rr := env.do(t, http.MethodPut, "/api/units/cuartos/1/occupied", `{"occupied":true}`); rr.Code != http.StatusOK {
		t.Fatalf("first PUT status=%d", rr.Code)
	}
	rr := env.do(t, http.MethodPut, "/api/units/cuartos/1/occupied", `{"occupied":true}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second PUT status=%d", rr.Code)
	}
	if decode[ErrorBody](t, rr).Error != CodeRateLimited {
		t.Error("rate limit error code missing")
	}
}
