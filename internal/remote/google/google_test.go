package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

// fakeSheets emulates the subset of the Sheets v4 values API the client uses.
type fakeSheets struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	status int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(f.status) + `,"message":"fake"}}`))
		return
	}

	_, rest, found := strings.Cut(r.URL.Path, "/values/")
	if !found {
		_ = json.NewEncoder(w).Encode(map[string]string{"spreadsheetId": "sheet-id"})
		return
	}
	op := ""
	for _, suffix := range []string{"append", "clear"} {
		if trimmed, ok := strings.CutSuffix(rest, ":"+suffix); ok {
			rest, op = trimmed, suffix
		}
	}
	tab, cells, _ := strings.Cut(rest, "!")
	start := startRow(cells)

	var body struct {
		Values [][]any `json:"values"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case op == "append":
		f.tabs[tab] = append(f.tabs[tab], body.Values...)
	case op == "clear":
		if start == 0 {
			f.tabs[tab] = nil
		} else if start <= len(f.tabs[tab]) {
			f.tabs[tab][start-1] = []any{}
		}
	case r.Method == http.MethodPut:
		if start == 0 {
			start = 1
		}
		for i, row := range body.Values {
			idx := start - 1 + i
			for len(f.tabs[tab]) <= idx {
				f.tabs[tab] = append(f.tabs[tab], []any{})
			}
			f.tabs[tab][idx] = row
		}
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rest, "values": f.tabs[tab]})
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

// startRow extracts the first row number of an A1 range, 0 for whole columns.
func startRow(cells string) int {
	first, _, _ := strings.Cut(cells, ":")
	digits := strings.TrimLeft(first, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, _ := strconv.Atoi(digits)
	return n
}

func newFakeClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{tabs: map[string][][]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return newClient(svc, Config{SpreadsheetID: "sheet-id"}), fake
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestNew_InvalidOAuthClient(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "test-id",
		OAuthClientJSON: "invalid-json",
		OAuthTokenJSON:  `{"access_token":"test"}`,
	})
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Fatalf("expected oauth config error, got %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestUpsertUnitWritesHeaderThenUpdatesInPlace(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	rec := remote.UnitRecord{Category: core.Rooms, UnitID: 1, OccupantName: "Ana", RentAmount: core.NewMoney(1500), Occupied: true}
	if err := c.UpsertUnit(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := c.UpsertUnit(ctx, remote.UnitRecord{Category: core.Rooms, UnitID: 2, OccupantName: "Luis", RentAmount: core.NewMoney(1500)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec.OccupantName = "Ana María"
	if err := c.UpsertUnit(ctx, rec); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	if got := len(fake.tabs["Units"]); got != 3 {
		t.Fatalf("expected header + 2 rows, got %d", got)
	}
	units, err := c.ListUnits(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(units) != 2 || units[0].OccupantName != "Ana María" || units[1].Occupied {
		t.Fatalf("unexpected units %+v", units)
	}
}

func TestPaymentsUpsertAndDelete(t *testing.T) {
	c, _ := newFakeClient(t)
	ctx := context.Background()
	march := core.NewMonthKey(2025, time.March)
	april := core.NewMonthKey(2025, time.April)

	for _, m := range []core.MonthKey{march, april} {
		p := remote.PaymentRecord{Category: core.Apartments, UnitID: 3, MonthKey: m, Paid: true, PaidDate: core.NewDate(m.Year, int(m.Month), 5), Notes: "transferencia"}
		if err := c.UpsertPayment(ctx, p); err != nil {
			t.Fatalf("upsert %s: %v", m, err)
		}
	}
	key := remote.PaymentKey{Category: core.Apartments, UnitID: 3, MonthKey: march}
	if err := c.DeletePayment(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.DeletePayment(ctx, key); err != nil {
		t.Fatalf("deleting a missing row must not fail: %v", err)
	}
	list, err := c.ListPayments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].MonthKey != april || list[0].PaidDate.String() != "2025-04-05" || list[0].Notes != "transferencia" {
		t.Fatalf("unexpected payments %+v", list)
	}
}

func TestReplaceAllServices(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()
	rs := []remote.ServiceRecord{
		{ID: "a", Category: core.Water, Date: core.NewDate(2025, 3, 1), Cost: core.NewMoney(300)},
		{ID: "b", Category: core.Internet, Date: core.NewDate(2025, 3, 2), Cost: core.NewMoney(500), Notes: "fibra"},
	}
	if err := c.ReplaceAllServices(ctx, rs); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := c.ReplaceAllServices(ctx, rs[1:]); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := len(fake.tabs["Services"]); got != 2 {
		t.Fatalf("expected header + 1 row, got %d", got)
	}
	got, err := c.ListServices(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" || got[0].Notes != "fibra" {
		t.Fatalf("unexpected services %+v", got)
	}
}

func TestErrorClassification(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	fake.status = http.StatusServiceUnavailable
	if err := c.Ping(ctx); !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	fake.status = http.StatusBadRequest
	_, err := c.ListUnits(ctx)
	if !errors.Is(err, remote.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}
