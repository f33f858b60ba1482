package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javieronasis1-eng/administracion-rentas/internal/cache"
	"github.com/javieronasis1-eng/administracion-rentas/internal/config"
	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/summary"
)

var march = core.NewMonthKey(2025, time.March)

func withCache(t *testing.T, l *core.Ledger) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rentas.db")
	if l != nil {
		store, err := cache.NewBoltStore(path)
		require.NoError(t, err)
		require.NoError(t, store.Save(context.Background(), l))
		require.NoError(t, store.Close())
	}
	prev := cfg
	cfg = &config.Config{CachePath: path}
	t.Cleanup(func() { cfg = prev })
}

func TestReadLedger(t *testing.T) {
	l := core.DefaultLedger(core.NewMoney(1500), core.NewMoney(4500))
	l.Rooms[0].Payments[march] = &core.Payment{Paid: true, PaidDate: core.NewDate(2025, 3, 2)}
	withCache(t, l)

	got, err := readLedger(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Rooms[0].IsPaid(march))
}

func TestReadLedgerEmptyCache(t *testing.T) {
	withCache(t, nil)
	_, err := readLedger(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run rentas serve once")
}

func TestPrintMonthSummary(t *testing.T) {
	l := core.DefaultLedger(core.NewMoney(1500), core.NewMoney(4500))
	l.Apartments[0].Payments[march] = &core.Payment{Paid: true}

	var buf bytes.Buffer
	printMonthSummary(&buf, summary.CurrentMonth(l, march))
	out := buf.String()
	assert.Contains(t, out, "$24,000")
	assert.Contains(t, out, "$4,500")
	assert.Contains(t, out, "$19,500")
	assert.Contains(t, out, "19%")
}

func TestPrintRevenueEmpty(t *testing.T) {
	var buf bytes.Buffer
	printRevenue(&buf, nil)
	assert.Equal(t, "Sin pagos registrados\n", buf.String())
}

func TestPrintHistory(t *testing.T) {
	l := core.DefaultLedger(core.NewMoney(1500), core.NewMoney(4500))
	u := l.Rooms[1]
	u.Payments[march] = &core.Payment{Paid: true, PaidDate: core.NewDate(2025, 3, 5)}
	u.Payments[core.NewMonthKey(2025, time.February)] = &core.Payment{Notes: "debe"}

	var buf bytes.Buffer
	printHistory(&buf, summary.History(u))
	out := buf.String()
	assert.Contains(t, out, "Cuarto #2 Cuarto 2: 1 pagados, 1 pendientes")
	assert.Contains(t, out, "2025-03-05")
	assert.Contains(t, out, "debe")
}
