package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/javieronasis1-eng/administracion-rentas/internal/amqp"
	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote/memory"
)

func fastConfig() QueueConfig {
	return QueueConfig{
		Size:       8,
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
	}
}

// scriptedApplier fails the first n calls with err, then records messages.
type scriptedApplier struct {
	mu    sync.Mutex
	fails int
	err   error
	calls int
	seen  []*amqp.SyncMessage
}

func (a *scriptedApplier) Apply(_ context.Context, msg *amqp.SyncMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls <= a.fails {
		return a.err
	}
	a.seen = append(a.seen, msg)
	return nil
}

func startQueue(t *testing.T, a Applier, cfg QueueConfig) *Queue {
	t.Helper()
	q := NewQueue(a, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := q.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return q
}

func waitTicket(t *testing.T, tk *Ticket) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := tk.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("ticket did not settle")
	}
	return err
}

func unitMsg(id int, name string) *amqp.SyncMessage {
	return amqp.NewUnitMessage(remote.UnitRecord{Category: core.Rooms, UnitID: id, OccupantName: name, RentAmount: core.NewMoney(1500)})
}

func TestBackoff(t *testing.T) {
	cfg := DefaultQueueConfig()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := cfg.Backoff(i); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i, got, w)
		}
	}
	if got := cfg.Backoff(200); got != 30*time.Second {
		t.Errorf("Backoff(200) = %v, want cap", got)
	}
}

func TestQueueRetriesUnavailable(t *testing.T) {
	a := &scriptedApplier{fails: 2, err: remote.Unavailable(errors.New("timeout"))}
	q := startQueue(t, a, fastConfig())

	if err := waitTicket(t, q.Publish(context.Background(), unitMsg(1, "Ana"))); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if a.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", a.calls)
	}
	st := q.Status()
	if st.Succeeded != 1 || st.Failed != 0 || st.Pending != 0 || st.LastSuccessAt.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	a := &scriptedApplier{fails: 100, err: remote.Unavailable(errors.New("down"))}
	cfg := fastConfig()
	cfg.MaxRetries = 2
	q := startQueue(t, a, cfg)

	err := waitTicket(t, q.Publish(context.Background(), unitMsg(1, "Ana")))
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if a.calls != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", a.calls)
	}
	if st := q.Status(); st.Failed != 1 || st.LastError == "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestQueueDoesNotRetryRejected(t *testing.T) {
	a := &scriptedApplier{fails: 100, err: remote.Rejected(errors.New("constraint"))}
	q := startQueue(t, a, fastConfig())

	err := waitTicket(t, q.Publish(context.Background(), unitMsg(1, "Ana")))
	if !errors.Is(err, remote.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if a.calls != 1 {
		t.Fatalf("rejected writes must not be retried, got %d calls", a.calls)
	}
}

func TestQueuePreservesOrder(t *testing.T) {
	store := memory.New()
	q := startQueue(t, NewSyncWorker(store, 0), fastConfig())

	var last *Ticket
	for _, name := range []string{"Ana", "Luis", "Eva"} {
		last = q.Publish(context.Background(), unitMsg(1, name))
	}
	if err := waitTicket(t, last); err != nil {
		t.Fatalf("publish: %v", err)
	}
	units, err := store.ListUnits(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(units) != 1 || units[0].OccupantName != "Eva" {
		t.Fatalf("last write must win, got %+v", units)
	}
}

func TestQueueOnResult(t *testing.T) {
	a := &scriptedApplier{}
	q := NewQueue(a, fastConfig())
	results := make(chan error, 1)
	q.OnResult(func(_ *amqp.SyncMessage, err error) { results <- err })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	q.Publish(ctx, unitMsg(2, "Luis"))

	select {
	case err := <-results:
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnResult not called")
	}
}

func TestQueueStartTwice(t *testing.T) {
	q := startQueue(t, &scriptedApplier{}, fastConfig())
	if err := q.Start(context.Background()); err == nil {
		t.Fatal("expected error when starting a running queue")
	}
	if !q.IsRunning() {
		t.Fatal("queue should report running")
	}
}

func TestQueueStopDrainsAndRejectsLatePublish(t *testing.T) {
	a := &scriptedApplier{}
	q := NewQueue(a, fastConfig())
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	tickets := []*Ticket{
		q.Publish(context.Background(), unitMsg(1, "a")),
		q.Publish(context.Background(), unitMsg(2, "b")),
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	for _, tk := range tickets {
		if err := waitTicket(t, tk); err != nil {
			t.Fatalf("buffered message not applied: %v", err)
		}
	}
	if err := waitTicket(t, q.Publish(context.Background(), unitMsg(3, "c"))); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestQueueCancelSettlesBuffered(t *testing.T) {
	q := NewQueue(&scriptedApplier{}, fastConfig())
	// not started: items stay buffered until the loop runs
	tk := q.Publish(context.Background(), unitMsg(1, "a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := waitTicket(t, tk)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestTicket(t *testing.T) {
	tk := newTicket()
	if tk.Err() != nil {
		t.Fatal("pending ticket must have nil Err")
	}
	select {
	case <-tk.Done():
		t.Fatal("pending ticket must not be done")
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	if err := tk.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}

	boom := errors.New("boom")
	tk.resolve(boom)
	tk.resolve(nil)
	if !errors.Is(tk.Err(), boom) {
		t.Fatalf("first resolution must stick, got %v", tk.Err())
	}
	if err := Completed(nil).Wait(context.Background()); err != nil {
		t.Fatalf("completed ticket: %v", err)
	}
}

type fakeBroker struct{ err error }

func (b fakeBroker) PublishSync(context.Context, *amqp.SyncMessage) error { return b.err }

func TestBrokerPublisher(t *testing.T) {
	ok := NewBrokerPublisher(fakeBroker{})
	if err := ok.Publish(context.Background(), unitMsg(1, "a")).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if st := ok.Status(); st.Succeeded != 1 || st.Transport != "amqp" {
		t.Fatalf("unexpected status %+v", st)
	}

	failing := NewBrokerPublisher(fakeBroker{err: amqp.ErrCircuitOpen})
	if err := failing.Publish(context.Background(), unitMsg(1, "a")).Err(); !errors.Is(err, amqp.ErrCircuitOpen) {
		t.Fatalf("expected circuit error, got %v", err)
	}
	if st := failing.Status(); st.Failed != 1 || st.LastError == "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestQueueFullDropsInsteadOfBlocking(t *testing.T) {
	cfg := fastConfig()
	cfg.Size = 1
	q := NewQueue(&scriptedApplier{}, cfg)
	// not started: the first message fills the buffer
	first := q.Publish(context.Background(), unitMsg(1, "a"))

	start := time.Now()
	dropped := q.Publish(context.Background(), unitMsg(2, "b"))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("publish blocked for %s", elapsed)
	}
	if err := dropped.Err(); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	select {
	case <-first.Done():
		t.Fatal("buffered message settled before the loop ran")
	default:
	}
	if st := q.Status(); st.Pending != 1 || st.Failed != 1 || st.LastError == "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestQueueZeroRetries(t *testing.T) {
	a := &scriptedApplier{fails: 100, err: remote.Unavailable(errors.New("down"))}
	q := startQueue(t, a, QueueConfig{BaseDelay: time.Millisecond})

	if err := waitTicket(t, q.Publish(context.Background(), unitMsg(1, "Ana"))); !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if a.calls != 1 {
		t.Fatalf("zero retries means one attempt, got %d", a.calls)
	}
}
