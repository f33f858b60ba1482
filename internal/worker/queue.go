package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/javieronasis1-eng/administracion-rentas/internal/amqp"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

var (
	ErrQueueClosed = errors.New("sync queue closed")
	// ErrQueueFull is returned instead of waiting for room in the buffer.
	// The dropped change stays in the local cache and a full push repairs
	// the remote.
	ErrQueueFull = errors.New("sync queue full")
)

// Publisher hands a sync message to the write-behind path.
type Publisher interface {
	Publish(ctx context.Context, msg *amqp.SyncMessage) *Ticket
}

// Applier performs one remote change.
type Applier interface {
	Apply(ctx context.Context, msg *amqp.SyncMessage) error
}

// QueueConfig holds configuration for the in-process queue
type QueueConfig struct {
	// Size is the channel buffer (default: 256)
	Size int

	// MaxRetries is the number of retries after the first attempt. Zero
	// disables retries; DefaultQueueConfig uses 3.
	MaxRetries int

	// BaseDelay is the first backoff delay, doubled per retry (default: 1s)
	BaseDelay time.Duration

	// MaxDelay caps the backoff (default: 30s)
	MaxDelay time.Duration

	// AttemptTimeout bounds one Apply call (default: 30s)
	AttemptTimeout time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Size:           256,
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

func (c QueueConfig) withDefaults() QueueConfig {
	def := DefaultQueueConfig()
	if c.Size <= 0 {
		c.Size = def.Size
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}
	return c
}

// Backoff returns the wait before retry number attempt (0-based).
func (c QueueConfig) Backoff(attempt int) time.Duration {
	d := c.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

type item struct {
	msg    *amqp.SyncMessage
	ticket *Ticket
}

// Queue applies sync messages one at a time in enqueue order, so the last
// local write is also the last remote write.
type Queue struct {
	applier Applier
	config  QueueConfig
	items   chan item

	onResult func(*amqp.SyncMessage, error)

	mu      sync.Mutex
	status  Status
	running bool
	closed  bool
	sending sync.WaitGroup
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewQueue(applier Applier, config QueueConfig) *Queue {
	config = config.withDefaults()
	return &Queue{
		applier: applier,
		config:  config,
		items:   make(chan item, config.Size),
		status:  Status{Transport: "queue"},
	}
}

// OnResult registers a hook called after every message settles.
// Must be set before Start.
func (q *Queue) OnResult(fn func(*amqp.SyncMessage, error)) {
	q.onResult = fn
}

// Start begins the processing loop. Returns an error if already running.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("sync queue is already running")
	}
	if q.closed {
		return ErrQueueClosed
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})

	go q.runLoop(ctx)

	slog.InfoContext(ctx, "Sync queue started", log.FieldComponent, log.ComponentWorker,
		"size", q.config.Size,
		"max_retries", q.config.MaxRetries)
	return nil
}

// Publish enqueues msg without blocking. When the buffer is full the message
// is dropped, counted as failed, and the ticket settles with ErrQueueFull.
// Otherwise the ticket settles once the message is applied or given up on.
func (q *Queue) Publish(ctx context.Context, msg *amqp.SyncMessage) *Ticket {
	t := newTicket()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		t.resolve(ErrQueueClosed)
		return t
	}
	q.status.Pending++
	q.sending.Add(1)
	q.mu.Unlock()
	defer q.sending.Done()

	select {
	case q.items <- item{msg: msg, ticket: t}:
	default:
		err := fmt.Errorf("enqueue %s: %w", msg.Kind, ErrQueueFull)
		slog.WarnContext(ctx, "Sync queue full, dropping change", log.FieldComponent, log.ComponentWorker,
			log.FieldKind, msg.Kind,
			"size", q.config.Size)
		q.settle(item{msg: msg, ticket: t}, err)
	}
	return t
}

// Stop stops accepting messages, drains what is buffered and waits for the
// loop to finish or ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	running := q.running
	q.mu.Unlock()

	if !running {
		return nil
	}
	q.sending.Wait()
	close(q.stopCh)

	select {
	case <-q.doneCh:
		slog.InfoContext(ctx, "Sync queue stopped gracefully", log.FieldComponent, log.ComponentWorker)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync queue stop timed out", log.FieldComponent, log.ComponentWorker, "pending", q.Status().Pending)
		return ctx.Err()
	}
}

func (q *Queue) runLoop(ctx context.Context) {
	defer close(q.doneCh)
	for {
		select {
		case it := <-q.items:
			q.process(ctx, it)
		case <-ctx.Done():
			q.mu.Lock()
			q.closed = true
			q.mu.Unlock()
			q.abandonAll(ctx.Err())
			return
		case <-q.stopCh:
			q.drain(ctx)
			return
		}
	}
}

func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case it := <-q.items:
			q.process(ctx, it)
		default:
			return
		}
	}
}

// abandonAll settles buffered items and in-flight senders once the loop is
// cancelled.
func (q *Queue) abandonAll(err error) {
	done := make(chan struct{})
	go func() {
		q.sending.Wait()
		close(done)
	}()
	for {
		select {
		case it := <-q.items:
			q.settle(it, err)
		case <-done:
			q.abandon(err)
			return
		}
	}
}

func (q *Queue) abandon(err error) {
	for {
		select {
		case it := <-q.items:
			q.settle(it, err)
		default:
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, it item) {
	var err error
	for attempt := 0; ; attempt++ {
		err = q.applyOnce(ctx, it.msg)
		if err == nil || !remote.Retryable(err) || attempt >= q.config.MaxRetries {
			break
		}
		wait := q.config.Backoff(attempt)
		slog.WarnContext(ctx, "Remote sync failed, retrying", log.FieldComponent, log.ComponentWorker,
			"kind", it.msg.Kind,
			"attempt", attempt+1,
			"wait", wait,
			log.FieldError, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			err = fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
			q.settle(it, err)
			return
		}
	}

	if err != nil {
		slog.ErrorContext(ctx, "Remote sync gave up", log.FieldComponent, log.ComponentWorker,
			"kind", it.msg.Kind,
			"retryable", remote.Retryable(err),
			log.FieldError, err)
	}
	q.settle(it, err)
}

func (q *Queue) applyOnce(ctx context.Context, msg *amqp.SyncMessage) error {
	actx, cancel := context.WithTimeout(ctx, q.config.AttemptTimeout)
	defer cancel()
	return q.applier.Apply(actx, msg)
}

func (q *Queue) settle(it item, err error) {
	q.mu.Lock()
	q.status.Pending--
	now := time.Now()
	if err != nil {
		q.status.Failed++
		q.status.LastError = err.Error()
		q.status.LastErrorAt = now
	} else {
		q.status.Succeeded++
		q.status.LastSuccessAt = now
	}
	q.mu.Unlock()

	it.ticket.resolve(err)
	if q.onResult != nil {
		q.onResult(it.msg, err)
	}
}

// Status returns a copy of the sync counters.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status
}

// IsRunning reports whether the loop has been started and not stopped.
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running && !q.closed
}
