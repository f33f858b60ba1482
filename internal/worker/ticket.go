package worker

import (
	"context"
	"sync"
	"time"

	"github.com/javieronasis1-eng/administracion-rentas/internal/amqp"
)

// Ticket tracks one published message until it settles.
type Ticket struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

// Completed returns an already settled ticket.
func Completed(err error) *Ticket {
	t := newTicket()
	t.resolve(err)
	return t
}

func (t *Ticket) resolve(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done is closed once the message has been applied or dropped.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err returns the final error; nil while pending.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the ticket settles or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status is the observable state of the write-behind path.
type Status struct {
	Transport     string    `json:"transport"`
	Pending       int       `json:"pending"`
	Succeeded     uint64    `json:"succeeded"`
	Failed        uint64    `json:"failed"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at"`
	LastSuccessAt time.Time `json:"last_success_at"`
}

// Broker is the subset of the AMQP client used for publishing.
type Broker interface {
	PublishSync(ctx context.Context, msg *amqp.SyncMessage) error
}

// BrokerPublisher publishes to RabbitMQ. Its tickets settle when the broker
// accepts the message, not when the remote store is updated.
type BrokerPublisher struct {
	broker Broker

	mu     sync.Mutex
	status Status
}

func NewBrokerPublisher(b Broker) *BrokerPublisher {
	return &BrokerPublisher{broker: b, status: Status{Transport: "amqp"}}
}

func (p *BrokerPublisher) Publish(ctx context.Context, msg *amqp.SyncMessage) *Ticket {
	err := p.broker.PublishSync(ctx, msg)

	p.mu.Lock()
	now := time.Now()
	if err != nil {
		p.status.Failed++
		p.status.LastError = err.Error()
		p.status.LastErrorAt = now
	} else {
		p.status.Succeeded++
		p.status.LastSuccessAt = now
	}
	p.mu.Unlock()

	return Completed(err)
}

func (p *BrokerPublisher) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
