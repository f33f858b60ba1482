// Package reconcile decides, at startup, which copy of the ledger is
// authoritative: a non-empty remote always wins, otherwise the local cache is
// adopted (or defaults are bootstrapped) and pushed to the remote.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/javieronasis1-eng/administracion-rentas/internal/amqp"
	"github.com/javieronasis1-eng/administracion-rentas/internal/cache"
	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
	"github.com/javieronasis1-eng/administracion-rentas/internal/worker"
)

type State int

const (
	Uninitialized State = iota
	RemoteLoaded
	LocalAdopted
	DefaultsBootstrapped
	Ready
)

func (s State) String() string {
	switch s {
	case RemoteLoaded:
		return "remote_loaded"
	case LocalAdopted:
		return "local_adopted"
	case DefaultsBootstrapped:
		return "defaults_bootstrapped"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Outcome describes how Start obtained the ledger.
type Outcome struct {
	Source          State
	RemoteReachable bool
	// DroppedPayments counts remote payment rows without a matching unit.
	DroppedPayments int
	// Push is the pending full push after adopting local data; nil when
	// nothing was pushed.
	Push *worker.Ticket
	// Sync is the publisher mutations use for the rest of the session. It is
	// nil when a remote store is configured but was not reachable at startup,
	// so nothing unreconciled is written to it.
	Sync worker.Publisher
}

type Config struct {
	DefaultRoomRent      core.Money
	DefaultApartmentRent core.Money
	PushConcurrency      int
}

func DefaultConfig() Config {
	return Config{
		DefaultRoomRent:      core.NewMoney(core.DefaultRoomRent),
		DefaultApartmentRent: core.NewMoney(core.DefaultApartmentRent),
		PushConcurrency:      remote.DefaultPushConcurrency,
	}
}

// Engine runs the startup reconciliation. Remote and publisher may be nil,
// which means local-only operation.
type Engine struct {
	cache     cache.Store
	remote    remote.Store
	publisher worker.Publisher
	config    Config

	mu    sync.Mutex
	state State
}

func New(c cache.Store, r remote.Store, p worker.Publisher, config Config) *Engine {
	return &Engine{cache: c, remote: r, publisher: p, config: config}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Start loads the authoritative ledger. Remote failures never fail Start;
// only a local cache that exists but cannot be read does.
func (e *Engine) Start(ctx context.Context) (*core.Ledger, Outcome, error) {
	logger := slog.With(log.FieldComponent, log.ComponentReconcile)
	var out Outcome

	if e.remote != nil {
		if err := e.remote.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "Remote store unreachable, using local cache", log.FieldError, err)
		} else {
			out.RemoteReachable = true
		}
	}

	if out.RemoteReachable {
		l, dropped, err := e.loadRemote(ctx)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "Remote load failed, using local cache", log.FieldError, err)
			out.RemoteReachable = false
		case l != nil:
			if err := e.cache.Save(ctx, l); err != nil {
				logger.WarnContext(ctx, "Failed to back up remote ledger locally", log.FieldError, err)
			}
			out.Source = RemoteLoaded
			out.DroppedPayments = dropped
			e.setState(RemoteLoaded)
			return e.ready(ctx, logger, l, out)
		}
	}

	l, err := e.cache.Load(ctx)
	switch {
	case err == nil:
		out.Source = LocalAdopted
	case errors.Is(err, cache.ErrNotFound):
		l = core.DefaultLedger(e.config.DefaultRoomRent, e.config.DefaultApartmentRent)
		if err := e.cache.Save(ctx, l); err != nil {
			return nil, out, fmt.Errorf("save default ledger: %w", err)
		}
		out.Source = DefaultsBootstrapped
	default:
		return nil, out, fmt.Errorf("load local cache: %w", err)
	}
	e.setState(out.Source)

	if out.RemoteReachable {
		out.Push = e.pushAsync(ctx, l)
	}
	return e.ready(ctx, logger, l, out)
}

func (e *Engine) ready(ctx context.Context, logger *slog.Logger, l *core.Ledger, out Outcome) (*core.Ledger, Outcome, error) {
	if e.remote == nil || out.RemoteReachable {
		out.Sync = e.publisher
	} else if e.publisher != nil {
		logger.WarnContext(ctx, "Remote sync disabled for this session")
	}
	e.setState(Ready)
	logger.InfoContext(ctx, "Ledger ready",
		"source", out.Source.String(),
		"remote_reachable", out.RemoteReachable,
		"units", len(l.AllUnits()),
		"dropped_payments", out.DroppedPayments)
	return l, out, nil
}

// loadRemote returns nil without error when the remote has no units.
func (e *Engine) loadRemote(ctx context.Context) (*core.Ledger, int, error) {
	units, err := e.remote.ListUnits(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list units: %w", err)
	}
	if len(units) == 0 {
		return nil, 0, nil
	}
	payments, err := e.remote.ListPayments(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	services, err := e.remote.ListServices(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}

	l, dropped := FromRecords(units, payments, services)
	if dropped > 0 {
		slog.WarnContext(ctx, "Dropped remote payments without a unit", log.FieldComponent, log.ComponentReconcile, "count", dropped)
	}
	if err := core.EnsureStructure(l); err != nil {
		return nil, 0, err
	}
	return l, dropped, nil
}

// pushAsync hands a full push to the publisher, or pushes inline when there
// is none.
func (e *Engine) pushAsync(ctx context.Context, l *core.Ledger) *worker.Ticket {
	snap := ToRecords(l)
	if e.publisher != nil {
		return e.publisher.Publish(ctx, amqp.NewFullMessage(snap))
	}
	err := remote.PushAll(ctx, e.remote, snap, e.config.PushConcurrency)
	if err != nil {
		slog.WarnContext(ctx, "Initial push failed", log.FieldComponent, log.ComponentReconcile, log.FieldError, err)
	}
	return worker.Completed(err)
}

// Push writes the whole ledger to the remote synchronously.
func (e *Engine) Push(ctx context.Context, l *core.Ledger) error {
	if e.remote == nil {
		return errors.New("no remote store configured")
	}
	return remote.PushAll(ctx, e.remote, ToRecords(l), e.config.PushConcurrency)
}
