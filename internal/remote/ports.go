// Package remote defines the ports for the authoritative remote store.
//
// Adapters live in sub-packages (memory, google) and in internal/storage
// (SQLite). Every adapter classifies its failures with ErrUnavailable or
// ErrRejected so callers can decide between retrying and giving up.
package remote

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable marks network, auth or service outages. Worth retrying.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrRejected marks writes refused by the store, e.g. constraint violations.
	ErrRejected = errors.New("remote store rejected the write")
)

// Ports for outbound adapters.
type (
	Pinger interface {
		// Ping checks reachability; any error means "unreachable".
		Ping(ctx context.Context) error
	}

	UnitStore interface {
		ListUnits(ctx context.Context) ([]UnitRecord, error)
		// UpsertUnit inserts or replaces by (user_scope, category, unit_id).
		UpsertUnit(ctx context.Context, r UnitRecord) error
	}

	PaymentStore interface {
		ListPayments(ctx context.Context) ([]PaymentRecord, error)
		// UpsertPayment inserts or replaces by (user_scope, category, unit_id, month_key).
		UpsertPayment(ctx context.Context, r PaymentRecord) error
		// DeletePayment removes the row for the key. Missing rows are not an error.
		DeletePayment(ctx context.Context, key PaymentKey) error
	}

	ServiceStore interface {
		ListServices(ctx context.Context) ([]ServiceRecord, error)
		// ReplaceAllServices deletes every service row and inserts rs.
		ReplaceAllServices(ctx context.Context, rs []ServiceRecord) error
	}

	// Store is the full remote adapter.
	Store interface {
		Pinger
		UnitStore
		PaymentStore
		ServiceStore
	}
)

// Unavailable wraps err as ErrUnavailable.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Rejected wraps err as ErrRejected.
func Rejected(err error) error {
	if err == nil || errors.Is(err, ErrRejected) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRejected, err)
}

// Retryable reports whether a failed write may succeed later.
// Rejected writes never do; anything unclassified is treated as transient.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrRejected)
}
