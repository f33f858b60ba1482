// Package cache persists the whole ledger locally as a single serialized blob.
//
// The local cache is the source of truth when the remote store is unreachable
// and the backup copy when it is. Every mutation rewrites the full blob.
package cache

import (
	"context"
	"errors"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
)

// Key is the fixed key the ledger blob is stored under.
const Key = "rentasData"

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("ledger not found in local cache")

// Store loads and saves the full ledger.
type Store interface {
	// Load returns the saved ledger, normalized, or ErrNotFound.
	Load(ctx context.Context) (*core.Ledger, error)
	// Save replaces the saved ledger atomically.
	Save(ctx context.Context, l *core.Ledger) error
}
