package remote

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultPushConcurrency bounds the parallel row writes of a full push.
const DefaultPushConcurrency = 4

// Snapshot is the complete set of rows describing one ledger.
type Snapshot struct {
	Units    []UnitRecord    `json:"units"`
	Payments []PaymentRecord `json:"payments"`
	Services []ServiceRecord `json:"services"`
}

// PushAll writes every row of snap to s. Units and payments fan out with at
// most limit writes in flight; services are replaced last in one call.
// The first failure cancels the remaining writes and is returned.
func PushAll(ctx context.Context, s Store, snap Snapshot, limit int) error {
	if limit <= 0 {
		limit = DefaultPushConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, u := range snap.Units {
		g.Go(func() error {
			if err := s.UpsertUnit(gctx, u); err != nil {
				return fmt.Errorf("push unit %s/%d: %w", u.Category, u.UnitID, err)
			}
			return nil
		})
	}
	for _, p := range snap.Payments {
		g.Go(func() error {
			if err := s.UpsertPayment(gctx, p); err != nil {
				return fmt.Errorf("push payment %s/%d/%s: %w", p.Category, p.UnitID, p.MonthKey, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.ReplaceAllServices(ctx, snap.Services); err != nil {
		return fmt.Errorf("push services: %w", err)
	}
	return nil
}
