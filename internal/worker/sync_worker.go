package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/javieronasis1-eng/administracion-rentas/internal/amqp"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

// SyncWorker applies sync messages to the remote store. The in-process
// queue and the AMQP consumer both go through Apply.
type SyncWorker struct {
	store       remote.Store
	concurrency int
}

func NewSyncWorker(store remote.Store, concurrency int) *SyncWorker {
	if concurrency <= 0 {
		concurrency = remote.DefaultPushConcurrency
	}
	return &SyncWorker{store: store, concurrency: concurrency}
}

// Apply performs the single remote change described by msg.
func (w *SyncWorker) Apply(ctx context.Context, msg *amqp.SyncMessage) error {
	if err := msg.Validate(); err != nil {
		return remote.Rejected(err)
	}

	var err error
	switch msg.Kind {
	case amqp.KindUnit:
		err = w.store.UpsertUnit(ctx, *msg.Unit)
	case amqp.KindPayment:
		err = w.store.UpsertPayment(ctx, *msg.Payment)
	case amqp.KindPaymentDelete:
		err = w.store.DeletePayment(ctx, *msg.PaymentKey)
	case amqp.KindServices:
		err = w.store.ReplaceAllServices(ctx, msg.Services)
	case amqp.KindFull:
		err = remote.PushAll(ctx, w.store, *msg.Snapshot, w.concurrency)
	}
	if err != nil {
		return fmt.Errorf("apply %s: %w", msg.Kind, err)
	}

	slog.DebugContext(ctx, "Applied sync message", log.FieldComponent, log.ComponentWorker, log.FieldKind, msg.Kind, "queued_at", msg.Timestamp)
	return nil
}

// HandleSyncMessage adapts Apply to the AMQP consumer.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", log.FieldComponent, log.ComponentWorker, log.FieldKind, msg.Kind, "timestamp", msg.Timestamp)
	return w.Apply(ctx, msg)
}
