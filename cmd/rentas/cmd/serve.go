package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/javieronasis1-eng/administracion-rentas/internal/amqp"
	"github.com/javieronasis1-eng/administracion-rentas/internal/cache"
	"github.com/javieronasis1-eng/administracion-rentas/internal/cli"
	"github.com/javieronasis1-eng/administracion-rentas/internal/config"
	apphttp "github.com/javieronasis1-eng/administracion-rentas/internal/http"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/reconcile"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
	"github.com/javieronasis1-eng/administracion-rentas/internal/services"
	"github.com/javieronasis1-eng/administracion-rentas/internal/worker"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API",
	Long: `Load the ledger (remote store first, then the local cache, then
defaults), start the sync path and serve the JSON API on PORT.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.GracefulShutdown(cmd.Context(), logger.Logger)
	defer stop()

	store, err := cache.NewBoltStore(cfg.CachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	remoteRes, err := cli.OpenRemote(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer remoteRes.Close()

	// The queue outlives ctx so Stop can drain it after a signal.
	queueCtx, cancelQueue := context.WithCancel(context.Background())
	defer cancelQueue()

	publisher, queue, closeBroker, err := newPublisher(queueCtx, remoteRes.Store)
	if err != nil {
		return err
	}
	defer closeBroker()

	svc, engine, out, err := startLedger(ctx, store, remoteRes.Store, publisher)
	if err != nil {
		return err
	}
	if out.Sync == nil && queue != nil {
		// Nothing will be published this session.
		if err := queue.Stop(ctx); err != nil {
			logger.Warn("Sync queue did not stop", log.FieldError, err)
		}
		queue = nil
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              func() bool { return engine.State() == reconcile.Ready },
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting rentas server",
			"port", cfg.Port,
			log.FieldBackend, cfg.RemoteBackend,
			log.FieldTransport, cfg.SyncTransport,
			log.FieldSource, out.Source.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := cli.ShutdownContext(shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if queue != nil {
			if err := queue.Stop(shutdownCtx); err != nil {
				logger.Warn("Sync queue did not drain", log.FieldError, err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// startLedger reconciles the ledger and builds the service on the publisher
// the engine kept for this session.
func startLedger(ctx context.Context, store cache.Store, rs remote.Store, publisher worker.Publisher) (*services.LedgerService, *reconcile.Engine, reconcile.Outcome, error) {
	room, apartment := cfg.Rents()
	engine := reconcile.New(store, rs, publisher, reconcile.Config{
		DefaultRoomRent:      room,
		DefaultApartmentRent: apartment,
		PushConcurrency:      remote.DefaultPushConcurrency,
	})
	ledger, out, err := engine.Start(ctx)
	if err != nil {
		return nil, nil, out, fmt.Errorf("startup reconciliation: %w", err)
	}
	if out.Push != nil {
		go logPush(ctx, out.Push)
	}
	return services.NewLedgerService(ledger, store, out.Sync), engine, out, nil
}

// newPublisher wires the sync transport. It returns a nil Publisher when
// there is nowhere to send changes.
func newPublisher(ctx context.Context, store remote.Store) (worker.Publisher, *worker.Queue, func(), error) {
	noop := func() {}

	if cfg.SyncTransport == config.TransportAMQP {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect to broker: %w", err)
		}
		logger.Info("Publishing sync messages to RabbitMQ",
			"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return worker.NewBrokerPublisher(client), nil, func() { _ = client.Close() }, nil
	}

	if store == nil {
		return nil, nil, noop, nil
	}

	q := worker.NewQueue(worker.NewSyncWorker(store, remote.DefaultPushConcurrency), worker.QueueConfig{
		Size:       cfg.SyncQueueSize,
		MaxRetries: cfg.SyncMaxRetries,
	})
	q.OnResult(func(msg *amqp.SyncMessage, err error) {
		if err != nil {
			logger.WithComponent(log.ComponentWorker).Warn("Remote write abandoned",
				log.FieldKind, msg.Kind, log.FieldError, err)
		}
	})
	if err := q.Start(ctx); err != nil {
		return nil, nil, noop, err
	}
	return q, q, noop, nil
}

func logPush(ctx context.Context, t *worker.Ticket) {
	if err := t.Wait(ctx); err != nil {
		logger.WithComponent(log.ComponentReconcile).Warn("Initial push to remote failed", log.FieldError, err)
		return
	}
	logger.WithComponent(log.ComponentReconcile).Info("Initial push to remote finished")
}
