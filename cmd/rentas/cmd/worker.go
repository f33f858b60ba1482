package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/javieronasis1-eng/administracion-rentas/internal/amqp"
	"github.com/javieronasis1-eng/administracion-rentas/internal/cli"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
	"github.com/javieronasis1-eng/administracion-rentas/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Apply sync messages from RabbitMQ to the remote store",
	Long: `Consume the sync queue declared by AMQP_EXCHANGE/AMQP_QUEUE and
apply every message to the configured remote store. Pair it with a serve
process running with SYNC_TRANSPORT=amqp.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	if cfg.AMQPURL == "" {
		return errors.New("worker needs AMQP_URL")
	}
	if !cfg.RemoteEnabled() {
		return errors.New("worker needs a remote store, set REMOTE_BACKEND")
	}

	ctx, stop := cli.GracefulShutdown(cmd.Context(), logger.Logger)
	defer stop()

	wlog := logger.WithComponent(log.ComponentWorker)
	wlog.Info("Starting rentas worker", log.FieldBackend, cfg.RemoteBackend)

	remoteRes, err := cli.OpenRemote(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer remoteRes.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	syncWorker := worker.NewSyncWorker(remoteRes.Store, remote.DefaultPushConcurrency)
	if err := client.ConsumeWithReconnect(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
		wlog.Error("Message consumption failed", log.FieldError, err)
		return err
	}

	wlog.Info("Worker shutdown complete")
	return nil
}
