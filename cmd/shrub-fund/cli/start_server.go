package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/api"
	dbmodel "github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/observability/metrics"
	"github.com/shrublabs/shrub-fund/internal/observability/tracing"
	"github.com/shrublabs/shrub-fund/internal/queue"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func StartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Starts the fund API server, stats poller and commission scheduler",
		Args:  cobra.ExactArgs(0),
		RunE:  startServer,
	}

	return cmd
}

func startServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = tracing.InjectTraceID(ctx)
	log := log.Ctx(ctx)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error while loading config")
	}

	err = dbmodel.Setup(ctx, &cfg.Db)
	if err != nil {
		log.Fatal().Err(err).Msg("error while setting up fund db model")
	}

	// Create a basic zap logger
	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating zap logger")
	}
	defer func() {
		// stderr sync errors are expected on some platforms
		_ = zapLogger.Sync()
	}()

	publisher := queue.NewNoopPublisher()
	if cfg.Queue != nil {
		publisher, err = queue.NewQueueManager(cfg.Queue, zapLogger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize event publisher")
		}
	} else {
		log.Warn().Msg("queue is not configured, fund events are not published")
	}
	defer publisher.Shutdown()

	service, cleanup, err := newService(ctx, cfg, publisher)
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating service")
	}
	defer cleanup()

	// initialize metrics with the metrics port from config
	metricsPort := cfg.Metrics.GetMetricsPort()
	metrics.Init(metricsPort)

	scheduler, err := service.NewCommissionScheduler(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating commission scheduler")
	}
	statsPoller := service.NewStatsPoller()
	server := api.NewServer(&cfg.Server, service, service.Verifier())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		statsPoller.Start(ctx)
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-ctx.Done()
		scheduler.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	log.Info().Msg("shrub-fund stopped")
	return nil
}
