package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	daemongrpc "github.com/cosminstn/disruptor-mediator/internal/adapters/grpc"
	"github.com/cosminstn/disruptor-mediator/internal/adapters/metrics"
	"github.com/cosminstn/disruptor-mediator/internal/adapters/persistence"
	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
	"github.com/cosminstn/disruptor-mediator/internal/application/samples"
	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/config"
	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/database"
	infralogging "github.com/cosminstn/disruptor-mediator/internal/infrastructure/logging"
	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/pidfile"
)

func main() {
	forceFlag := flag.Bool("force", false, "Kill any existing daemon and start a new one")
	configFlag := flag.String("config", "", "Path to mediator.yaml (default: search standard paths)")
	flag.Parse()

	cfg := config.MustLoadConfig(*configFlag)

	// Acquire PID file lock to prevent multiple instances
	pf := pidfile.New(cfg.Daemon.PIDFile)
	if err := pf.Acquire(); err != nil {
		if !*forceFlag {
			log.Fatalf("Failed to acquire PID file lock: %v\nUse --force to kill the existing daemon", err)
		}
		if killErr := pf.KillExisting(cfg.Daemon.ShutdownTimeout); killErr != nil {
			log.Fatalf("Failed to kill existing daemon: %v", killErr)
		}
		if err := pf.Acquire(); err != nil {
			log.Fatalf("Failed to acquire PID file lock after killing existing daemon: %v", err)
		}
	}
	defer func() {
		if err := pf.Release(); err != nil {
			log.Printf("Warning: failed to release PID file: %v", err)
		}
	}()

	if err := run(cfg); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(cfg *config.Config) error {
	// 1. Logging
	slogger, logCloser, err := infralogging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	defer logCloser.Close()
	logger := logging.NewSlogLogger(slogger)

	// 2. Failure journal
	logger.Info("connecting to database", "type", cfg.Database.Type)
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	failureRepo := persistence.NewGormFailureRepository(db, nil).WithDedupWindow(cfg.Database.Journal.DedupWindow)
	if retention := cfg.Database.Journal.Retention; retention > 0 {
		purged, err := failureRepo.Purge(context.Background(), time.Now().Add(-retention))
		if err != nil {
			return fmt.Errorf("failed to purge failure journal: %w", err)
		}
		logger.Info("purged failure journal", "rows", purged, "retention", retention)
	}

	// 3. Registry and mediator
	registryOpts := []mediator.RegistryOption{mediator.WithRegistryLogger(logger)}
	if cfg.Mediator.RescanOnMiss {
		registryOpts = append(registryOpts, mediator.WithRescanOnMiss())
	}
	registry := mediator.NewRegistry(mediator.StaticBindings(samples.Bindings(logger)...), registryOpts...)

	opts := []mediator.Option{
		mediator.WithExecutionGroups(cfg.Mediator.ExecutionGroups),
		mediator.WithBufferSize(cfg.Mediator.BufferSize),
		mediator.WithBlockingTimeout(cfg.Mediator.BlockingTimeout),
		mediator.WithSlowHandlerThreshold(cfg.Mediator.SlowHandlerThreshold),
		mediator.WithLogger(logger),
		mediator.WithFailureSink(failureRepo),
	}

	// 4. Metrics
	var (
		mediatorMetrics *metrics.MediatorMetricsCollector
		metricsServer   *metrics.Server
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()

		handlerMetrics := metrics.NewHandlerMetricsCollector()
		if err := handlerMetrics.Register(); err != nil {
			return fmt.Errorf("failed to register handler metrics: %w", err)
		}
		opts = append(opts, mediator.WithMiddleware(metrics.PrometheusMiddleware(handlerMetrics)))

		mediatorMetrics = metrics.NewMediatorMetricsCollector(nil)
		if err := mediatorMetrics.Register(); err != nil {
			return fmt.Errorf("failed to register mediator metrics: %w", err)
		}
		opts = append(opts, mediator.WithMetrics(mediatorMetrics))

		metricsServer, err = metrics.NewServer(cfg.Metrics, logger)
		if err != nil {
			return err
		}
	}

	med, err := mediator.New(registry, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mediator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := med.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize mediator: %w", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Start(); err != nil {
			return err
		}
		defer shutdownWithTimeout(metricsServer.Shutdown, cfg.Daemon.ShutdownTimeout)

		mediatorMetrics = mediatorMetrics.WithStats(med.Stats)
		mediatorMetrics.Start(ctx, cfg.Metrics.StatsInterval)
		defer mediatorMetrics.Stop()
	}

	// 5. Sample job
	if cfg.Demo.Enabled {
		job := samples.NewSampleJob(med, logger, cfg.Demo.Interval, cfg.Demo.Rate)
		if err := job.Start(ctx); err != nil {
			return fmt.Errorf("sample job failed to start: %w", err)
		}
		go func() {
			if err := job.Run(ctx); err != nil {
				logger.Error("sample job stopped", "error", err)
			}
		}()
	}

	// 6. Health endpoint; blocks until shutdown and closes the mediator
	server, err := daemongrpc.NewDaemonServer(med, cfg.Daemon.SocketPath, cfg.Daemon.ShutdownTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon server: %w", err)
	}
	return server.Start(ctx)
}

func shutdownWithTimeout(shutdown func(context.Context) error, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = shutdown(ctx)
}
