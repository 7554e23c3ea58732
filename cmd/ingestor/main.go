package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fleettrack/internal/bus"
	"fleettrack/internal/config"
	"fleettrack/internal/discovery"
	"fleettrack/internal/ingest"
	"fleettrack/internal/models"
	"fleettrack/internal/observability"
	"fleettrack/internal/provider"
	"fleettrack/internal/queue"
	"fleettrack/internal/scheduler"
	"fleettrack/internal/store"
	"fleettrack/internal/toggles"
	"fleettrack/internal/ws"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger()
	logger.Info("starting fleettrack ingestor",
		"db", cfg.Database.Host, "rabbitmq", cfg.RabbitMQ.Host,
		"poll_interval", cfg.Ingestion.PollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rabbitConn, err := queue.Connect(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer rabbitConn.Close()

	q, err := queue.New(rabbitConn, logger)
	if err != nil {
		logger.Error("failed to set up ingest queue", "error", err)
		os.Exit(1)
	}
	defer q.Close()

	toggleStore, err := toggles.New(cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer toggleStore.Close()

	eventBus := bus.New(logger)

	hub := ws.NewHub(logger)
	hub.Register(eventBus)
	go hub.Run()

	matcher := discovery.NewMatcher(store.NewVehicleRepo(db), store.NewLinkRepo(db), logger)
	matcher.Register(eventBus)

	enqueuer := ingest.NewEnqueuer(q, logger)
	enqueuer.Register(eventBus)

	worker := ingest.NewWorker(
		store.NewLinkRepo(db),
		store.NewSessionRepo(db),
		store.NewLocationRepo(db),
		logger,
	)
	for i := 0; i < cfg.Ingestion.WorkerCount; i++ {
		go func() {
			if err := q.Consume(ctx, 8, worker.Handle); err != nil && ctx.Err() == nil {
				logger.Error("queue consumer stopped", "error", err)
			}
		}()
	}

	sched := scheduler.New(
		models.ProviderGPSwox,
		cfg.Ingestion.PollInterval,
		cfg.Ingestion.FetchTimeout,
		toggleStore,
		provider.NewClient(cfg.Ingestion.FetchTimeout),
		provider.NewParser(),
		eventBus,
		logger,
	)
	go sched.Run(ctx)

	go func() {
		err := observability.StartMetricsServer(cfg.MetricsPort, map[string]http.Handler{
			"/ws/live": hub,
		})
		if err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
}
