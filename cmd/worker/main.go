package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	contractsmq "habitforge/contracts/mq"
	"habitforge/internal/analytics"
	"habitforge/internal/config"
	"habitforge/internal/httpserver"
	"habitforge/internal/mqhandler"
	"habitforge/internal/repository"
	"habitforge/internal/service"
	"habitforge/pkg/circuitbreaker"
	"habitforge/pkg/db"
	"habitforge/pkg/logger"
	"habitforge/pkg/mq"
	"habitforge/pkg/outbox"
	redisclient "habitforge/pkg/redis"
	"habitforge/pkg/util"
)

type queueBinding struct {
	queue      string
	routingKey string
	handle     mq.MessageHandler
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	log.Info("Starting worker service...")

	// Init DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	habitRepo := repository.NewHabitRepository(dbConn, outboxRepo, log)
	completionRepo := repository.NewCompletionRepository(dbConn, outboxRepo, log)

	analyticsService := service.NewAnalyticsService(
		service.StoreSnapshot{Habits: habitRepo, Completions: completionRepo},
		service.NewRedisDashboardCache(rdb, cfg.Analytics.CacheTTL),
		service.NewRedisChangeFeed(rdb, log),
		analytics.NewGenerator(analytics.NewRandomPicker(uint64(time.Now().UnixNano()))),
		log,
	)

	deduper := util.NewDeduper(rdb, cfg.Consumer.DedupTTL, log)
	retries := util.NewRetryCounter(rdb, cfg.Consumer.RetryTTL)

	breakerCfg := cfg.Reminder.Breaker
	breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
		log.Warn("Reminder publisher breaker changed state",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	reminders := service.NewReminderService(
		habitRepo,
		completionRepo,
		publisher,
		deduper,
		circuitbreaker.NewCircuitBreaker(breakerCfg),
		cfg.ReminderLocation(),
		log,
	)

	// Init Handlers
	snapshotHandler := mqhandler.NewSnapshotChangedHandler(analyticsService, log)
	reminderHandler := mqhandler.NewReminderDueHandler(deduper, mqhandler.LogDelivery{Logger: log}, log)

	bindings := []queueBinding{
		{queue: "analytics.habit.q", routingKey: "habit.*", handle: snapshotHandler.HandleSnapshotChanged},
		{queue: "analytics.completion.q", routingKey: contractsmq.RoutingKeyCompletionToggled, handle: snapshotHandler.HandleSnapshotChanged},
		{queue: "reminder.delivery.q", routingKey: contractsmq.RoutingKeyHabitReminderDue, handle: reminderHandler.HandleReminderDue},
	}

	g, gctx := errgroup.WithContext(ctx)

	checks := []httpserver.ReadyCheck{
		{Name: "db", Pinger: dbConn},
		{Name: "redis", Pinger: httpserver.RedisPinger{Client: rdb}},
		{Name: "publisher", Pinger: connected(publisher.IsConnected)},
	}

	for _, b := range bindings {
		log.Info("Initializing consumer", zap.String("queue", b.queue), zap.String("routing_key", b.routingKey))
		consumer, err := mq.NewConsumer(cfg.MQ.URL, b.queue, b.routingKey, cfg.MQ.Prefetch, log)
		if err != nil {
			log.Fatal("failed to init consumer", zap.String("queue", b.queue), zap.Error(err))
		}
		defer consumer.Close()
		consumer.SetHandler(b.handle)
		consumer.WithRetryPolicy(retries, cfg.Consumer.MaxRetries)
		checks = append(checks, httpserver.ReadyCheck{Name: b.queue, Pinger: connected(consumer.IsConnected)})

		g.Go(consumer.StartConsuming)
		g.Go(func() error {
			<-gctx.Done()
			consumer.Stop()
			return nil
		})
	}

	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		reminders.Run(gctx, cfg.Reminder.Interval)
		return nil
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Worker.Port,
		Handler:           httpserver.NewWorkerRouter(log, checks...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("worker http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("All consumers started, worker is ready to process messages", zap.String("health_addr", srv.Addr))

	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
		return
	}
	log.Info("Worker stopped")
}

// connected turns a liveness flag into a readiness check.
func connected(isConnected func() bool) httpserver.PingFunc {
	return func(context.Context) error {
		if !isConnected() {
			return errors.New("broker connection closed")
		}
		return nil
	}
}
