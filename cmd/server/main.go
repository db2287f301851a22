package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"habitforge/internal/analytics"
	"habitforge/internal/config"
	"habitforge/internal/handler"
	"habitforge/internal/httpserver"
	"habitforge/internal/repository"
	"habitforge/internal/service"
	"habitforge/pkg/db"
	"habitforge/pkg/logger"
	"habitforge/pkg/outbox"
	redisclient "habitforge/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	// 2. Init DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// 3. Init Redis
	rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	// 4. Init repositories
	outboxRepo := outbox.NewRepository(dbConn)
	userRepo := repository.NewUserRepository(dbConn, log)
	habitRepo := repository.NewHabitRepository(dbConn, outboxRepo, log)
	completionRepo := repository.NewCompletionRepository(dbConn, outboxRepo, log)

	// 5. Init services
	generator := analytics.NewGenerator(analytics.NewRandomPicker(uint64(time.Now().UnixNano())))
	analyticsService := service.NewAnalyticsService(
		service.StoreSnapshot{Habits: habitRepo, Completions: completionRepo},
		service.NewRedisDashboardCache(rdb, cfg.Analytics.CacheTTL),
		service.NewRedisChangeFeed(rdb, log),
		generator,
		log,
	)
	habitService := service.NewHabitService(habitRepo, completionRepo, analyticsService, log)
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL, log)

	// 6. Init handlers + router
	zone := cfg.AnalyticsLocation()
	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:      handler.NewAuthHandler(authService, log),
		Habits:    handler.NewHabitHandler(habitService, zone, log),
		Analytics: handler.NewAnalyticsHandler(analyticsService, zone, log),
	}, cfg.JWT.Secret, log, dbConn, httpserver.RedisPinger{Client: rdb})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. Run server
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// open SSE streams do not drain on their own
		log.Warn("Graceful shutdown timed out, closing connections", zap.Error(err))
		_ = srv.Close()
	}
}
