package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"habitforge/internal/handler"
)

// Pinger is anything /readyz must reach before traffic is accepted.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapts a go-redis client to Pinger.
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ReadyCheck is one dependency reported by /readyz.
type ReadyCheck struct {
	Name   string
	Pinger Pinger
}

type Handlers struct {
	Auth      *handler.AuthHandler
	Habits    *handler.HabitHandler
	Analytics *handler.AnalyticsHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, jwtSecret string, logger *zap.Logger, db Pinger, cache Pinger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogger(logger))

	var checks []ReadyCheck
	if db != nil {
		checks = append(checks, ReadyCheck{Name: "db", Pinger: db})
	}
	if cache != nil {
		checks = append(checks, ReadyCheck{Name: "redis", Pinger: cache})
	}
	registerHealth(r, checks...)

	// Public
	r.POST("/register", h.Auth.Register)
	r.POST("/login", h.Auth.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/habits", h.Habits.List)
		auth.POST("/habits", h.Habits.Create)
		auth.DELETE("/habits/:id", h.Habits.Delete)
		auth.GET("/habits/:id/completions", h.Habits.Completions)
		auth.POST("/habits/:id/toggle", h.Habits.Toggle)
		auth.GET("/analytics", h.Analytics.Dashboard)
		auth.GET("/analytics/stream", h.Analytics.Stream)
	}

	return &Router{Engine: r}
}

// NewWorkerRouter serves health, readiness and metrics for the worker process.
func NewWorkerRouter(logger *zap.Logger, checks ...ReadyCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))
	registerHealth(r, checks...)
	return r
}

func registerHealth(r *gin.Engine, checks ...ReadyCheck) {
	health := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	head := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/healthz", health)
	r.HEAD("/healthz", head)
	r.GET("/health", health)
	r.HEAD("/health", head)

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check.Pinger.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": check.Name + "_not_ready"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
