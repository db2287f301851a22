package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"habitforge/internal/analytics"
	"habitforge/internal/model"
	"habitforge/pkg/metrics"
)

type SnapshotLoader interface {
	Snapshot(ctx context.Context, userID int) ([]model.Habit, model.CompletionMap, error)
}

// DashboardCache stores computed dashboards per user and local day.
type DashboardCache interface {
	Get(ctx context.Context, userID int, date string) (*analytics.Dashboard, error)
	Set(ctx context.Context, userID int, date string, d *analytics.Dashboard) error
	Invalidate(ctx context.Context, userID int) error
}

// ChangeFeed fans out "snapshot changed" signals per user.
type ChangeFeed interface {
	Notify(ctx context.Context, userID int) error
	Subscribe(ctx context.Context, userID int) (<-chan struct{}, error)
}

// errCacheMiss is returned by DashboardCache.Get when nothing is stored.
var errCacheMiss = errors.New("dashboard cache miss")

type AnalyticsService struct {
	loader    SnapshotLoader
	cache     DashboardCache
	feed      ChangeFeed
	generator *analytics.Generator
	now       func() time.Time
	logger    *zap.Logger
}

func NewAnalyticsService(loader SnapshotLoader, cache DashboardCache, feed ChangeFeed, generator *analytics.Generator, logger *zap.Logger) *AnalyticsService {
	if generator == nil {
		generator = analytics.NewGenerator(nil)
	}
	return &AnalyticsService{
		loader:    loader,
		cache:     cache,
		feed:      feed,
		generator: generator,
		now:       time.Now,
		logger:    logger,
	}
}

// Dashboard returns the user's dashboard for today in loc, served from the
// cache when possible. Cache failures only cost a recompute.
func (s *AnalyticsService) Dashboard(ctx context.Context, userID int, loc *time.Location) (*analytics.Dashboard, error) {
	today := s.now().In(loc)
	date := model.FormatDate(today)

	if s.cache != nil {
		d, err := s.cache.Get(ctx, userID, date)
		switch {
		case err == nil:
			metrics.RecordCacheLookup(true)
			return d, nil
		case errors.Is(err, errCacheMiss):
			metrics.RecordCacheLookup(false)
		default:
			metrics.RecordCacheLookup(false)
			s.logger.Warn("Dashboard cache read failed", zap.Int("user_id", userID), zap.Error(err))
		}
	}

	d, err := s.Compute(ctx, userID, today)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, date, d); err != nil {
			s.logger.Warn("Dashboard cache write failed", zap.Int("user_id", userID), zap.Error(err))
		}
	}
	return d, nil
}

// Compute derives the dashboard for today without touching the cache.
func (s *AnalyticsService) Compute(ctx context.Context, userID int, today time.Time) (*analytics.Dashboard, error) {
	habits, completions, err := s.loader.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	start := time.Now()
	d := analytics.Compute(habits, completions, today, s.generator)
	metrics.RecordAnalyticsCompute(time.Since(start))
	return d, nil
}

// Invalidate drops cached dashboards and notifies watchers. It never fails.
func (s *AnalyticsService) Invalidate(ctx context.Context, userID int) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("Dashboard cache invalidation failed", zap.Int("user_id", userID), zap.Error(err))
		}
	}
	if s.feed != nil {
		if err := s.feed.Notify(ctx, userID); err != nil {
			s.logger.Warn("Change notification failed", zap.Int("user_id", userID), zap.Error(err))
		}
	}
}

// Watch yields a signal on every change to the user's snapshot until ctx ends.
func (s *AnalyticsService) Watch(ctx context.Context, userID int) (<-chan struct{}, error) {
	if s.feed == nil {
		return nil, errors.New("change feed not configured")
	}
	return s.feed.Subscribe(ctx, userID)
}

// RedisDashboardCache keeps dashboards under analytics:dashboard:{user}:{date}.
type RedisDashboardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDashboardCache(rdb *redis.Client, ttl time.Duration) *RedisDashboardCache {
	return &RedisDashboardCache{rdb: rdb, ttl: ttl}
}

func dashboardKey(userID int, date string) string {
	return "analytics:dashboard:" + strconv.Itoa(userID) + ":" + date
}

func (c *RedisDashboardCache) Get(ctx context.Context, userID int, date string) (*analytics.Dashboard, error) {
	data, err := c.rdb.Get(ctx, dashboardKey(userID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var d analytics.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode cached dashboard: %w", err)
	}
	return &d, nil
}

func (c *RedisDashboardCache) Set(ctx context.Context, userID int, date string, d *analytics.Dashboard) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, dashboardKey(userID, date), data, c.ttl).Err()
}

// Invalidate removes the user's dashboards for every cached date, since
// callers in different zones may be on different local days.
func (c *RedisDashboardCache) Invalidate(ctx context.Context, userID int) error {
	iter := c.rdb.Scan(ctx, 0, dashboardKey(userID, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// RedisChangeFeed publishes on the habits:{user} channel.
type RedisChangeFeed struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisChangeFeed(rdb *redis.Client, logger *zap.Logger) *RedisChangeFeed {
	return &RedisChangeFeed{rdb: rdb, logger: logger}
}

func changeChannel(userID int) string {
	return "habits:" + strconv.Itoa(userID)
}

func (f *RedisChangeFeed) Notify(ctx context.Context, userID int) error {
	return f.rdb.Publish(ctx, changeChannel(userID), "changed").Err()
}

// Subscribe coalesces bursts: a pending unread signal absorbs later ones.
func (f *RedisChangeFeed) Subscribe(ctx context.Context, userID int) (<-chan struct{}, error) {
	sub := f.rdb.Subscribe(ctx, changeChannel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", changeChannel(userID), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
