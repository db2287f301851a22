package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"habitforge/pkg/circuitbreaker"
	"habitforge/pkg/config"
)

type AnalyticsConfig struct {
	// Timezone is used when a request names no zone of its own.
	Timezone string        `yaml:"timezone"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type ReminderConfig struct {
	Interval time.Duration         `yaml:"interval"`
	Timezone string                `yaml:"timezone"`
	Breaker  circuitbreaker.Config `yaml:"breaker"`
}

type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
}

type ConsumerConfig struct {
	MaxRetries int64         `yaml:"max_retries"`
	RetryTTL   time.Duration `yaml:"retry_ttl"`
	DedupTTL   time.Duration `yaml:"dedup_ttl"`
}

// WorkerConfig is the worker's own health and metrics listener.
type WorkerConfig struct {
	Port string `yaml:"port"`
}

type Config struct {
	Env       string              `yaml:"-"`
	DB        config.DBConfig     `yaml:"db"`
	MQ        config.MQConfig     `yaml:"mq"`
	Redis     config.RedisConfig  `yaml:"redis"`
	JWT       config.JWTConfig    `yaml:"jwt"`
	Server    config.ServerConfig `yaml:"server"`
	Analytics AnalyticsConfig     `yaml:"analytics"`
	Reminder  ReminderConfig      `yaml:"reminder"`
	Outbox    OutboxConfig        `yaml:"outbox"`
	Consumer  ConsumerConfig      `yaml:"consumer"`
	Worker    WorkerConfig        `yaml:"worker"`
}

// Load reads the layered configuration selected by CONFIG_ENV and CONFIG_DIR.
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	return LoadFrom(env, config.GetEnv("CONFIG_DIR", "config"))
}

func LoadFrom(env, dir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := defaults()
	if err := config.Decode(cfgMap, cfg); err != nil {
		return nil, err
	}
	cfg.Env = env

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	if tz := os.Getenv("ANALYTICS_TIMEZONE"); tz != "" {
		cfg.Analytics.Timezone = tz
	}
	if port := os.Getenv("WORKER_PORT"); port != "" {
		cfg.Worker.Port = port
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		MQ:     config.MQConfig{Prefetch: 16},
		JWT:    config.JWTConfig{TTL: 24 * time.Hour},
		Server: config.ServerConfig{Port: "8080", ShutdownTimeout: 10 * time.Second},
		Analytics: AnalyticsConfig{
			Timezone: "UTC",
			CacheTTL: 5 * time.Minute,
		},
		Reminder: ReminderConfig{
			Interval: time.Minute,
			Timezone: "UTC",
			Breaker:  circuitbreaker.DefaultConfig(),
		},
		Outbox: OutboxConfig{Interval: time.Second, BatchSize: 100, MaxRetries: 5},
		Consumer: ConsumerConfig{
			MaxRetries: 5,
			RetryTTL:   time.Hour,
			DedupTTL:   24 * time.Hour,
		},
		Worker: WorkerConfig{Port: "9090"},
	}
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" || strings.HasPrefix(c.JWT.Secret, "${") {
		return fmt.Errorf("jwt.secret must be set")
	}
	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("analytics.timezone: %w", err)
	}
	if _, err := time.LoadLocation(c.Reminder.Timezone); err != nil {
		return fmt.Errorf("reminder.timezone: %w", err)
	}
	return nil
}

// AnalyticsLocation is the fallback zone for requests without X-Timezone.
func (c *Config) AnalyticsLocation() *time.Location {
	loc, err := time.LoadLocation(c.Analytics.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) ReminderLocation() *time.Location {
	loc, err := time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
