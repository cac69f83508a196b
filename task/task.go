package task

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/pure-golang/mailgun/env"
	"github.com/pure-golang/mailgun/task/noop"
	"github.com/pure-golang/mailgun/task/redis"
)

// Provider selects the Tracker implementation.
type Provider string

const (
	ProviderRedis Provider = "redis" // production
	ProviderNoop  Provider = "noop"  // for unit tests
)

// Tracker records that a unit of work has been performed.
type Tracker interface {
	MarkPerformed(ctx context.Context, id string) error
	Close() error
}

// Config selects and configures the Tracker.
type Config struct {
	Provider Provider `envconfig:"TASK_PROVIDER" default:"noop"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string        `envconfig:"TASK_KEY_PREFIX" default:"da:task:"`
	TTL           time.Duration `envconfig:"TASK_TTL" default:"0s"`
}

// NewDefault creates a Tracker, reading Config from the environment.
func NewDefault(ctx context.Context) (Tracker, error) {
	var cfg Config
	if err := env.InitConfig(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to init config")
	}
	return New(ctx, cfg)
}

// New creates a Tracker from cfg.
func New(ctx context.Context, cfg Config) (Tracker, error) {
	switch cfg.Provider {
	case ProviderRedis:
		tracker, err := redis.Connect(ctx, redis.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		})
		if err != nil {
			return nil, err
		}
		return tracker, nil
	case ProviderNoop, "":
		return noop.NewTracker(), nil
	default:
		return nil, errors.Errorf("unknown task provider: %s", cfg.Provider)
	}
}
