package redis

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	rclient "github.com/redis/go-redis/v9"
)

// ErrEmptyID is returned when a task id is blank.
var ErrEmptyID = errors.New("empty task id")

// Tracker counts performed tasks in Redis, one key per task id.
type Tracker struct {
	client *rclient.Client
	cfg    Config
	logger *slog.Logger
}

// Connect creates a Tracker and checks the connection.
func Connect(ctx context.Context, cfg Config) (*Tracker, error) {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "task.redis")
	logger.Debug("connecting to redis", "addr", cfg.Addr)

	rdb := rclient.NewClient(&rclient.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	t := NewTracker(rdb, cfg)
	if err := t.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("connected to redis", "addr", cfg.Addr)
	return t, nil
}

// NewTracker wraps an existing client.
func NewTracker(client *rclient.Client, cfg Config) *Tracker {
	return &Tracker{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: slog.Default().With("component", "task.redis"),
	}
}

// Key returns the Redis key for a task id.
func (t *Tracker) Key(id string) string {
	return t.cfg.KeyPrefix + id
}

// MarkPerformed increments the task's counter and refreshes its TTL.
func (t *Tracker) MarkPerformed(ctx context.Context, id string) error {
	key := t.Key(id)
	ctx, span := startSpan(ctx, "MarkPerformed", key, t.cfg.DB)
	defer span.End()

	if id == "" {
		recordError(span, ErrEmptyID)
		return ErrEmptyID
	}

	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, key)
	if t.cfg.TTL > 0 {
		pipe.Expire(ctx, key, t.cfg.TTL)
	}
	_, err := pipe.Exec(ctx)
	recordError(span, err)
	if err != nil {
		return errors.Wrapf(err, "failed to mark task %q as performed", id)
	}

	t.logger.Debug("task marked as performed", "task", id)
	return nil
}

// Performed returns how many times the task was marked, zero if never.
func (t *Tracker) Performed(ctx context.Context, id string) (int64, error) {
	key := t.Key(id)
	ctx, span := startSpan(ctx, "Performed", key, t.cfg.DB)
	defer span.End()

	n, err := t.client.Get(ctx, key).Int64()
	if errors.Is(err, rclient.Nil) {
		recordError(span, nil)
		return 0, nil
	}
	recordError(span, err)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get task %q", id)
	}
	return n, nil
}

// Ping checks the connection.
func (t *Tracker) Ping(ctx context.Context) error {
	ctx, span := startSpan(ctx, "Ping", "", t.cfg.DB)
	defer span.End()

	err := t.client.Ping(ctx).Err()
	recordError(span, err)
	return errors.Wrap(err, "failed to ping redis")
}

// Close closes the underlying client. Calling it twice is safe.
func (t *Tracker) Close() error {
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	if err != nil && !errors.Is(err, rclient.ErrClosed) {
		return errors.Wrap(err, "failed to close redis connection")
	}
	return nil
}
