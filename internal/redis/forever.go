package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/internal/retry"
)

// Forever runs the hash commands the room directory needs, retrying until
// they succeed or ctx is done. redis.Nil is returned at once.
type Forever interface {
	Del(ctx context.Context, key string) error
	HSet(ctx context.Context, key string, values ...any) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
}

type forever struct {
	client redis.UniversalClient
	policy retry.Policy
	logger *log.Logger
}

// NewForever backs off from initial up to ceiling between attempts, zero
// values default to 100ms and 10s.
func NewForever(client redis.UniversalClient, initial, ceiling time.Duration, logger *log.Logger) Forever {
	if client == nil {
		panic("redis client is required")
	}
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if ceiling <= 0 {
		ceiling = 10 * time.Second
	}
	return &forever{
		client: client,
		policy: retry.Policy{Initial: initial, Max: ceiling},
		logger: logger,
	}
}

func run[T any](ctx context.Context, f *forever, name string, cmd func() (T, error)) (T, error) {
	return retry.Value(ctx, f.policy, f.logger, name, func() (T, error) {
		v, err := cmd()
		if errors.Is(err, redis.Nil) {
			return v, retry.Permanent(err)
		}
		return v, err
	})
}

func (f *forever) Del(ctx context.Context, key string) error {
	_, err := run(ctx, f, "DEL", func() (int64, error) {
		return f.client.Del(ctx, key).Result()
	})
	return err
}

func (f *forever) HSet(ctx context.Context, key string, values ...any) error {
	_, err := run(ctx, f, "HSET", func() (int64, error) {
		return f.client.HSet(ctx, key, values...).Result()
	})
	return err
}

func (f *forever) HGet(ctx context.Context, key, field string) (string, error) {
	return run(ctx, f, "HGET", func() (string, error) {
		return f.client.HGet(ctx, key, field).Result()
	})
}

func (f *forever) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return run(ctx, f, "HGETALL", func() (map[string]string, error) {
		return f.client.HGetAll(ctx, key).Result()
	})
}

func (f *forever) HDel(ctx context.Context, key string, fields ...string) error {
	_, err := run(ctx, f, "HDEL", func() (int64, error) {
		return f.client.HDel(ctx, key, fields...).Result()
	})
	return err
}
