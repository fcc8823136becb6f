// Package retry runs operations under an exponential backoff policy on top
// of github.com/cenkalti/backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/boardbeam/backend/internal/log"
)

// Policy is an exponential backoff. A zero MaxElapsed retries until the
// context is done.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	MaxElapsed time.Duration
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	b.MaxElapsedTime = p.MaxElapsed
	return backoff.WithContext(b, ctx)
}

// Permanent stops the retries, Do returns err unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, fails permanently, the policy gives up or
// ctx is done. name labels the log lines of failed attempts.
func Do(ctx context.Context, p Policy, logger *log.Logger, name string, op func() error) error {
	_, err := Value(ctx, p, logger, name, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Value is Do for an operation returning a result.
func Value[T any](ctx context.Context, p Policy, logger *log.Logger, name string, op func() (T, error)) (T, error) {
	attempt := 0
	res, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		return op()
	}, p.backOff(ctx), func(err error, next time.Duration) {
		logger.Warn("Attempt failed",
			log.String("operation", name),
			log.Int("attempt", attempt),
			log.Duration("next", next),
			log.Error(err))
	})
	if err == nil && attempt > 1 {
		logger.Info("Recovered", log.String("operation", name), log.Int("attempts", attempt))
	}
	return res, err
}
