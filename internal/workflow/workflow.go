// Package workflow holds the process lifecycle helpers shared by the
// binaries.
package workflow

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

// ErrStopped is the cancel cause of a context ended by its done channel.
const ErrStopped errors.Code = "stopped"

// Until returns a context canceled with ErrStopped once done is closed, or
// with the parent's cause when ctx ends first.
func Until(ctx context.Context, done <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	quit := make(chan struct{})
	go func() {
		select {
		case <-done:
			cancel(ErrStopped)
		case <-ctx.Done():
		case <-quit:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() { close(quit) })
		cancel(context.Canceled)
	}
}

// AwaitShutdown blocks until ctx is done or the process receives SIGINT or
// SIGTERM, then runs cleanup with timeout to finish. It reports whether
// cleanup completed in time.
func AwaitShutdown(ctx context.Context, logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) bool {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("Waiting for shutdown")
	<-sigCtx.Done()

	cleanCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic during shutdown", log.Any("panic", r))
			}
		}()
		logger.Info("Shutting down", log.Duration("timeout", timeout))
		cleanup(cleanCtx)
	}()

	select {
	case <-finished:
		logger.Info("Shutdown complete")
		return true
	case <-cleanCtx.Done():
		logger.Warn("Shutdown timed out")
		return false
	}
}
