package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

func TestUntilDoneChannel(t *testing.T) {
	done := make(chan struct{})
	ctx, stop := Until(context.Background(), done)
	defer stop()

	close(done)
	<-ctx.Done()
	assert.True(t, errors.Is(context.Cause(ctx), ErrStopped))
}

func TestUntilParentCanceled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := Until(parent, make(chan struct{}))
	defer stop()

	cancel()
	<-ctx.Done()
	assert.False(t, errors.Is(context.Cause(ctx), ErrStopped))
}

func TestUntilStop(t *testing.T) {
	ctx, stop := Until(context.Background(), make(chan struct{}))
	stop()
	stop()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestAwaitShutdownRunsCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	ok := AwaitShutdown(ctx, log.NewTest(t), time.Second, func(ctx context.Context) {
		_, hasDeadline := ctx.Deadline()
		ran = hasDeadline
	})
	assert.True(t, ok)
	assert.True(t, ran)
}

func TestAwaitShutdownTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := AwaitShutdown(ctx, log.NewTest(t), 10*time.Millisecond, func(ctx context.Context) {
		time.Sleep(200 * time.Millisecond)
	})
	assert.False(t, ok)
}

func TestAwaitShutdownRecoversPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := AwaitShutdown(ctx, log.NewTest(t), time.Second, func(context.Context) {
		panic("boom")
	})
	assert.True(t, ok)
}
