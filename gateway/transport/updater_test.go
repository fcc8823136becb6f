package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

func newUpdaterServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/update", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Update-Token"))

		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.WriteHeader(statuses[n])
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestUpdaterTrigger(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv, calls := newUpdaterServer(t, http.StatusAccepted)
		u := NewUpdater(&UpdaterConfig{URL: srv.URL + "/", Token: "secret"}, log.NewTest(t))

		require.NoError(t, u.Trigger(context.Background()))
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("ServerErrorIsNotRetried", func(t *testing.T) {
		srv, calls := newUpdaterServer(t, http.StatusBadGateway, http.StatusOK)
		u := NewUpdater(&UpdaterConfig{URL: srv.URL, Token: "secret"}, log.NewTest(t))

		err := u.Trigger(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUpdaterFailed))
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("RetriesUntilReachable", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := l.Addr().String()
		require.NoError(t, l.Close())

		var calls atomic.Int32
		srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusAccepted)
		}))
		t.Cleanup(srv.Close)
		go func() {
			time.Sleep(300 * time.Millisecond)
			l, err := net.Listen("tcp", addr)
			if !assert.NoError(t, err) {
				return
			}
			srv.Listener = l
			srv.Start()
		}()

		u := NewUpdater(&UpdaterConfig{URL: "http://" + addr, Token: "secret"}, log.NewTest(t))
		require.NoError(t, u.Trigger(context.Background()))
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("TimeoutIsNotRetried", func(t *testing.T) {
		var calls atomic.Int32
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			<-release
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })

		u := NewUpdater(&UpdaterConfig{URL: srv.URL, Token: "secret"}, log.NewTest(t))
		u.client.SetTimeout(100 * time.Millisecond)

		require.Error(t, u.Trigger(context.Background()))
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("RejectedIsNotRetried", func(t *testing.T) {
		srv, calls := newUpdaterServer(t, http.StatusUnauthorized)
		u := NewUpdater(&UpdaterConfig{URL: srv.URL, Token: "secret"}, log.NewTest(t))

		err := u.Trigger(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUpdaterRejected))
		assert.EqualValues(t, 1, calls.Load())
	})
}

func TestUpdaterScheduleWaitsForDelay(t *testing.T) {
	srv, calls := newUpdaterServer(t, http.StatusOK)
	clock := clockwork.NewFakeClock()
	u := NewUpdater(&UpdaterConfig{URL: srv.URL, Token: "secret", Delay: 1500 * time.Millisecond},
		log.NewNop(), WithUpdaterClock(clock))

	u.Schedule(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, calls.Load())

	clock.Advance(500 * time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestUpdaterScheduleCanceled(t *testing.T) {
	srv, calls := newUpdaterServer(t, http.StatusOK)
	clock := clockwork.NewFakeClock()
	u := NewUpdater(&UpdaterConfig{URL: srv.URL, Token: "secret", Delay: 50 * time.Millisecond},
		log.NewNop(), WithUpdaterClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	u.Schedule(ctx)
	cancel()

	time.Sleep(50 * time.Millisecond)
	clock.Advance(time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, calls.Load())
}
