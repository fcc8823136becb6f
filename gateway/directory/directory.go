package directory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/internal/redis"
	streamredis "github.com/boardbeam/backend/internal/stream/redis"
)

const cleanupTimeout = 3 * time.Second

const (
	ErrReset  errors.Code = "directory_reset"
	ErrDecode errors.Code = "directory_decode"
)

// Directory mirrors the public state of every live room into a redis hash
// so that other processes can list rooms without talking to the gateway.
// Updates are coalesced per room and written by a single worker; the
// registry never waits on redis.
type Directory struct {
	forever redis.Forever
	events  streamredis.Producer
	key     string

	mu      sync.Mutex
	pending map[string]*gateway.PublicRoomState // nil entry means removed
	wake    chan struct{}
	done    chan struct{}

	logger *log.Logger
}

type Option func(*Directory)

// WithEvents appends every mirrored change to p as well.
func WithEvents(p streamredis.Producer) Option {
	return func(d *Directory) {
		d.events = p
	}
}

func New(forever redis.Forever, cfg *Config, logger *log.Logger, opts ...Option) *Directory {
	if forever == nil {
		panic("redis forever is required")
	}
	d := &Directory{
		forever: forever,
		key:     cfg.roomsKey(),
		pending: make(map[string]*gateway.PublicRoomState),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start drops entries left by a previous run and starts the writer.
func (d *Directory) Start(ctx context.Context) error {
	if err := d.forever.Del(ctx, d.key); err != nil {
		return errors.Wrapf(ErrReset, err, "reset %s", d.key)
	}
	d.logger.Info("Starting", log.String("key", d.key))
	go d.loop(ctx)
	return nil
}

func (d *Directory) Done() <-chan struct{} {
	return d.done
}

// RoomChanged implements gateway.RoomObserver.
func (d *Directory) RoomChanged(roomKey string, state gateway.PublicRoomState) {
	d.enqueue(roomKey, &state)
}

// RoomRemoved implements gateway.RoomObserver.
func (d *Directory) RoomRemoved(roomKey string) {
	d.enqueue(roomKey, nil)
}

func (d *Directory) enqueue(roomKey string, state *gateway.PublicRoomState) {
	d.mu.Lock()
	if _, ok := d.pending[roomKey]; ok {
		coalesced.Add(context.Background(), 1)
	}
	d.pending[roomKey] = state
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Directory) take() map[string]*gateway.PublicRoomState {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := d.pending
	d.pending = make(map[string]*gateway.PublicRoomState)
	return batch
}

func (d *Directory) loop(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			// rooms do not outlive the gateway process
			cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
			if err := d.forever.Del(cctx, d.key); err != nil {
				d.logger.Warn("Failed to clear directory", log.Error(err))
			}
			cancel()
			d.logger.Info("Stopped")
			return
		case <-d.wake:
			d.write(ctx, d.take())
		}
	}
}

func (d *Directory) write(ctx context.Context, batch map[string]*gateway.PublicRoomState) {
	for roomKey, state := range batch {
		op := "set"
		var (
			data []byte
			err  error
		)
		if state == nil {
			op = "del"
			err = d.forever.HDel(ctx, d.key, roomKey)
		} else if data, err = json.Marshal(state); err == nil {
			err = d.forever.HSet(ctx, d.key, roomKey, string(data))
		}

		attrs := metric.WithAttributes(attribute.String("op", op))
		if err != nil {
			writeErrors.Add(ctx, 1, attrs)
			d.logger.Warn("Directory write failed",
				log.String("room", roomKey),
				log.String("op", op),
				log.Error(err))
			continue
		}
		writes.Add(ctx, 1, attrs)
		d.publish(ctx, roomKey, op, data)
	}
}

func (d *Directory) publish(ctx context.Context, roomKey, op string, state []byte) {
	if d.events == nil {
		return
	}
	values := map[string]any{"room": roomKey, "op": op}
	if state != nil {
		values["state"] = string(state)
	}
	if _, err := d.events.Add(ctx, values); err != nil {
		writeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "event")))
		d.logger.Warn("Room event not appended",
			log.String("room", roomKey),
			log.String("stream", d.events.Stream()),
			log.Error(err))
	}
}

// List returns every room currently published.
func (d *Directory) List(ctx context.Context) (map[string]gateway.PublicRoomState, error) {
	all, err := d.forever.HGetAll(ctx, d.key)
	if err != nil {
		return nil, err
	}

	rooms := make(map[string]gateway.PublicRoomState, len(all))
	for roomKey, raw := range all {
		var state gateway.PublicRoomState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			d.logger.Warn("Skipping undecodable room entry",
				log.String("room", roomKey),
				log.Error(errors.Wrap(ErrDecode, err, "unmarshal")))
			continue
		}
		rooms[roomKey] = state
	}
	return rooms, nil
}
