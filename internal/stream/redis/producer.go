package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

const ErrAppend errors.Code = "stream_append"

// Producer appends entries to a capped redis stream.
type Producer interface {
	Add(ctx context.Context, values map[string]any) (string, error)
	Stream() string
}

type producerImpl struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *log.Logger
}

// NewProducer returns a producer for stream. When maxLen is positive the
// stream is trimmed approximately to that length on every append.
func NewProducer(client *redis.Client, stream string, maxLen int64, logger *log.Logger) (Producer, error) {
	if client == nil {
		return nil, errors.New(ErrAppend, "redis client is required")
	}
	if stream == "" {
		return nil, errors.New(ErrAppend, "stream name is required")
	}
	return &producerImpl{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}, nil
}

func (p *producerImpl) Stream() string {
	return p.stream
}

func (p *producerImpl) Add(ctx context.Context, values map[string]any) (string, error) {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", errors.Wrapf(ErrAppend, err, "append to %s", p.stream)
	}

	p.logger.Debug("Appended to stream",
		log.String("stream", p.stream),
		log.String("id", id))
	return id, nil
}
