package media

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/peer"
)

const (
	ErrDeviceUnavailable errors.Code = "device_unavailable"
	ErrTrackSetup        errors.Code = "track_setup"
)

const audioFrame = 20 * time.Millisecond

// opus frame carrying silence
var silence = []byte{0xf8, 0xff, 0xfe}

type StaticProvider struct {
	clock  clockwork.Clock
	logger *log.Logger
}

type StaticOption func(*StaticProvider)

func WithClock(clock clockwork.Clock) StaticOption {
	return func(p *StaticProvider) { p.clock = clock }
}

// NewStaticProvider captures a VP8 video and an Opus audio track. The audio
// track is fed silence until the handle is released, the video track stays
// idle.
func NewStaticProvider(logger *log.Logger, opts ...StaticOption) *StaticProvider {
	p := &StaticProvider{
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *StaticProvider) Acquire(ctx context.Context) (*peer.LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrDeviceUnavailable, err, "acquire")
	}

	streamID := uuid.NewString()
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, errors.Wrap(ErrTrackSetup, err, "video track")
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, errors.Wrap(ErrTrackSetup, err, "audio track")
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.pump(audio, stop)
	}()

	p.logger.Info("Local media started", log.String("stream", streamID))
	return peer.NewLocalMedia([]webrtc.TrackLocal{video, audio}, func() {
		close(stop)
		wg.Wait()
		p.logger.Info("Local media released", log.String("stream", streamID))
	}), nil
}

func (p *StaticProvider) pump(track *webrtc.TrackLocalStaticSample, stop <-chan struct{}) {
	ticker := p.clock.NewTicker(audioFrame)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if err := track.WriteSample(pionmedia.Sample{Data: silence, Duration: audioFrame}); err != nil {
				p.logger.Debug("Failed to write sample", log.Error(err))
			}
		}
	}
}

type unavailable struct {
	reason string
}

// Unavailable is a provider whose capture always fails with reason.
func Unavailable(reason string) peer.MediaProvider {
	return unavailable{reason: reason}
}

func (u unavailable) Acquire(context.Context) (*peer.LocalMedia, error) {
	return nil, errors.New(ErrDeviceUnavailable, u.reason)
}
