package peer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/errors"
)

//go:generate mockgen -source=types.go -destination=mocks/mocks.go -package=mocks

const ErrMediaUnavailable errors.Code = "media_unavailable"

type LinkPhase string

const (
	PhaseIdle            LinkPhase = "idle"
	PhaseOfferSent       LinkPhase = "offer-sent"
	PhaseAwaitingOffer   LinkPhase = "awaiting-offer"
	PhaseAnswerExchanged LinkPhase = "answer-exchanged"
	PhaseActive          LinkPhase = "active"
	PhaseClosed          LinkPhase = "closed"
)

type Direction string

const (
	DirectionInitiator Direction = "initiator"
	DirectionResponder Direction = "responder"
)

// Ref names another session of the room.
type Ref struct {
	ID   string
	Role constants.Role
}

type TrackInfo struct {
	ID       string `json:"id"`
	StreamID string `json:"streamId"`
	Kind     string `json:"kind"`
}

// RemoteMedia is what one remote peer currently sends us.
type RemoteMedia struct {
	PeerID string
	Role   constants.Role
	Tracks []TrackInfo
}

// LinkInfo is a point in time view of one negotiation link.
type LinkInfo struct {
	PeerID    string
	Role      constants.Role
	Direction Direction
	Phase     LinkPhase
}

// SignalSender delivers an offer, answer or candidate to another session
// through the gateway relay.
type SignalSender interface {
	SendSignal(ctx context.Context, to string, kind constants.SignalKind, payload json.RawMessage) error
}

// MediaProvider captures local media for a seat holder.
type MediaProvider interface {
	Acquire(ctx context.Context) (*LocalMedia, error)
}

// LocalMedia is the captured media shared read-only by every outgoing link.
type LocalMedia struct {
	Tracks []webrtc.TrackLocal

	once    sync.Once
	release func()
}

func NewLocalMedia(tracks []webrtc.TrackLocal, release func()) *LocalMedia {
	return &LocalMedia{Tracks: tracks, release: release}
}

// Release stops the capture, later calls are no-ops.
func (m *LocalMedia) Release() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		if m.release != nil {
			m.release()
		}
	})
}

func (m *LocalMedia) HasKind(kind webrtc.RTPCodecType) bool {
	if m == nil {
		return false
	}
	for _, t := range m.Tracks {
		if t.Kind() == kind {
			return true
		}
	}
	return false
}
