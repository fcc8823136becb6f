package gateway

import (
	"context"
	"encoding/json"

	"github.com/boardbeam/backend/internal/constants"
)

//go:generate mockgen -source=types.go -destination=mocks/mocks.go -package=mocks

// PublicRoomState is the room summary shared with every member, it never
// reveals who holds a seat.
type PublicRoomState struct {
	SeatAOccupied  bool `json:"seatAOccupied"`
	SeatBOccupied  bool `json:"seatBOccupied"`
	SpectatorCount int  `json:"spectatorCount"`
}

func (s PublicRoomState) Empty() bool {
	return !s.SeatAOccupied && !s.SeatBOccupied && s.SpectatorCount == 0
}

// PeerInfo identifies another member of the room. Name is only sent on arrival.
type PeerInfo struct {
	ID   string         `json:"id"`
	Role constants.Role `json:"role"`
	Name string         `json:"name,omitempty"`
}

type Membership struct {
	SessionID string
	RoomKey   string
	Role      constants.Role
	Name      string
}

type JoinRequest struct {
	RoomKey string         `json:"roomKey" validate:"required,roomkey"`
	Role    constants.Role `json:"role" validate:"required,role"`
	Name    string         `json:"name,omitempty" validate:"peername"`
}

type JoinResult struct {
	OK    bool                 `json:"ok"`
	State *PublicRoomState     `json:"state,omitempty"`
	Error constants.DenyReason `json:"error,omitempty"`
}

type Joined struct {
	ID      string         `json:"id"`
	Role    constants.Role `json:"role"`
	RoomKey string         `json:"roomKey"`
}

type PeerLeft struct {
	ID   string         `json:"id"`
	Role constants.Role `json:"role"`
}

type JoinDenied struct {
	Reason constants.DenyReason `json:"reason"`
}

// SignalRequest is what a client sends to have a payload relayed.
// Exactly one of SDP or Candidate is expected depending on the method.
type SignalRequest struct {
	To        string          `json:"to" validate:"required"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// SignalMessage is what the recipient receives, payloads are untouched.
type SignalMessage struct {
	From      string          `json:"from"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Role      constants.Role  `json:"role,omitempty"`
}

// Route is the registry's view of a relay attempt.
type Route struct {
	From     *Membership
	To       *Membership
	SameRoom bool
}

// Notifier delivers server-to-session notifications.
// Implementations must not block on the network.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, method string, params any) error
}

// RoomObserver is told about public room state changes, called from the
// registry loop so implementations must not block.
type RoomObserver interface {
	RoomChanged(roomKey string, state PublicRoomState)
	RoomRemoved(roomKey string)
}
