package constants

type Role string
type DenyReason string
type SignalKind string
type RejoinPolicy string

const (
	// exclusive seats, at most one session each per room
	RoleA Role = "A"
	RoleB Role = "B"
	// unlimited, never publish media nor initiate negotiation
	RoleSpectator Role = "spectator"
)

func (r Role) IsSeat() bool {
	return r == RoleA || r == RoleB
}

func (r Role) Valid() bool {
	return r.IsSeat() || r == RoleSpectator
}

const (
	DenyInvalidPayload DenyReason = "invalid_payload"
	DenySeatTaken      DenyReason = "seat_taken"
	DenyInternalError  DenyReason = "internal_error"
	DenyAlreadyJoined  DenyReason = "already_joined"
	// the connection ticket does not cover the room or role
	DenyForbidden DenyReason = "forbidden"
)

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "iceCandidate"
)

const (
	// a joined session joining elsewhere is implicitly removed from its old slot first
	RejoinSwitch RejoinPolicy = "switch"
	// a joined session must leave before joining elsewhere
	RejoinReject RejoinPolicy = "reject"
)

// websocket JSON-RPC methods
const (
	MethodJoin  = "join"
	MethodLeave = "leave"

	MethodRTCOffer  = "rtc-offer"
	MethodRTCAnswer = "rtc-answer"
	MethodRTCIce    = "rtc-ice"

	NotifyRoomState  = "room-state"
	NotifyJoined     = "joined"
	NotifyPeers      = "peers"
	NotifyPeerJoined = "peer-joined"
	NotifyPeerLeft   = "peer-left"
	NotifyJoinDenied = "join-denied"
)

func MethodForSignal(kind SignalKind) string {
	switch kind {
	case SignalOffer:
		return MethodRTCOffer
	case SignalAnswer:
		return MethodRTCAnswer
	case SignalCandidate:
		return MethodRTCIce
	}
	return ""
}
