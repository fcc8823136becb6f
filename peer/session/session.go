package session

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/jsonrpc"
	wsrpc "github.com/boardbeam/backend/internal/jsonrpc/websocket"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/peer"
	"github.com/boardbeam/backend/peer/negotiation"
)

const (
	ErrNotConnected errors.Code = "not_connected"
	ErrJoinDenied   errors.Code = "join_denied"
	ErrJoinFailed   errors.Code = "join_failed"
)

type connState struct{}

// Session is one client of the gateway: it owns the websocket, tracks
// membership as the gateway reports it and feeds the negotiation coordinator.
type Session struct {
	cfg      *Config
	coord    *negotiation.Coordinator
	provider peer.MediaProvider
	handler  jsonrpc.Handler[connState]

	mu        sync.Mutex
	conn      jsonrpc.Conn[connState]
	self      peer.Ref
	roomKey   string
	state     gateway.PublicRoomState
	hasState  bool
	members   map[string]gateway.PeerInfo
	denied    constants.DenyReason
	onRoom    []func(gateway.PublicRoomState)
	onMembers []func()

	logger *log.Logger
}

// New builds a session whose coordinator sends its signals through the
// session's own connection. provider may be nil to never publish media.
func New(
	cfg *Config,
	negCfg *negotiation.Config,
	provider peer.MediaProvider,
	logger *log.Logger,
	opts ...negotiation.Option,
) (*Session, error) {
	s := &Session{
		cfg:      cfg,
		provider: provider,
		members:  make(map[string]gateway.PeerInfo),
		logger:   logger,
	}

	coord, err := negotiation.New(negCfg, s, logger.Module("Negotiation"), opts...)
	if err != nil {
		return nil, err
	}
	s.coord = coord

	s.handler = jsonrpc.NewHandler[connState](logger.Module("RPC"))
	s.handler.Def(constants.NotifyJoined, s.handleJoined)
	s.handler.Def(constants.NotifyPeers, s.handlePeers)
	s.handler.Def(constants.NotifyPeerJoined, s.handlePeerJoined)
	s.handler.Def(constants.NotifyPeerLeft, s.handlePeerLeft)
	s.handler.Def(constants.NotifyRoomState, s.handleRoomState)
	s.handler.Def(constants.NotifyJoinDenied, s.handleJoinDenied)
	s.handler.Def(constants.MethodRTCOffer, s.handleOffer)
	s.handler.Def(constants.MethodRTCAnswer, s.handleAnswer)
	s.handler.Def(constants.MethodRTCIce, s.handleCandidate)
	return s, nil
}

// Dial connects to the gateway. ctx bounds the handshake only.
func (s *Session) Dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	var opts *wsrpc.DialOptions
	if s.cfg.Token != "" {
		opts = &wsrpc.DialOptions{Header: http.Header{"Authorization": {"Bearer " + s.cfg.Token}}}
	}
	conn, err := wsrpc.Dial[connState](dialCtx, context.Background(), s.cfg.Server,
		s.handler, &connState{}, opts, s.logger.Module("WSRPC"))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.Info("Connected to gateway", log.String("server", s.cfg.Server))
	return nil
}

func (s *Session) client() (jsonrpc.Client[connState], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, errors.New(ErrNotConnected, "session is not connected")
	}
	return jsonrpc.TimeoutClient[connState](s.conn, s.cfg.CallTimeout), nil
}

// Done is closed once the gateway connection is gone.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.conn.Done()
}

// Join asks the gateway for a slot. Seat holders capture media first, a
// capture failure is logged and the join goes ahead without publishing.
func (s *Session) Join(ctx context.Context, roomKey string, role constants.Role, name string) (gateway.JoinResult, error) {
	client, err := s.client()
	if err != nil {
		return gateway.JoinResult{}, err
	}

	hadMedia := s.coord.LocalMedia() != nil
	if err := s.coord.AcquireLocalMedia(ctx, role, s.provider); err != nil {
		s.logger.Warn("Joining without local media", log.Error(err))
	}
	// drops media captured by this attempt only
	release := func() {
		if !hadMedia {
			s.coord.ReleaseLocalMedia()
		}
	}

	s.mu.Lock()
	s.denied = ""
	s.mu.Unlock()

	var res gateway.JoinResult
	req := gateway.JoinRequest{RoomKey: roomKey, Role: role, Name: name}
	if err := client.Call(ctx, constants.MethodJoin, req, &res); err != nil {
		release()
		return res, errors.Wrap(ErrJoinFailed, err, "join")
	}
	if !res.OK {
		release()
		s.logger.Info("Join denied",
			log.String("room", roomKey),
			log.String("role", string(role)),
			log.String("reason", string(res.Error)))
		return res, errors.Newf(ErrJoinDenied, "join denied: %s", res.Error)
	}

	s.logger.Info("Joined",
		log.String("room", roomKey),
		log.String("role", string(role)),
		log.Any("state", res.State))
	return res, nil
}

// Leave gives the slot back, closes every link and releases local media.
// The session may join again on the same connection.
func (s *Session) Leave(ctx context.Context) error {
	client, err := s.client()
	if err != nil {
		return err
	}
	err = client.Notify(ctx, constants.MethodLeave, nil)

	s.mu.Lock()
	s.self = peer.Ref{}
	s.roomKey = ""
	s.members = make(map[string]gateway.PeerInfo)
	s.mu.Unlock()

	s.coord.Leave()
	return err
}

// Close drops the connection, the gateway treats it as a disconnect.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	s.coord.Close()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// SendSignal relays a negotiation payload to another member of the room.
func (s *Session) SendSignal(ctx context.Context, to string, kind constants.SignalKind, payload json.RawMessage) error {
	client, err := s.client()
	if err != nil {
		return err
	}

	req := gateway.SignalRequest{To: to}
	if kind == constants.SignalCandidate {
		req.Candidate = payload
	} else {
		req.SDP = payload
	}
	return client.Notify(ctx, constants.MethodForSignal(kind), req)
}

func (s *Session) Coordinator() *negotiation.Coordinator {
	return s.coord
}

func (s *Session) Self() peer.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

func (s *Session) RoomKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomKey
}

// RoomState returns the last room-state received, false before any.
func (s *Session) RoomState() (gateway.PublicRoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.hasState
}

// Members returns the other members of the room sorted by id.
func (s *Session) Members() []gateway.PeerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]gateway.PeerInfo, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b gateway.PeerInfo) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// DenyReason is the reason of the last join-denied notification.
func (s *Session) DenyReason() constants.DenyReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.denied
}

func (s *Session) OnRoomState(fn func(gateway.PublicRoomState)) {
	s.mu.Lock()
	s.onRoom = append(s.onRoom, fn)
	s.mu.Unlock()
}

// OnMembersChanged registers fn to run after every roster change.
func (s *Session) OnMembersChanged(fn func()) {
	s.mu.Lock()
	s.onMembers = append(s.onMembers, fn)
	s.mu.Unlock()
}

func (s *Session) membersChanged() {
	s.mu.Lock()
	listeners := slices.Clone(s.onMembers)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
