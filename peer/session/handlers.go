package session

import (
	"encoding/json"
	"slices"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/internal/jsonrpc"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/peer"
)

// Notification handlers run on the connection read loop and must not block.

func (s *Session) handleJoined(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
	joined, err := jsonrpc.DecodeParams[gateway.Joined](params)
	if err != nil {
		return nil, err
	}
	self := peer.Ref{ID: joined.ID, Role: joined.Role}

	s.mu.Lock()
	moved := s.self.ID != "" && (s.roomKey != joined.RoomKey || s.self.Role != joined.Role)
	s.self = self
	s.roomKey = joined.RoomKey
	if moved {
		s.members = make(map[string]gateway.PeerInfo)
	}
	s.mu.Unlock()

	// links of the previous slot are meaningless in the new one
	if moved {
		s.coord.Reset()
	}
	s.coord.SetSelf(self)
	s.logger.Info("Slot assigned",
		log.String("id", joined.ID),
		log.String("room", joined.RoomKey),
		log.String("role", string(joined.Role)))
	//nolint:nilnil
	return nil, nil
}

func (s *Session) handlePeers(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
	roster, err := jsonrpc.DecodeParams[[]gateway.PeerInfo](params)
	if err != nil {
		return nil, err
	}

	refs := make([]peer.Ref, 0, len(roster))
	s.mu.Lock()
	for _, p := range roster {
		s.members[p.ID] = p
		refs = append(refs, peer.Ref{ID: p.ID, Role: p.Role})
	}
	s.mu.Unlock()

	s.logger.Debug("Roster received", log.Int("peers", len(roster)))
	s.coord.OnPeerRoster(refs)
	s.membersChanged()
	//nolint:nilnil
	return nil, nil
}

func (s *Session) handlePeerJoined(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
	p, err := jsonrpc.DecodeParams[gateway.PeerInfo](params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.members[p.ID] = p
	s.mu.Unlock()

	s.logger.Info("Peer joined",
		log.String("peer", p.ID),
		log.String("role", string(p.Role)),
		log.String("name", p.Name))
	s.coord.OnPeerArrived(peer.Ref{ID: p.ID, Role: p.Role})
	s.membersChanged()
	//nolint:nilnil
	return nil, nil
}

func (s *Session) handlePeerLeft(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
	left, err := jsonrpc.DecodeParams[gateway.PeerLeft](params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.members, left.ID)
	s.mu.Unlock()

	s.logger.Info("Peer left",
		log.String("peer", left.ID),
		log.String("role", string(left.Role)))
	s.coord.OnPeerDeparted(left.ID)
	s.membersChanged()
	//nolint:nilnil
	return nil, nil
}

func (s *Session) handleRoomState(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
	state, err := jsonrpc.DecodeParams[gateway.PublicRoomState](params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state = state
	s.hasState = true
	listeners := slices.Clone(s.onRoom)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
	//nolint:nilnil
	return nil, nil
}

func (s *Session) handleJoinDenied(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
	denied, err := jsonrpc.DecodeParams[gateway.JoinDenied](params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.denied = denied.Reason
	s.mu.Unlock()
	//nolint:nilnil
	return nil, nil
}

func (s *Session) handleOffer(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
	msg, err := jsonrpc.DecodeParams[gateway.SignalMessage](params)
	if err != nil {
		return nil, err
	}
	s.coord.OnOfferReceived(msg.From, msg.Role, msg.SDP)
	//nolint:nilnil
	return nil, nil
}

func (s *Session) handleAnswer(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
	msg, err := jsonrpc.DecodeParams[gateway.SignalMessage](params)
	if err != nil {
		return nil, err
	}
	s.coord.OnAnswerReceived(msg.From, msg.SDP)
	//nolint:nilnil
	return nil, nil
}

func (s *Session) handleCandidate(_ jsonrpc.MethodContext[connState], params *json.RawMessage) (any, error) {
	msg, err := jsonrpc.DecodeParams[gateway.SignalMessage](params)
	if err != nil {
		return nil, err
	}
	s.coord.OnIceCandidateReceived(msg.From, msg.Candidate)
	//nolint:nilnil
	return nil, nil
}
