package registry

import (
	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/internal/constants"
)

type room struct {
	key   string
	seatA string
	seatB string
	// every member in join order, seats included
	order   []string
	members map[string]*gateway.Membership
}

func newRoom(key string) *room {
	return &room{
		key:     key,
		members: make(map[string]*gateway.Membership),
	}
}

func (rm *room) seat(role constants.Role) string {
	switch role {
	case constants.RoleA:
		return rm.seatA
	case constants.RoleB:
		return rm.seatB
	}
	return ""
}

func (rm *room) add(m *gateway.Membership) {
	switch m.Role {
	case constants.RoleA:
		rm.seatA = m.SessionID
	case constants.RoleB:
		rm.seatB = m.SessionID
	}
	if _, ok := rm.members[m.SessionID]; !ok {
		rm.order = append(rm.order, m.SessionID)
	}
	rm.members[m.SessionID] = m
}

func (rm *room) remove(sessionID string) {
	if rm.seatA == sessionID {
		rm.seatA = ""
	}
	if rm.seatB == sessionID {
		rm.seatB = ""
	}
	delete(rm.members, sessionID)
	for i, id := range rm.order {
		if id == sessionID {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
}

func (rm *room) empty() bool {
	return len(rm.members) == 0
}

func (rm *room) public() gateway.PublicRoomState {
	spectators := len(rm.members)
	if rm.seatA != "" {
		spectators--
	}
	if rm.seatB != "" {
		spectators--
	}
	return gateway.PublicRoomState{
		SeatAOccupied:  rm.seatA != "",
		SeatBOccupied:  rm.seatB != "",
		SpectatorCount: spectators,
	}
}

// roster lists everyone except self, in join order.
func (rm *room) roster(self string) []gateway.PeerInfo {
	peers := make([]gateway.PeerInfo, 0, len(rm.order))
	for _, id := range rm.order {
		if id == self {
			continue
		}
		peers = append(peers, gateway.PeerInfo{ID: id, Role: rm.members[id].Role})
	}
	return peers
}
