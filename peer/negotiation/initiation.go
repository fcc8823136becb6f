package negotiation

import "github.com/boardbeam/backend/internal/constants"

// ShouldInitiate reports whether local sends the offer towards remote.
// A offers to B and to spectators, B offers to spectators, spectators never
// offer. For any pair of roles other than two spectators exactly one side
// initiates.
func ShouldInitiate(local, remote constants.Role) bool {
	switch local {
	case constants.RoleA:
		return remote == constants.RoleB || remote == constants.RoleSpectator
	case constants.RoleB:
		return remote == constants.RoleSpectator
	}
	return false
}

// linked reports whether two roles negotiate at all.
func linked(local, remote constants.Role) bool {
	return ShouldInitiate(local, remote) || ShouldInitiate(remote, local)
}
