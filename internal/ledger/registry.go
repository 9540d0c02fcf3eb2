package ledger

import "sync"

// registry tracks role membership. Entries are append-only; owner never changes.
type registry struct {
	mu      sync.RWMutex
	owner   Address
	members map[Role]map[Address]struct{}
}

func newRegistry(owner Address) *registry {
	r := &registry{
		owner:   owner,
		members: make(map[Role]map[Address]struct{}, len(Roles)),
	}
	for _, role := range Roles {
		r.members[role] = make(map[Address]struct{})
	}
	return r
}

func (r *registry) has(role Role, addr Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[role][addr]
	return ok
}

// addLocked requires r.mu held for writing.
func (r *registry) addLocked(role Role, addr Address) {
	r.members[role][addr] = struct{}{}
}

func (r *registry) rolesOf(addr Address) []Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Role{}
	for _, role := range Roles {
		if _, ok := r.members[role][addr]; ok {
			out = append(out, role)
		}
	}
	return out
}
