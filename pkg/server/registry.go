package server

import "sync"

// ConnectionRegistry enforces the per-address concurrent connection
// cap. State is process-local and rebuilt from zero on restart; a
// multi-process deployment would need a shared store to enforce the
// cap globally.
type ConnectionRegistry struct {
	mu     sync.Mutex
	counts map[string]int
	max    int
}

// NewConnectionRegistry creates a registry with the given per-address cap
func NewConnectionRegistry(maxPerAddress int) *ConnectionRegistry {
	return &ConnectionRegistry{
		counts: make(map[string]int),
		max:    maxPerAddress,
	}
}

// OnConnect records a new connection from address. It returns false
// when the address is at its cap, in which case the caller must
// terminate the connection and the count is unchanged.
func (r *ConnectionRegistry) OnConnect(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.counts[address] >= r.max {
		return false
	}
	r.counts[address]++
	return true
}

// OnDisconnect decrements the live-count for address, removing the
// entry entirely at zero so the map stays bounded by live addresses.
func (r *ConnectionRegistry) OnDisconnect(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, ok := r.counts[address]
	if !ok {
		return
	}
	if count <= 1 {
		delete(r.counts, address)
		return
	}
	r.counts[address] = count - 1
}

// ActiveAddresses returns the number of addresses with live connections
func (r *ConnectionRegistry) ActiveAddresses() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.counts)
}
