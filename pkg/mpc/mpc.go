package mpc

import "sync"

// DefaultID is the MPC identifier AS4 messages use implicitly when
// neither the UserMessage nor the governing P-Mode leg names one.
const DefaultID = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/defaultMPC"

// MPC identifies a single message partition channel.
type MPC struct {
	ID string
}

// Registry is the read-only contract the inbound header processor
// depends on. GetOrDefault is used exclusively for effective-MPC
// resolution on the UserMessage path; every other call site uses the
// strict Get/Contains form.
type Registry interface {
	Contains(id string) bool
	Get(id string) (MPC, bool)
	GetOrDefault(id string) (MPC, bool)
}

// InMemoryRegistry is a map-backed Registry, guarded by a RWMutex so
// concurrent inbound requests can read it safely while the host
// registers or removes MPCs out of band.
type InMemoryRegistry struct {
	mu  sync.RWMutex
	mpc map[string]MPC
}

// NewInMemoryRegistry creates a registry pre-populated with the default
// MPC, matching the AS4 requirement that the default channel always
// exists.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		mpc: map[string]MPC{
			DefaultID: {ID: DefaultID},
		},
	}
}

// Register adds or replaces an MPC in the registry.
func (r *InMemoryRegistry) Register(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mpc[id] = MPC{ID: id}
}

// Unregister removes an MPC from the registry. The default MPC cannot be
// removed.
func (r *InMemoryRegistry) Unregister(id string) {
	if id == DefaultID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mpc, id)
}

// Contains implements Registry.
func (r *InMemoryRegistry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.mpc[id]
	return ok
}

// Get implements Registry.
func (r *InMemoryRegistry) Get(id string) (MPC, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mpc[id]
	return m, ok
}

// GetOrDefault implements Registry. An empty id resolves directly to the
// default MPC; a non-empty but unknown id fails the lookup rather than
// silently falling back, since only the absence of an id is a request
// for the default channel.
func (r *InMemoryRegistry) GetOrDefault(id string) (MPC, bool) {
	if id == "" {
		return r.Get(DefaultID)
	}
	return r.Get(id)
}
