package pmode

import "sync"

// Resolver maps the identifying parameters of an inbound UserMessage to
// the ProcessingMode that governs it. Implementations may consult a
// static catalog, a database, or a derivation rule — the header processor
// treats this as opaque and never mutates state through it. A resolution
// must be pure with respect to its arguments: calling Resolve twice with
// the same arguments returns equivalent results.
type Resolver interface {
	// Resolve looks up a P-Mode. pmodeID may be empty when the message did
	// not carry an AgreementRef/pmode attribute; responderAddress is the
	// host's configured server address, used as a resolution hint by
	// resolvers that disambiguate by responder endpoint.
	Resolve(pmodeID, service, action, initiatorID, responderID, responderAddress string) (*ProcessingMode, bool)
}

// StaticResolver resolves P-Modes from an in-memory catalog keyed by ID,
// falling back to a service/action match when no ID is given; the party
// IDs and responder address are not consulted.
// Mirrors the concurrency shape of the teacher's StaticEndpointResolver:
// a map guarded by a RWMutex, safe for concurrent reads from multiple
// request-handling goroutines; Register and Unregister take the write
// lock.
type StaticResolver struct {
	mu    sync.RWMutex
	byID  map[string]*ProcessingMode
	byKey map[string]*ProcessingMode // service|action -> pmode, used when pmodeID is absent
}

// NewStaticResolver creates an empty static P-Mode resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		byID:  make(map[string]*ProcessingMode),
		byKey: make(map[string]*ProcessingMode),
	}
}

// Register adds or replaces a P-Mode in the catalog.
func (r *StaticResolver) Register(pm *ProcessingMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[pm.ID] = pm
	r.byKey[businessKey(pm.Service, pm.Action)] = pm
}

// Unregister removes a P-Mode from the catalog.
func (r *StaticResolver) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pm, ok := r.byID[id]; ok {
		key := businessKey(pm.Service, pm.Action)
		if r.byKey[key] == pm {
			delete(r.byKey, key)
		}
	}
	delete(r.byID, id)
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(pmodeID, service, action, initiatorID, responderID, responderAddress string) (*ProcessingMode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if pmodeID != "" {
		pm, ok := r.byID[pmodeID]
		return pm, ok
	}

	pm, ok := r.byKey[businessKey(service, action)]
	return pm, ok
}

func businessKey(service, action string) string {
	return service + "|" + action
}
