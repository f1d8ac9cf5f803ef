package portal

import "sync"

// Registry holds the one live session that HTTP handlers route to. The
// handlers are registered without session context, so they look the
// session up here on every request.
//
// A Registry has a single slot: NewSession fails while it is occupied and
// Close empties it.
type Registry struct {
	mu      sync.Mutex
	session *Session
}

// DefaultRegistry is the registry used when SessionConfig.Registry is nil.
var DefaultRegistry = &Registry{}

// NewRegistry returns an empty registry. Tests use one per case.
func NewRegistry() *Registry {
	return &Registry{}
}

// Current returns the live session, or nil.
func (r *Registry) Current() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *Registry) attach(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return NewSessionActiveError()
	}
	r.session = s
	return nil
}

// detach clears the slot if it still holds s.
func (r *Registry) detach(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == s {
		r.session = nil
	}
}
