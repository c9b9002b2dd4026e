package mcpmgr

import (
	"sync"
	"time"
)

// Handle pairs a live protocol session with the transport it runs on.
type Handle struct {
	ServerID    string
	Config      ServerConfig
	Session     Session
	Transport   Transport
	ConnectedAt time.Time
}

// Via reports the transport kind that actually connected, which differs from
// Config.Transport after an HTTP to SSE fallback.
func (h *Handle) Via() TransportKind {
	if h.Transport == nil {
		return h.Config.Transport
	}
	return h.Transport.Kind()
}

// close shuts the session down first and the transport second. Both are
// always attempted.
func (h *Handle) close() (sessionErr, transportErr error) {
	if h.Session != nil {
		sessionErr = h.Session.Close()
	}
	if h.Transport != nil {
		transportErr = h.Transport.Close()
	}
	return sessionErr, transportErr
}

// Registry stores live handles by server ID. Implementations must be safe for
// concurrent use across different IDs; operations on one ID are serialized by
// the Manager's callers.
type Registry interface {
	// Put stores h, replacing any existing entry. The caller closes the
	// replaced handle.
	Put(id string, h *Handle)
	Get(id string) (*Handle, bool)
	// Remove deletes the entry and returns it when one existed.
	Remove(id string) (*Handle, bool)
	ListIDs() []string
}

// MemoryRegistry is the default Registry backed by a map.
type MemoryRegistry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{handles: make(map[string]*Handle)}
}

func (r *MemoryRegistry) Put(id string, h *Handle) {
	r.mu.Lock()
	r.handles[id] = h
	r.mu.Unlock()
}

func (r *MemoryRegistry) Get(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

func (r *MemoryRegistry) Remove(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if ok {
		delete(r.handles, id)
	}
	return h, ok
}

func (r *MemoryRegistry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live handles.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
