// Package link models the transport channels vehicles are reachable through.
//
// Links are owned by the transport layer. Vehicles only keep link
// identifiers and resolve them through a Registry at dispatch time, so a
// link that was closed or unregistered is simply absent.
package link

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNotRegistered is returned when a link id is unknown to the registry.
	ErrNotRegistered = errors.New("link not registered")
	// ErrClosed is returned when the transport reports the link as closed.
	ErrClosed = errors.New("link closed")
)

// Link is a transport capable of sending raw encoded messages.
type Link interface {
	ID() string
	Send(raw []byte) error
}

// Closer is implemented by links able to report that they were shut down.
type Closer interface {
	Closed() bool
}

// IsClosed reports whether l implements Closer and is closed.
func IsClosed(l Link) bool {
	c, ok := l.(Closer)
	return ok && c.Closed()
}

// Registry maps link ids to live transports.
type Registry struct {
	mu    sync.RWMutex
	links map[string]Link
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{links: make(map[string]Link)}
}

// Register adds l. Registering the same id again replaces the entry.
func (r *Registry) Register(l Link) {
	if l == nil {
		return
	}
	r.mu.Lock()
	r.links[l.ID()] = l
	r.mu.Unlock()
}

// Unregister removes the link with the given id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.links, id)
	r.mu.Unlock()
}

// Lookup returns the live link for id. Closed links are reported with
// ErrClosed.
func (r *Registry) Lookup(id string) (Link, error) {
	r.mu.RLock()
	l, ok := r.links[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotRegistered
	}
	if IsClosed(l) {
		return nil, ErrClosed
	}
	return l, nil
}

// Has reports whether id resolves to an open link.
func (r *Registry) Has(id string) bool {
	_, err := r.Lookup(id)
	return err == nil
}

// IDs returns the registered link ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.links))
	for id := range r.links {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
