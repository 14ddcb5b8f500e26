// Package presence tracks which identities currently hold a live connection.
// State is process-local and rebuilt empty on restart; the durable record of
// messages never depends on it.
package presence

import (
	"context"
	"sync"

	"github.com/gramsetu/scheme-portal/pkg/model"
)

// Handle is a live routing target for one identity. Deliver must not block;
// it reports whether the event was handed to the transport.
type Handle interface {
	Deliver(ev model.Event) bool
}

// Mirror publishes online/offline transitions to an external liveness set so
// sibling services can observe presence. Best-effort.
type Mirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Registry maps identity id to at most one canonical handle. Reconnecting
// replaces the previous handle; stale handles are never routed to again.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
	mirror  Mirror
}

func NewRegistry(mirror Mirror) *Registry {
	return &Registry{handles: make(map[string]Handle), mirror: mirror}
}

// Register installs h as the canonical handle for userID and returns the
// superseded handle, if any, so the caller can close its connection.
func (r *Registry) Register(userID string, h Handle) Handle {
	r.mu.Lock()
	prev := r.handles[userID]
	r.handles[userID] = h
	r.mu.Unlock()

	if r.mirror != nil {
		_ = r.mirror.SetOnline(context.Background(), userID)
	}
	return prev
}

// Unregister removes userID's entry, but only if h is still the canonical
// handle: a reconnect may already have superseded it, and the old
// connection's teardown must not knock the new one offline. Reports whether
// the entry was actually removed.
func (r *Registry) Unregister(userID string, h Handle) bool {
	r.mu.Lock()
	current, ok := r.handles[userID]
	if !ok || current != h {
		r.mu.Unlock()
		return false
	}
	delete(r.handles, userID)
	r.mu.Unlock()

	if r.mirror != nil {
		_ = r.mirror.SetOffline(context.Background(), userID)
	}
	return true
}

// RouteTo delivers ev to userID's live handle. False means offline; callers
// treat that as a skip, not an error.
func (r *Registry) RouteTo(userID string, ev model.Event) bool {
	r.mu.RLock()
	h, ok := r.handles[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return h.Deliver(ev)
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[userID]
	return ok
}

// Snapshot returns the ids currently online.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handles))
	for id := range r.handles {
		out = append(out, id)
	}
	return out
}

// BroadcastStatusChange notifies every other connected identity that userID
// went online or offline. Best-effort.
func (r *Registry) BroadcastStatusChange(userID, status string) {
	ev := model.Event{Type: model.EventUserStatusChange, UserID: userID, Status: status}

	r.mu.RLock()
	targets := make([]Handle, 0, len(r.handles))
	for id, h := range r.handles {
		if id != userID {
			targets = append(targets, h)
		}
	}
	r.mu.RUnlock()

	for _, h := range targets {
		h.Deliver(ev)
	}
}
