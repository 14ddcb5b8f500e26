// Package gateway is the connection-oriented front door: it authenticates
// each websocket, enforces role eligibility, manages conversation-room
// membership and relays realtime signals to the presence registry and the
// typing coordinator.
package gateway

import (
	"log"
	"sync"

	"github.com/gramsetu/scheme-portal/pkg/metrics"
	"github.com/gramsetu/scheme-portal/pkg/model"
	"github.com/gramsetu/scheme-portal/pkg/presence"
	"github.com/gramsetu/scheme-portal/pkg/typing"
)

// Hub owns room membership. Rooms are named by conversation key and exist
// only while someone is joined.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]bool
	registry *presence.Registry
	typing   *typing.Coordinator
}

func NewHub(registry *presence.Registry, typingCoord *typing.Coordinator) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]bool),
		registry: registry,
		typing:   typingCoord,
	}
}

func (h *Hub) join(key string, c *Client) {
	h.mu.Lock()
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[*Client]bool)
	}
	h.rooms[key][c] = true
	h.mu.Unlock()

	c.mu.Lock()
	c.joined[key] = true
	c.mu.Unlock()
}

// leave never fails, even if c is not currently joined.
func (h *Hub) leave(key string, c *Client) {
	h.mu.Lock()
	if room := h.rooms[key]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, key)
		}
	}
	h.mu.Unlock()

	c.mu.Lock()
	delete(c.joined, key)
	c.mu.Unlock()
}

func (h *Hub) leaveAll(c *Client) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.joined))
	for key := range c.joined {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		h.leave(key, c)
	}
}

// BroadcastRoom delivers ev to every connection currently joined to the
// conversation room, including the sender's other open sessions.
func (h *Hub) BroadcastRoom(key string, ev model.Event) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[key]))
	for c := range h.rooms[key] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.Deliver(ev)
	}
}

// RoomSize reports how many connections are joined to the room.
func (h *Hub) RoomSize(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[key])
}

// dropConnection runs the full disconnect path: room cleanup, presence
// unregister and the offline broadcast. Safe to call more than once.
func (h *Hub) dropConnection(c *Client) {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
		h.leaveAll(c)
		if h.registry.Unregister(c.identity.ID, c) {
			h.registry.BroadcastStatusChange(c.identity.ID, model.StatusOffline)
			log.Printf("gateway: %s disconnected", c.identity.ID)
		}
		metrics.WSConnections.Dec()
	})
}
