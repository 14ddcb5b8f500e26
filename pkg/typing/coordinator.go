// Package typing holds the ephemeral "currently typing" state per
// conversation. Nothing here is persisted; entries expire on their own if a
// client disappears without sending an explicit stop.
package typing

import (
	"sync"
	"time"

	"github.com/gramsetu/scheme-portal/pkg/convkey"
	"github.com/gramsetu/scheme-portal/pkg/metrics"
	"github.com/gramsetu/scheme-portal/pkg/model"
)

// Canonical server-side timeout. Clients may stop sooner; an entry
// unrefreshed past this window is treated as an implicit stop.
const (
	DefaultTimeout = 3 * time.Second
	sweepInterval  = 500 * time.Millisecond
)

// Router delivers an event to one identity's live connection. Satisfied by
// *presence.Registry.
type Router interface {
	RouteTo(userID string, ev model.Event) bool
}

type entry struct {
	name    string
	expires time.Time
}

type Coordinator struct {
	mu      sync.Mutex
	active  map[string]map[string]entry // conversation key -> user id
	router  Router
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewCoordinator starts the expiry janitor. timeout <= 0 selects the
// canonical default. Call Close to stop the janitor.
func NewCoordinator(router Router, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Coordinator{
		active:  make(map[string]map[string]entry),
		router:  router,
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Start records userID as typing in the conversation and notifies the
// counterpart, but only on the idle-to-typing transition: refreshes extend
// the expiry without re-notifying, so clients may signal per keystroke
// without flooding the peer.
func (c *Coordinator) Start(key, userID, name string) {
	c.mu.Lock()
	users := c.active[key]
	if users == nil {
		users = make(map[string]entry)
		c.active[key] = users
	}
	_, already := users[userID]
	users[userID] = entry{name: name, expires: time.Now().Add(c.timeout)}
	c.mu.Unlock()

	if !already {
		c.notify(key, userID, name, true)
	}
}

// Stop removes the entry immediately and notifies the counterpart. No-op if
// userID was not typing.
func (c *Coordinator) Stop(key, userID string) {
	c.mu.Lock()
	users := c.active[key]
	_, ok := users[userID]
	if ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(c.active, key)
		}
	}
	c.mu.Unlock()

	if ok {
		c.notify(key, userID, "", false)
	}
}

// ActiveIn returns the ids currently typing in the conversation.
func (c *Coordinator) ActiveIn(key string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	var out []string
	for id, e := range c.active[key] {
		if e.expires.After(now) {
			out = append(out, id)
		}
	}
	return out
}

func (c *Coordinator) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Coordinator) notify(key, userID, name string, started bool) {
	other, err := convkey.Other(key, userID)
	if err != nil {
		return
	}
	ev := model.Event{Type: model.EventUserStoppedTyping, ConversationKey: key, UserID: userID}
	if started {
		ev.Type = model.EventUserTyping
		ev.UserName = name
	}
	c.router.RouteTo(other, ev)
}

func (c *Coordinator) janitor() {
	tick := sweepInterval
	if c.timeout < sweepInterval {
		tick = c.timeout / 2
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			type expired struct{ key, userID string }
			var dropped []expired

			c.mu.Lock()
			for key, users := range c.active {
				for id, e := range users {
					if !e.expires.After(now) {
						delete(users, id)
						dropped = append(dropped, expired{key, id})
					}
				}
				if len(users) == 0 {
					delete(c.active, key)
				}
			}
			c.mu.Unlock()

			for _, d := range dropped {
				metrics.TypingExpiries.Inc()
				c.notify(d.key, d.userID, "", false)
			}
		}
	}
}
