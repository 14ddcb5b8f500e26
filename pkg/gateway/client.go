package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gramsetu/scheme-portal/pkg/convkey"
	"github.com/gramsetu/scheme-portal/pkg/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is the middleman between one websocket connection and the messaging
// subsystem. It is the identity's presence.Handle while canonical.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity model.Identity

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	joined map[string]bool
}

func newClient(hub *Hub, conn *websocket.Conn, identity model.Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		joined:   make(map[string]bool),
	}
}

// Deliver queues ev on the connection's outbound buffer. Never blocks: a
// full buffer or a closed connection drops the event and reports false.
func (c *Client) Deliver(ev model.Event) bool {
	b, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	select {
	case <-c.done:
		return false
	case c.send <- b:
		return true
	default:
		return false
	}
}

// readPump translates inbound transport frames into calls on the typing
// coordinator and room bookkeeping. It owns the disconnect path.
func (c *Client) readPump() {
	defer c.hub.dropConnection(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("gateway: read error for %s: %v", c.identity.ID, err)
			}
			return
		}
		var ev model.Event
		if err := json.Unmarshal(frame, &ev); err != nil {
			c.Deliver(model.Event{Type: model.EventError, Error: "malformed event"})
			continue
		}
		c.handleEvent(ev)
	}
}

func (c *Client) handleEvent(ev model.Event) {
	switch ev.Type {
	case model.EventJoinConversation:
		// Room names are derived keys, but that is no substitute for a
		// membership check: only the key's two participants may join.
		if !convkey.IsParticipant(ev.ConversationKey, c.identity.ID) {
			c.Deliver(model.Event{
				Type:            model.EventError,
				ConversationKey: ev.ConversationKey,
				Error:           "not a participant of this conversation",
			})
			return
		}
		c.hub.join(ev.ConversationKey, c)
	case model.EventLeaveConversation:
		c.hub.leave(ev.ConversationKey, c)
	case model.EventTypingStart:
		if !convkey.IsParticipant(ev.ConversationKey, c.identity.ID) {
			return
		}
		c.hub.typing.Start(ev.ConversationKey, c.identity.ID, c.identity.Name)
	case model.EventTypingStop:
		if !convkey.IsParticipant(ev.ConversationKey, c.identity.ID) {
			return
		}
		c.hub.typing.Stop(ev.ConversationKey, c.identity.ID)
	case model.EventUserOnline:
		c.hub.registry.BroadcastStatusChange(c.identity.ID, model.StatusOnline)
	default:
		c.Deliver(model.Event{Type: model.EventError, Error: "unknown event type"})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.dropConnection(c)
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
