package gateway

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/gramsetu/scheme-portal/pkg/auth"
	"github.com/gramsetu/scheme-portal/pkg/metrics"
	"github.com/gramsetu/scheme-portal/pkg/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The portal UI is served from a separate origin in development.
		return true
	},
}

// ServeWS authenticates the handshake and hands the connection to its pumps.
// The credential arrives once, as a bearer header or token query param, and
// is never renegotiated mid-connection.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(auth.StripBearer(tokenString))
	if err != nil {
		log.Printf("gateway: rejected connection: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !model.EligibleForMessaging(claims.Role) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway: upgrade failed: %v", err)
		return
	}

	c := newClient(hub, conn, claims.Identity())
	metrics.WSConnections.Inc()

	// Reconnecting supersedes the previous connection.
	if prev := hub.registry.Register(c.identity.ID, c); prev != nil {
		if old, ok := prev.(*Client); ok {
			hub.dropConnection(old)
		}
	}
	hub.registry.BroadcastStatusChange(c.identity.ID, model.StatusOnline)
	log.Printf("gateway: %s connected", c.identity.ID)

	go c.writePump()
	go c.readPump()
}
