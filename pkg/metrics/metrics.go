// Package metrics exposes the portal's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_messages_appended_total",
		Help: "Messages durably appended, by kind.",
	}, []string{"kind"})

	RealtimeDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_realtime_delivered_total",
		Help: "Realtime events handed to a live connection.",
	})

	RealtimeSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_realtime_skipped_total",
		Help: "Realtime deliveries skipped because the recipient was offline.",
	})

	TypingExpiries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_typing_expiries_total",
		Help: "Typing entries dropped by the expiry sweep rather than an explicit stop.",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portal_ws_connections",
		Help: "Live websocket connections.",
	})
)
