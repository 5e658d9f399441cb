// Package metrics declares the Prometheus collectors shared by the session,
// transport and capture layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session metrics
var (
	// ConnectedClients tracks clients currently registered with the session
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pitchcast_connected_clients",
			Help: "Number of clients registered with the broadcast session",
		},
	)

	// SessionState is 1 while broadcasting and 0 while idle
	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pitchcast_session_broadcasting",
			Help: "1 while the session is broadcasting, 0 while idle",
		},
	)

	// Ticks counts broadcast ticks that produced a reading
	Ticks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pitchcast_ticks_total",
			Help: "Total broadcast ticks",
		},
	)

	// TickDuration tracks the time spent converting and fanning out one tick
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pitchcast_tick_duration_seconds",
			Help:    "Time spent in a single broadcast tick",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05},
		},
	)

	// ReadingsDelivered counts pitch readings queued to clients, by origin
	ReadingsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcast_readings_delivered_total",
			Help: "Pitch readings queued to clients by origin (tick or client)",
		},
		[]string{"origin"},
	)

	// ClientsDropped counts clients removed for reasons other than a clean close
	ClientsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcast_clients_dropped_total",
			Help: "Clients removed after a failed delivery, by reason",
		},
		[]string{"reason"},
	)
)

// Transport metrics
var (
	// InboundMessages counts client messages by decoded type
	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcast_inbound_messages_total",
			Help: "Client-originated messages by type (ping, audio_data, invalid, limited)",
		},
		[]string{"type"},
	)

	// ConnectionsRejected counts upgrades refused before joining the session
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcast_connections_rejected_total",
			Help: "WebSocket connections refused, by reason",
		},
		[]string{"reason"},
	)
)

// Capture metrics
var (
	// CaptureFailures counts capture device errors by phase
	CaptureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcast_capture_failures_total",
			Help: "Capture device failures by phase (start or block)",
		},
		[]string{"phase"},
	)
)
