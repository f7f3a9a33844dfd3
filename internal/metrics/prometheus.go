// Package metrics exposes Prometheus instrumentation for the realtime
// core. Collectors are registered on the default registry and served
// from the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks currently registered transport connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goodpick_connections_active",
		Help: "Number of registered websocket connections.",
	})

	// EventsTotal counts inbound frames by event kind and outcome.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goodpick_events_total",
		Help: "Inbound realtime events by kind and outcome.",
	}, []string{"kind", "outcome"})

	// MessagesDelivered counts per-recipient deliveries.
	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goodpick_messages_delivered_total",
		Help: "Per-recipient message deliveries pushed to live connections.",
	})

	// TranslationsTotal counts translation decisions by result.
	TranslationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goodpick_translations_total",
		Help: "Translation decisions by result (skipped, translated, cached, degraded).",
	}, []string{"result"})

	// RecognitionSessionsActive tracks open streaming recognition sessions.
	RecognitionSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goodpick_recognition_sessions_active",
		Help: "Open streaming speech-recognition sessions.",
	})

	// RateLimitedTotal counts dropped events per action.
	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goodpick_rate_limited_total",
		Help: "Events dropped by the per-user rate limiter.",
	}, []string{"action"})
)
