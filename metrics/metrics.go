// Package metrics exposes the service's prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WSConnections tracks active WebSocket connections.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections",
		Help: "Active WebSocket connections",
	})

	// MessagesPublished counts messages admitted and published.
	MessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_published_total",
		Help: "Messages published",
	})

	// RateLimitBlocks counts messages rejected by admission control.
	RateLimitBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_rate_limit_blocked_total",
		Help: "Messages blocked by rate limit",
	})

	// PublishLatency observes the publish+persist path.
	PublishLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "chat_publish_latency_seconds",
		Help: "Publish and persist latency",
	})
)
