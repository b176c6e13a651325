// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_handled_total",
			Help: "Total number of bus messages handled by the processor",
		},
		[]string{"topic"},
	)

	MessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_failed_total",
			Help: "Total number of bus messages whose handling failed",
		},
		[]string{"topic", "code"},
	)

	MessageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "message_duration_seconds",
			Help: "Duration of message handling in seconds",
		},
		[]string{"topic"},
	)

	RetriesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retries_scheduled_total",
			Help: "Total number of retries placed on the delay queue",
		},
		[]string{"topic"},
	)

	RetriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retries_dropped_total",
			Help: "Total number of messages dropped after exhausting retries",
		},
		[]string{"topic"},
	)

	MessagesInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messages_in_flight",
			Help: "Number of messages currently being handled per topic",
		},
		[]string{"topic"},
	)
)
