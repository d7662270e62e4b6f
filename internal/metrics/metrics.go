// Package metrics holds the Prometheus collectors for the browsing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BrowseRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuner_browse_requests_total",
		Help: "Total number of inbound browse calls by operation",
	}, []string{"op"})

	NotificationsScheduledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuner_notifications_scheduled_total",
		Help: "Total number of children-changed notifications scheduled",
	}, []string{"parent"})

	NotificationsFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuner_notifications_fired_total",
		Help: "Total number of fired children-changed notifications by outcome",
	}, []string{"outcome"})

	NotificationsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuner_notifications_cancelled_total",
		Help: "Total number of pending notifications cancelled before firing",
	}, []string{"reason"})

	NotificationsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tuner_notifications_pending",
		Help: "Number of scheduled notifications that have not fired yet",
	})

	EventStreamsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tuner_event_streams_open",
		Help: "Number of open subscriber event streams",
	})
)

// IncBrowseRequest records an inbound browse call.
func IncBrowseRequest(op string) {
	if op == "" {
		op = "unknown"
	}
	BrowseRequestsTotal.WithLabelValues(op).Inc()
}

// IncScheduled records a newly scheduled notification.
func IncScheduled(parentID string) {
	NotificationsScheduledTotal.WithLabelValues(parentID).Inc()
	NotificationsPending.Inc()
}

// IncFired records a fired notification with its delivery outcome.
func IncFired(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	NotificationsFiredTotal.WithLabelValues(outcome).Inc()
	NotificationsPending.Dec()
}

// IncCancelled records a pending notification that was stopped before firing.
func IncCancelled(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	NotificationsCancelledTotal.WithLabelValues(reason).Inc()
	NotificationsPending.Dec()
}
