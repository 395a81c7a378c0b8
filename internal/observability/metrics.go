// Package observability holds the Prometheus collectors shared across packages.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityTrackedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "activities",
		Name:      "tracked_total",
		Help:      "Number of activities recorded, labeled by destination store.",
	}, []string{"store"})

	cooldownRejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "activities",
		Name:      "cooldown_rejections_total",
		Help:      "Track attempts rejected because the activity type is cooling down.",
	}, []string{"activity_type"})

	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wellness",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted to Postgres.",
	})

	syncRecordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Offline records processed by login sync, labeled by collection and outcome.",
	}, []string{"collection", "outcome"})

	assistantRequestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "assistant",
		Name:      "requests_total",
		Help:      "Generative-text requests, labeled by outcome.",
	}, []string{"outcome"})

	assistantLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wellness",
		Subsystem: "assistant",
		Name:      "request_duration_seconds",
		Help:      "Time spent waiting on the generative-text endpoint.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		activityTrackedCounter,
		cooldownRejectedCounter,
		activityPersistGauge,
		syncRecordsCounter,
		assistantRequestsCounter,
		assistantLatency,
	)
}

// RecordActivityTracked counts an activity written to store ("remote" or "local").
func RecordActivityTracked(store string) {
	activityTrackedCounter.WithLabelValues(store).Inc()
}

// RecordCooldownRejected counts a blocked track attempt.
func RecordCooldownRejected(activityType string) {
	cooldownRejectedCounter.WithLabelValues(activityType).Inc()
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordSync counts n records of collection with the given outcome.
func RecordSync(collection, outcome string, n int) {
	if n <= 0 {
		return
	}
	syncRecordsCounter.WithLabelValues(collection, outcome).Add(float64(n))
}

// RecordAssistantRequest observes one assistant call.
func RecordAssistantRequest(outcome string, elapsed time.Duration) {
	assistantRequestsCounter.WithLabelValues(outcome).Inc()
	assistantLatency.Observe(elapsed.Seconds())
}
