package services

import (
	"time"

	"nearby_server/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// discoveryRequests counts discovery calls.
	// Labels: channel, outcome (ok, empty, or an error kind)
	discoveryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearby",
		Subsystem: "discovery",
		Name:      "requests_total",
		Help:      "Discovery requests by channel and outcome",
	}, []string{"channel", "outcome"})

	// discoveryCandidates tracks how many users a successful discovery returned.
	discoveryCandidates = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nearby",
		Subsystem: "discovery",
		Name:      "candidates_returned",
		Help:      "Number of candidates returned per discovery",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 30, 40, 50},
	}, []string{"channel"})

	// signalUpdates counts signal writes.
	// Labels: channel, outcome
	signalUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearby",
		Subsystem: "signals",
		Name:      "updates_total",
		Help:      "Signal updates by channel and outcome",
	}, []string{"channel", "outcome"})

	// storeDuration measures store and oracle calls.
	// Labels: op (get_profile, save_signal, find_nearby, find_by_network, find_by_devices, relationships)
	storeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nearby",
		Subsystem: "store",
		Name:      "duration_seconds",
		Help:      "Store and oracle call latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"op"})
)

// outcomeOf turns a call result into a metric label.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

func recordDiscovery(channel models.Channel, result *models.DiscoveryResult, err error) {
	outcome := outcomeOf(err)
	if err == nil && result.TotalFound == 0 {
		outcome = "empty"
	}
	discoveryRequests.WithLabelValues(string(channel), outcome).Inc()
	if err == nil {
		discoveryCandidates.WithLabelValues(string(channel)).Observe(float64(result.TotalFound))
	}
}

func recordSignalUpdate(channel models.Channel, err error) {
	signalUpdates.WithLabelValues(string(channel), outcomeOf(err)).Inc()
}

func observeStore(op string, start time.Time) {
	storeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
