// Package metrics exposes Prometheus collectors for reward resolution and retention sweeps.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guildkeeper",
			Subsystem: "rewards",
			Name:      "resolutions_total",
			Help:      "Activity events resolved, by outcome.",
		},
		[]string{"outcome"},
	)

	sweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guildkeeper",
			Subsystem: "retention",
			Name:      "sweeps_total",
			Help:      "Retention sweeps run, by outcome.",
		},
		[]string{"outcome"},
	)

	purged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guildkeeper",
			Subsystem: "retention",
			Name:      "members_purged_total",
			Help:      "Departed members whose data was purged.",
		},
	)

	purgeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guildkeeper",
			Subsystem: "retention",
			Name:      "purge_failures_total",
			Help:      "Per-member purge failures.",
		},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "guildkeeper",
			Subsystem: "retention",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of retention sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	lastSweep = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "guildkeeper",
			Subsystem: "retention",
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time the last retention sweep finished.",
		},
	)
)

func init() {
	Registry.MustRegister(
		resolutions,
		sweeps,
		purged,
		purgeFailures,
		sweepDuration,
		lastSweep,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveResolution counts one resolved event. Outcome is rewarded, excluded or error.
func ObserveResolution(outcome string) {
	resolutions.WithLabelValues(outcome).Inc()
}

// ObserveSweep records a finished sweep.
func ObserveSweep(outcome string, cleaned, failures int, duration time.Duration, finished time.Time) {
	sweeps.WithLabelValues(outcome).Inc()
	purged.Add(float64(cleaned))
	purgeFailures.Add(float64(failures))
	sweepDuration.Observe(duration.Seconds())
	lastSweep.Set(float64(finished.Unix()))
}
