package blocksync

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "blocksync"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Whether or not a synchronization run is active.
	Syncing metrics.Gauge
	// Number of runs, labelled by outcome.
	Runs metrics.Counter
	// Number of penalties applied to peers.
	Penalties metrics.Counter
	// Number of blocks applied while synchronizing.
	BlocksApplied metrics.Counter
	// Duration of a run, in seconds.
	SyncDuration metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		Syncing: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "syncing",
			Help:      "Whether or not a node is block syncing. 1 if yes, 0 if no.",
		}, labels).With(labelsAndValues...),
		Runs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "runs",
			Help:      "Number of synchronization runs, by outcome.",
		}, append(labels, "outcome")).With(labelsAndValues...),
		Penalties: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "penalties",
			Help:      "Number of penalties applied to peers.",
		}, labels).With(labelsAndValues...),
		BlocksApplied: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "blocks_applied",
			Help:      "Number of blocks applied while synchronizing.",
		}, labels).With(labelsAndValues...),
		SyncDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "sync_duration",
			Help:      "Duration of a synchronization run, in seconds.",
			Buckets:   stdprometheus.ExponentialBucketsRange(0.1, 600, 10),
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Syncing:       discard.NewGauge(),
		Runs:          discard.NewCounter(),
		Penalties:     discard.NewCounter(),
		BlocksApplied: discard.NewCounter(),
		SyncDuration:  discard.NewHistogram(),
	}
}
