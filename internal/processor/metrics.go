package processor

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "processor"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Height of the chain tip.
	Height metrics.Gauge
	// Number of blocks processed, labelled by fork status.
	BlocksProcessed metrics.Counter
	// Number of tie breaks whose new block failed and the previous tip was
	// restored.
	TieBreakCompensations metrics.Counter
	// Time spent processing a block, in seconds.
	ProcessingTime metrics.Histogram
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
		Height: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "height",
			Help:      "Height of the chain tip.",
		}, labels).With(labelsAndValues...),
		BlocksProcessed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "blocks_processed",
			Help:      "Number of blocks processed, by fork status.",
		}, append(labels, "fork_status")).With(labelsAndValues...),
		TieBreakCompensations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "tie_break_compensations",
			Help:      "Number of tie breaks rolled back to the previous tip.",
		}, labels).With(labelsAndValues...),
		ProcessingTime: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "processing_time",
			Help:      "Time spent processing a block, in seconds.",
			Buckets:   stdprometheus.ExponentialBucketsRange(0.001, 10, 8),
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Height:                discard.NewGauge(),
		BlocksProcessed:       discard.NewCounter(),
		TieBreakCompensations: discard.NewCounter(),
		ProcessingTime:        discard.NewHistogram(),
	}
}
