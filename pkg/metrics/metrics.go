// Package metrics provides Prometheus instrumentation for coalesce components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for coalesce components.
type Registry struct {
	// Debounce Metrics
	DebounceScheduled *prometheus.CounterVec
	DebounceFired     *prometheus.CounterVec
	DebounceAborted   *prometheus.CounterVec

	// Throttle Metrics
	ThrottleScheduled *prometheus.CounterVec
	ThrottleFired     *prometheus.CounterVec
	ThrottleDelay     *prometheus.HistogramVec

	// Accumulate Metrics
	AccumulateFolded  *prometheus.CounterVec
	AccumulateFlushed *prometheus.CounterVec
	AccumulateAborted *prometheus.CounterVec

	// Queue Metrics
	QueueExecuted *prometheus.CounterVec
	QueueDepth    *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by coalesce components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig creates a registry honouring the namespace and
// constant labels of cfg.
func NewRegistryWithConfig(cfg Config) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(cfg.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(cfg.Labels, reg)
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	factory := promauto.With(reg)

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Registry{
		DebounceScheduled: counter("debounce", "scheduled_total",
			"Total number of debounced tasks scheduled", "debouncer_name"),
		DebounceFired: counter("debounce", "fired_total",
			"Total number of debounced tasks executed", "debouncer_name"),
		DebounceAborted: counter("debounce", "aborted_total",
			"Total number of pending debounced tasks cancelled or replaced", "debouncer_name"),

		ThrottleScheduled: counter("throttle", "scheduled_total",
			"Total number of throttled tasks scheduled", "throttler_name"),
		ThrottleFired: counter("throttle", "fired_total",
			"Total number of throttled tasks executed", "throttler_name"),
		ThrottleDelay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "throttle",
				Name:      "delay_seconds",
				Help:      "Delay applied to throttled tasks to honour the minimum interval",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"throttler_name"},
		),

		AccumulateFolded: counter("accumulate", "folded_total",
			"Total number of accumulate calls folded into a buffer", "debouncer_name"),
		AccumulateFlushed: counter("accumulate", "flushed_total",
			"Total number of buffers delivered to a task", "debouncer_name"),
		AccumulateAborted: counter("accumulate", "aborted_total",
			"Total number of pending flushes cancelled or replaced", "debouncer_name"),

		QueueExecuted: counter("queue", "executed_total",
			"Total number of work items executed by a serial queue", "queue_label"),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Number of work items waiting on a serial queue",
			},
			[]string{"queue_label"},
		),
	}
}
