package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "pulse").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus exporter.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the flush-duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "pulse",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics exports runtime events as Prometheus metrics. Attach with
// pulse.AddObserver.
//
// Metrics collected:
//   - pulse_signal_writes_total: Counter of signal writes
//   - pulse_computed_recomputes_total: Counter of computed evaluations
//   - pulse_effect_runs_total: Counter of effect body executions
//   - pulse_flush_waves_total: Counter of flush waves
//   - pulse_flush_duration_seconds: Histogram of flush wave duration
//   - pulse_queued_effects: Gauge of queue depth at wave start
//   - pulse_effect_panics_total: Counter of recovered effect panics
//
// Example:
//
//	metrics := instrument.NewMetrics(instrument.WithNamespace("myapp"))
//	pulse.AddObserver(metrics)
//	http.Handle("/metrics", promhttp.Handler())
type Metrics struct {
	signalWrites  prometheus.Counter
	recomputes    prometheus.Counter
	effectRuns    prometheus.Counter
	flushWaves    prometheus.Counter
	flushDuration prometheus.Histogram
	queuedEffects prometheus.Gauge
	effectPanics  prometheus.Counter
}

// NewMetrics creates the Prometheus exporter and registers its collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		signalWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signal_writes_total",
			Help:        "Total number of signal writes",
			ConstLabels: config.ConstLabels,
		}),

		recomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "computed_recomputes_total",
			Help:        "Total number of computed evaluations",
			ConstLabels: config.ConstLabels,
		}),

		effectRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of effect body executions",
			ConstLabels: config.ConstLabels,
		}),

		flushWaves: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_waves_total",
			Help:        "Total number of flush waves",
			ConstLabels: config.ConstLabels,
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Flush wave duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		queuedEffects: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "queued_effects",
			Help:        "Number of effects queued at the start of the last flush wave",
			ConstLabels: config.ConstLabels,
		}),

		effectPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_panics_total",
			Help:        "Total number of recovered effect panics",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// SignalWrite implements pulse.Observer.
func (m *Metrics) SignalWrite(id, version uint64) {
	m.signalWrites.Inc()
}

// ComputedRecomputed implements pulse.Observer.
func (m *Metrics) ComputedRecomputed(id uint64) {
	m.recomputes.Inc()
}

// EffectRan implements pulse.Observer.
func (m *Metrics) EffectRan(id uint64) {
	m.effectRuns.Inc()
}

// FlushStart implements pulse.Observer.
func (m *Metrics) FlushStart(wave, queued int) {
	m.queuedEffects.Set(float64(queued))
}

// FlushEnd implements pulse.Observer.
func (m *Metrics) FlushEnd(wave, ran int, elapsed time.Duration) {
	m.flushWaves.Inc()
	m.flushDuration.Observe(elapsed.Seconds())
}

// EffectPanicked implements pulse.Observer.
func (m *Metrics) EffectPanicked(id uint64, err error) {
	m.effectPanics.Inc()
}
