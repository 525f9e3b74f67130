package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "weft").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for lifecycle durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
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

// WithBuckets sets the histogram buckets.
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
		Namespace: "weft",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the runtime's Prometheus collectors.
type Metrics struct {
	tasksQueued    *prometheus.CounterVec
	tasksRun       prometheus.Counter
	tasksCanceled  prometheus.Counter
	taskPanics     prometheus.Counter
	tasksPending   prometheus.Gauge
	batchPasses    prometheus.Counter
	batchEntries   prometheus.Counter
	activations    *prometheus.CounterVec
	deactivations  *prometheus.CounterVec
	lifecycleTime  *prometheus.HistogramVec
	activeControls prometheus.Gauge
	deferredWrites *prometheus.CounterVec
}

// NewMetrics creates and registers the runtime metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		tasksQueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "tasks_queued_total",
			Help:        "Total number of tasks queued, by priority",
			ConstLabels: config.ConstLabels,
		}, []string{"priority"}),

		tasksRun: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "tasks_run_total",
			Help:        "Total number of tasks executed",
			ConstLabels: config.ConstLabels,
		}),

		tasksCanceled: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "tasks_canceled_total",
			Help:        "Total number of tasks canceled before running",
			ConstLabels: config.ConstLabels,
		}),

		taskPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "task_panics_total",
			Help:        "Total number of tasks that panicked",
			ConstLabels: config.ConstLabels,
		}),

		tasksPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "tasks_pending",
			Help:        "Number of tasks waiting for the next flush",
			ConstLabels: config.ConstLabels,
		}),

		batchPasses: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_passes_total",
			Help:        "Total number of batch queue flush passes",
			ConstLabels: config.ConstLabels,
		}),

		batchEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_entries_total",
			Help:        "Total number of batch queue entries flushed",
			ConstLabels: config.ConstLabels,
		}),

		activations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "controller_activations_total",
			Help:        "Total controller activations by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		deactivations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "controller_deactivations_total",
			Help:        "Total controller deactivations by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		lifecycleTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "controller_lifecycle_seconds",
			Help:        "Duration of controller activation and deactivation",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"phase"}),

		activeControls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "controllers_active",
			Help:        "Number of controllers currently activated",
			ConstLabels: config.ConstLabels,
		}),

		deferredWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "target_writes_total",
			Help:        "Total render target writes by mode",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),
	}
}

// Result labels.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultCanceled = "canceled"
)

// TaskQueued records a newly queued task.
func (m *Metrics) TaskQueued(preempt bool) {
	if m == nil {
		return
	}
	priority := "normal"
	if preempt {
		priority = "preempt"
	}
	m.tasksQueued.WithLabelValues(priority).Inc()
	m.tasksPending.Inc()
}

// TaskRun records an executed task.
func (m *Metrics) TaskRun() {
	if m == nil {
		return
	}
	m.tasksRun.Inc()
	m.tasksPending.Dec()
}

// TaskCanceled records a task canceled before running.
func (m *Metrics) TaskCanceled() {
	if m == nil {
		return
	}
	m.tasksCanceled.Inc()
	m.tasksPending.Dec()
}

// TaskPanicked records a task that panicked while running.
func (m *Metrics) TaskPanicked() {
	if m == nil {
		return
	}
	m.taskPanics.Inc()
}

// BatchPass records one batch queue flush pass.
func (m *Metrics) BatchPass(entries int) {
	if m == nil {
		return
	}
	m.batchPasses.Inc()
	m.batchEntries.Add(float64(entries))
}

// Activation records a finished controller activation.
func (m *Metrics) Activation(result string, seconds float64) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(result).Inc()
	m.lifecycleTime.WithLabelValues("activate").Observe(seconds)
	if result == ResultOK {
		m.activeControls.Inc()
	}
}

// Deactivation records a finished controller deactivation.
func (m *Metrics) Deactivation(result string, seconds float64) {
	if m == nil {
		return
	}
	m.deactivations.WithLabelValues(result).Inc()
	m.lifecycleTime.WithLabelValues("deactivate").Observe(seconds)
	m.activeControls.Dec()
}

// TargetWrite records a render target write. deferred is true when the
// write went through the task queue.
func (m *Metrics) TargetWrite(deferred bool) {
	if m == nil {
		return
	}
	mode := "immediate"
	if deferred {
		mode = "deferred"
	}
	m.deferredWrites.WithLabelValues(mode).Inc()
}
