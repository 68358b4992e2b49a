package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus instrumentation for one nclavd process.
type Metrics struct {
	config MetricsConfig

	reconcilesStarted   *prometheus.CounterVec
	reconcilesCompleted *prometheus.CounterVec
	reconcileDuration   *prometheus.HistogramVec

	resourcesManaged *prometheus.GaugeVec
	resourceState    *prometheus.GaugeVec

	driverCalls    *prometheus.CounterVec
	driverDuration *prometheus.HistogramVec
	driverErrors   *prometheus.CounterVec

	errorsByKind *prometheus.CounterVec

	iacRuns       *prometheus.CounterVec
	tfLockDenials *prometheus.CounterVec

	activeReconciles prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics builds a Metrics collector. A disabled config returns a
// no-op instance whose Record*/Set* methods are safe to call.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,

		reconcilesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconciles_started_total", Help: "Total reconcile passes started.",
		}, []string{"dry_run"}),
		reconcilesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconciles_completed_total", Help: "Total reconcile passes completed, by whether any resource error occurred.",
		}, []string{"status"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "reconcile_duration_seconds", Help: "Reconcile pass duration.", Buckets: buckets,
		}, []string{"status"}),

		resourcesManaged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "resources_managed", Help: "Current count of applied resources.",
		}, []string{"kind", "status"}),
		resourceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "resource_state", Help: "Per-resource health (1=active, 0=not active).",
		}, []string{"resource_id", "kind"}),

		driverCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "driver_calls_total", Help: "Total driver method invocations.",
		}, []string{"cloud", "method"}),
		driverDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "driver_call_duration_seconds", Help: "Driver call duration.", Buckets: buckets,
		}, []string{"cloud", "method"}),
		driverErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "driver_errors_total", Help: "Total driver call failures.",
		}, []string{"cloud", "method"}),

		errorsByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total", Help: "Total classified errors by taxonomy kind.",
		}, []string{"kind"}),

		iacRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "iac_runs_total", Help: "Total Terraform/OpenTofu subprocess runs.",
		}, []string{"operation", "status"}),
		tfLockDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tf_lock_conflicts_total", Help: "Total 409 responses from the state lock endpoint.",
		}, nil),

		activeReconciles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_reconciles", Help: "Current number of in-flight reconcile passes.",
		}),
	}

	registry.MustRegister(
		m.reconcilesStarted, m.reconcilesCompleted, m.reconcileDuration,
		m.resourcesManaged, m.resourceState,
		m.driverCalls, m.driverDuration, m.driverErrors,
		m.errorsByKind, m.iacRuns, m.tfLockDenials, m.activeReconciles,
	)
	return m, nil
}

func (m *Metrics) RecordReconcileStarted(dryRun bool) {
	if m.reconcilesStarted == nil {
		return
	}
	m.reconcilesStarted.WithLabelValues(boolLabel(dryRun)).Inc()
	m.activeReconciles.Inc()
}

func (m *Metrics) RecordReconcileCompleted(status string, duration time.Duration) {
	if m.reconcilesCompleted == nil {
		return
	}
	m.reconcilesCompleted.WithLabelValues(status).Inc()
	m.reconcileDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeReconciles.Dec()
}

func (m *Metrics) SetResourceCount(kind, status string, count float64) {
	if m.resourcesManaged == nil {
		return
	}
	m.resourcesManaged.WithLabelValues(kind, status).Set(count)
}

func (m *Metrics) SetResourceState(resourceID, kind string, active bool) {
	if m.resourceState == nil {
		return
	}
	v := 0.0
	if active {
		v = 1.0
	}
	m.resourceState.WithLabelValues(resourceID, kind).Set(v)
}

func (m *Metrics) RecordDriverCall(cloud, method string, duration time.Duration, err error) {
	if m.driverCalls == nil {
		return
	}
	m.driverCalls.WithLabelValues(cloud, method).Inc()
	m.driverDuration.WithLabelValues(cloud, method).Observe(duration.Seconds())
	if err != nil {
		m.driverErrors.WithLabelValues(cloud, method).Inc()
	}
}

func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordIacRun(operation, status string) {
	if m.iacRuns == nil {
		return
	}
	m.iacRuns.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) RecordTFLockConflict() {
	if m.tfLockDenials == nil {
		return
	}
	m.tfLockDenials.WithLabelValues().Inc()
}

// Handler returns the HTTP handler /metrics should be mounted at.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Timer measures elapsed wall-clock time for a RecordX call.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer                   { return &Timer{start: time.Now()} }
func (t *Timer) Duration() time.Duration { return time.Since(t.start) }
