// Package metrics provides Prometheus metrics for the leadflow ingestion core.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// scoreBuckets partitions the 0-100 score range into deciles.
var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100} //nolint:gochecknoglobals // constant bucket layout

// Manager owns every collector registered by leadflow.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	rowsProcessed  prometheus.Counter
	rowsAdmitted   prometheus.Counter
	rowsSkipped    *prometheus.CounterVec
	imports        *prometheus.CounterVec
	importDuration prometheus.Histogram
	manualEntries  *prometheus.CounterVec

	// Scoring
	scoreDistribution prometheus.Histogram
	bandAssignments   *prometheus.CounterVec

	// Repository
	leadsTotal    prometheus.Gauge
	leadsRemoved  prometheus.Counter
	queryDuration *prometheus.HistogramVec

	// Import queue and workers
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueEnqueues  *prometheus.CounterVec
	workerActive   prometheus.Gauge
	workerBusy     prometheus.Gauge
	errorsByOrigin *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "leadflow",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.rowsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: m.constLabels,
		Name: "rows_processed_total",
		Help: "Data lines processed by the ingestion pipeline, including blank and skipped lines",
	})
	m.rowsAdmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: m.constLabels,
		Name: "rows_admitted_total",
		Help: "Rows that passed validation and became leads",
	})
	m.rowsSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: m.constLabels,
		Name: "rows_skipped_total",
		Help: "Rows dropped by the ingestion pipeline",
	}, []string{"reason"})
	m.imports = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: m.constLabels,
		Name: "imports_total",
		Help: "Finished imports by terminal status",
	}, []string{"status"})
	m.importDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: m.constLabels,
		Name:    "import_duration_seconds",
		Help:    "Wall time of a whole import",
		Buckets: m.histogramBuckets,
	})
	m.manualEntries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: m.constLabels,
		Name: "manual_entries_total",
		Help: "Manual lead entries by result",
	}, []string{"result"})

	m.scoreDistribution = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "scoring", ConstLabels: m.constLabels,
		Name:    "score",
		Help:    "Distribution of assigned lead scores",
		Buckets: scoreBuckets,
	})
	m.bandAssignments = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "scoring", ConstLabels: m.constLabels,
		Name: "band_assignments_total",
		Help: "Leads per conversion probability band",
	}, []string{"band"})

	m.leadsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "repository", ConstLabels: m.constLabels,
		Name: "leads",
		Help: "Leads currently held by the repository",
	})
	m.leadsRemoved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "repository", ConstLabels: m.constLabels,
		Name: "leads_removed_total",
		Help: "Leads removed by explicit user action",
	})
	m.queryDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "repository", ConstLabels: m.constLabels,
		Name:    "operation_duration_seconds",
		Help:    "Latency of repository operations",
		Buckets: m.histogramBuckets,
	}, []string{"op"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "queue", ConstLabels: m.constLabels,
		Name: "size",
		Help: "Import requests waiting in the queue",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "queue", ConstLabels: m.constLabels,
		Name: "capacity",
		Help: "Configured import queue capacity",
	})
	m.queueEnqueues = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "queue", ConstLabels: m.constLabels,
		Name: "enqueue_total",
		Help: "Enqueue attempts by result",
	}, []string{"result"})
	m.workerActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "worker", ConstLabels: m.constLabels,
		Name: "active",
		Help: "Import workers running",
	})
	m.workerBusy = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "worker", ConstLabels: m.constLabels,
		Name: "busy",
		Help: "Import workers currently processing a job",
	})
	m.errorsByOrigin = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: m.constLabels,
		Name: "errors_total",
		Help: "Errors by component and type",
	}, []string{"component", "type"})
}

// RecordRowProcessed counts one processed data line.
func RecordRowProcessed() { globalManager.rowsProcessed.Inc() }

// RecordRowAdmitted counts one admitted row.
func RecordRowAdmitted() { globalManager.rowsAdmitted.Inc() }

// RecordRowSkipped counts one dropped row.
func RecordRowSkipped(reason string) { globalManager.rowsSkipped.WithLabelValues(reason).Inc() }

// RecordImport records a finished import and how long it took.
func RecordImport(status string, seconds float64) {
	globalManager.imports.WithLabelValues(status).Inc()
	globalManager.importDuration.Observe(seconds)
}

// RecordManualEntry counts an accepted or rejected manual entry.
func RecordManualEntry(result string) { globalManager.manualEntries.WithLabelValues(result).Inc() }

// ObserveScore records an assigned score and its probability band.
func ObserveScore(score int, band string) {
	globalManager.scoreDistribution.Observe(float64(score))
	globalManager.bandAssignments.WithLabelValues(band).Inc()
}

// UpdateLeadsTotal sets the repository size gauge.
func UpdateLeadsTotal(count int) { globalManager.leadsTotal.Set(float64(count)) }

// RecordLeadRemoved counts a removal.
func RecordLeadRemoved() { globalManager.leadsRemoved.Inc() }

// RecordRepositoryOperation observes the latency of a repository operation.
func RecordRepositoryOperation(op string, seconds float64) {
	globalManager.queryDuration.WithLabelValues(op).Observe(seconds)
}

// UpdateQueueSize sets the queued import request gauge.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an enqueue attempt.
func RecordQueueEnqueue(result string) { globalManager.queueEnqueues.WithLabelValues(result).Inc() }

// UpdateWorkerActiveCount sets the running worker gauge.
func UpdateWorkerActiveCount(count int) { globalManager.workerActive.Set(float64(count)) }

// WorkerBusy adjusts the busy worker gauge by delta.
func WorkerBusy(delta int) { globalManager.workerBusy.Add(float64(delta)) }

// RecordErrorByComponent counts an error.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByOrigin.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteText writes every registered metric family in the Prometheus text format.
func WriteText(w io.Writer) error {
	families, err := customRegistry.Gather()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGather, err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("%w: %w", ErrGather, err)
		}
	}
	return nil
}
