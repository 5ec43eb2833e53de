package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// Workflow names used as metric labels.
const (
	WorkflowProvisioning = "provisioning"
	WorkflowRegister     = "register"
	WorkflowDrop         = "drop"
	WorkflowEnterScore   = "enter_score"
	WorkflowFinalGrades  = "final_grades"
)

// Workflow outcomes used as metric labels.
const (
	OutcomeSuccess      = "success"
	OutcomeRefused      = "refused"
	OutcomeFault        = "fault"
	OutcomeInconsistent = "inconsistent"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	workflowTotal   *prometheus.CounterVec
	inconsistencies *prometheus.CounterVec
	gradeRows       *prometheus.CounterVec
	dropRepairs     *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	inconsistentCount    uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	workflowTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_workflow_total",
		Help: "Workflow invocations by outcome",
	}, []string{"workflow", "outcome"})

	inconsistencies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_workflow_inconsistencies_total",
		Help: "Cross-store or multi-step writes left half-applied",
	}, []string{"workflow"})

	gradeRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_final_grade_rows_total",
		Help: "Final grade batch rows by result",
	}, []string{"result"})

	dropRepairs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erp_drop_repairs_total",
		Help: "Background enrollment delete retries by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		workflowTotal, inconsistencies, gradeRows, dropRepairs, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		workflowTotal:   workflowTotal,
		inconsistencies: inconsistencies,
		gradeRows:       gradeRows,
		dropRepairs:     dropRepairs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// RecordWorkflow counts one workflow call by outcome.
func (m *MetricsService) RecordWorkflow(workflow, outcome string) {
	if m == nil {
		return
	}
	m.workflowTotal.WithLabelValues(workflow, outcome).Inc()
}

// RecordInconsistency counts a half-applied write that needs operator attention or repair.
func (m *MetricsService) RecordInconsistency(workflow string) {
	if m == nil {
		return
	}
	m.inconsistencies.WithLabelValues(workflow).Inc()
	m.workflowTotal.WithLabelValues(workflow, OutcomeInconsistent).Inc()
	atomic.AddUint64(&m.inconsistentCount, 1)
}

// RecordFinalGradeBatch adds the tallies of one final grade batch.
func (m *MetricsService) RecordFinalGradeBatch(summary models.FinalGradeSummary) {
	if m == nil {
		return
	}
	m.gradeRows.WithLabelValues("success").Add(float64(summary.SuccessCount))
	m.gradeRows.WithLabelValues("incomplete").Add(float64(summary.IncompleteCount))
	m.gradeRows.WithLabelValues("fail").Add(float64(summary.FailCount))
}

// RecordDropRepair counts one background repair attempt outcome.
func (m *MetricsService) RecordDropRepair(result string) {
	if m == nil {
		return
	}
	m.dropRepairs.WithLabelValues(result).Inc()
}

// Snapshot returns aggregated metrics for the admin summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Inconsistencies:          atomic.LoadUint64(&m.inconsistentCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
