package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/school-system/grade-engine/internal/grading"
)

// MetricsService owns the Prometheus registry for the API. Every method is
// safe on a nil receiver so metrics can be switched off.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	gradeOutcomes    *prometheus.CounterVec
	batchDuration    prometheus.Histogram
	batchSize        prometheus.Histogram
	configRejections *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		gradeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_computations_total",
			Help: "Student grade computations by outcome",
		}, []string{"outcome"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grade_batch_duration_seconds",
			Help:    "Wall time of batch grade computations",
			Buckets: prometheus.DefBuckets,
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grade_batch_students",
			Help:    "Number of students per batch computation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		configRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "distribution_rejections_total",
			Help: "Mark distributions rejected by validation, by reason",
		}, []string{"reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "distribution_cache_lookups_total",
			Help: "Resolved distribution cache lookups by result",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.gradeOutcomes, m.batchDuration,
		m.batchSize, m.configRejections, m.cacheLookups,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *MetricsService) ObserveHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
	m.requestTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveResult counts one student computation. A nil result is an
// integrity error.
func (m *MetricsService) ObserveResult(result *grading.GradeResult) {
	if m == nil {
		return
	}
	switch {
	case result == nil:
		m.gradeOutcomes.WithLabelValues("errored").Inc()
		return
	case result.Passed:
		m.gradeOutcomes.WithLabelValues("passed").Inc()
	default:
		m.gradeOutcomes.WithLabelValues("failed").Inc()
	}
	if result.Incomplete() {
		m.gradeOutcomes.WithLabelValues("incomplete").Inc()
	}
	if result.GraceApplied {
		m.gradeOutcomes.WithLabelValues("grace").Inc()
	}
}

func (m *MetricsService) ObserveBatch(report *grading.BatchReport, d time.Duration) {
	if m == nil || report == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
	m.batchSize.Observe(float64(report.Total))
	for _, outcome := range report.Outcomes {
		m.ObserveResult(outcome.Result)
	}
}

func (m *MetricsService) ObserveRejection(reason grading.Reason) {
	if m == nil {
		return
	}
	m.configRejections.WithLabelValues(string(reason)).Inc()
}

func (m *MetricsService) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
