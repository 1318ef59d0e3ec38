package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/school-system/grade-engine/internal/grading"
)

func TestMetricsServiceObserveResult(t *testing.T) {
	m := NewMetricsService()

	m.ObserveResult(&grading.GradeResult{Passed: true, GraceApplied: true})
	m.ObserveResult(&grading.GradeResult{MissingComponents: []grading.Component{grading.Project}})
	m.ObserveResult(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.gradeOutcomes.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gradeOutcomes.WithLabelValues("grace")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gradeOutcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gradeOutcomes.WithLabelValues("incomplete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gradeOutcomes.WithLabelValues("errored")))
}

func TestMetricsServiceHandlerExposesRegistry(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/distributions", "200", 15*time.Millisecond)
	m.ObserveRejection(grading.ReasonWeightageSum)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/v1/distributions",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `distribution_rejections_total{reason="weightage sum invalid"} 1`)
}

func TestMetricsServiceNilIsNoop(t *testing.T) {
	var m *MetricsService

	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest(http.MethodGet, "/", "200", time.Second)
		m.ObserveResult(nil)
		m.ObserveBatch(&grading.BatchReport{}, time.Second)
		m.ObserveRejection(grading.ReasonPassingRange)
		m.ObserveCacheLookup(true)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
