package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"

	"github.com/slok/goaccept/metrics"
)

func TestPrometheus(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name          string
		recordMetrics func(metrics.Recorder)
		expMetrics    []string
	}{
		{
			name: "Recording backpressure gauges should expose the latest values.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m2 := m.WithID("test2")
				m1.SetOutstandingConnections(4)
				m1.SetOutstandingConnections(7)
				m2.SetOutstandingConnections(1)
				m1.SetWaitingAdmissions(3)
				m2.SetWaitingAdmissions(0)
			},
			expMetrics: []string{
				`goaccept_backpressure_outstanding_connections{id="test"} 7`,
				`goaccept_backpressure_outstanding_connections{id="test2"} 1`,
				`goaccept_backpressure_waiting_admissions{id="test"} 3`,
				`goaccept_backpressure_waiting_admissions{id="test2"} 0`,
			},
		},
		{
			name: "Recording backpressure admissions should expose the metrics.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m2 := m.WithID("test2")
				m1.IncAdmission(false)
				m1.IncAdmission(false)
				m1.IncAdmission(true)
				m2.IncAdmission(true)
				m1.IncCanceledAdmission()
				m2.IncLeakedGuard()
				m2.IncLeakedGuard()
			},
			expMetrics: []string{
				`goaccept_backpressure_admissions_total{id="test",waited="false"} 2`,
				`goaccept_backpressure_admissions_total{id="test",waited="true"} 1`,
				`goaccept_backpressure_admissions_total{id="test2",waited="true"} 1`,
				`goaccept_backpressure_canceled_admissions_total{id="test"} 1`,
				`goaccept_backpressure_leaked_guards_total{id="test2"} 2`,
			},
		},
		{
			name: "Recording backpressure admission waits should expose the histogram.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m1.ObserveAdmissionWait(now.Add(-450 * time.Millisecond))
				m1.ObserveAdmissionWait(now.Add(-2 * time.Second))
			},
			expMetrics: []string{
				`goaccept_backpressure_admission_wait_duration_seconds_bucket{id="test",le="0.25"} 0`,
				`goaccept_backpressure_admission_wait_duration_seconds_bucket{id="test",le="0.5"} 1`,
				`goaccept_backpressure_admission_wait_duration_seconds_bucket{id="test",le="2.5"} 2`,
				`goaccept_backpressure_admission_wait_duration_seconds_count{id="test"} 2`,
			},
		},
		{
			name: "Recording accept metrics should expose the metrics.",
			recordMetrics: func(m metrics.Recorder) {
				m1 := m.WithID("test")
				m2 := m.WithID("test2")
				m1.IncAcceptError("transient")
				m1.IncAcceptError("transient")
				m1.IncAcceptError("fatal")
				m2.IncAcceptError("connection")
				m1.ObserveAcceptBackoff(time.Millisecond)
				m1.ObserveAcceptBackoff(2 * time.Millisecond)
				m1.ObserveAcceptBackoff(time.Second)
				m2.IncAcceptRateLimited()
			},
			expMetrics: []string{
				`goaccept_accept_errors_total{class="transient",id="test"} 2`,
				`goaccept_accept_errors_total{class="fatal",id="test"} 1`,
				`goaccept_accept_errors_total{class="connection",id="test2"} 1`,
				`goaccept_accept_backoff_duration_seconds_bucket{id="test",le="0.001"} 1`,
				`goaccept_accept_backoff_duration_seconds_bucket{id="test",le="0.002"} 2`,
				`goaccept_accept_backoff_duration_seconds_bucket{id="test",le="1"} 3`,
				`goaccept_accept_backoff_duration_seconds_count{id="test"} 3`,
				`goaccept_accept_rate_limited_total{id="test2"} 1`,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)

			reg := prometheus.NewRegistry()
			p := metrics.NewPrometheusRecorder(reg)

			test.recordMetrics(p)

			// Get the metrics handler and serve.
			h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/metrics", nil)
			h.ServeHTTP(rec, req)

			resp := rec.Result()

			// Check all metrics are present.
			if assert.Equal(http.StatusOK, resp.StatusCode) {
				body, _ := io.ReadAll(resp.Body)
				for _, expMetric := range test.expMetrics {
					assert.Contains(string(body), expMetric, "metric not present on the result of metrics service")
				}
			}
		})
	}
}

func TestDummy(t *testing.T) {
	assert := assert.New(t)

	m := metrics.Dummy.WithID("test")
	assert.NotPanics(func() {
		m.SetOutstandingConnections(1)
		m.SetWaitingAdmissions(1)
		m.IncAdmission(true)
		m.ObserveAdmissionWait(time.Now())
		m.IncCanceledAdmission()
		m.IncLeakedGuard()
		m.IncAcceptError("fatal")
		m.ObserveAcceptBackoff(time.Second)
		m.IncAcceptRateLimited()
	})
}
