package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promNamespace = "goaccept"

	promBackpressureSubsystem = "backpressure"
	promAcceptSubsystem       = "accept"
)

type prometheusRec struct {
	// Metrics.
	bpOutstanding    *prometheus.GaugeVec
	bpWaiting        *prometheus.GaugeVec
	bpAdmissions     *prometheus.CounterVec
	bpAdmissionWait  *prometheus.HistogramVec
	bpCanceled       *prometheus.CounterVec
	bpLeakedGuards   *prometheus.CounterVec
	acceptErrors     *prometheus.CounterVec
	acceptBackoff    *prometheus.HistogramVec
	acceptRateLimits *prometheus.CounterVec

	id  string
	reg prometheus.Registerer
}

// NewPrometheusRecorder returns a new Recorder that knows how to measure
// using Prometheus kind metrics.
func NewPrometheusRecorder(reg prometheus.Registerer) Recorder {
	p := &prometheusRec{
		reg: reg,
	}

	p.registerMetrics()
	return p
}

func (p prometheusRec) WithID(id string) Recorder {
	return &prometheusRec{
		bpOutstanding:    p.bpOutstanding,
		bpWaiting:        p.bpWaiting,
		bpAdmissions:     p.bpAdmissions,
		bpAdmissionWait:  p.bpAdmissionWait,
		bpCanceled:       p.bpCanceled,
		bpLeakedGuards:   p.bpLeakedGuards,
		acceptErrors:     p.acceptErrors,
		acceptBackoff:    p.acceptBackoff,
		acceptRateLimits: p.acceptRateLimits,

		id:  id,
		reg: p.reg,
	}
}

func (p *prometheusRec) registerMetrics() {
	p.bpOutstanding = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Subsystem: promBackpressureSubsystem,
		Name:      "outstanding_connections",
		Help:      "The number of admitted connections that have not been released.",
	}, []string{"id"})

	p.bpWaiting = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Subsystem: promBackpressureSubsystem,
		Name:      "waiting_admissions",
		Help:      "The number of admissions waiting for a free connection slot.",
	}, []string{"id"})

	p.bpAdmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promBackpressureSubsystem,
		Name:      "admissions_total",
		Help:      "Total number of connections admitted by the limiter.",
	}, []string{"id", "waited"})

	p.bpAdmissionWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promBackpressureSubsystem,
		Name:      "admission_wait_duration_seconds",
		Help:      "The duration an admission waited for a free connection slot in seconds.",
	}, []string{"id"})

	p.bpCanceled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promBackpressureSubsystem,
		Name:      "canceled_admissions_total",
		Help:      "Total number of admissions canceled while waiting for a free connection slot.",
	}, []string{"id"})

	p.bpLeakedGuards = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promBackpressureSubsystem,
		Name:      "leaked_guards_total",
		Help:      "Total number of guards that were never released and have been reclaimed on garbage collection.",
	}, []string{"id"})

	p.acceptErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promAcceptSubsystem,
		Name:      "errors_total",
		Help:      "Total number of accept errors by classification.",
	}, []string{"id", "class"})

	p.acceptBackoff = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promAcceptSubsystem,
		Name:      "backoff_duration_seconds",
		Help:      "The duration waited before retrying a failed accept in seconds.",
		Buckets:   []float64{.001, .002, .004, .008, .016, .032, .064, .128, .256, .512, 1, 2.5, 5},
	}, []string{"id"})

	p.acceptRateLimits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promAcceptSubsystem,
		Name:      "rate_limited_total",
		Help:      "Total number of accepts delayed by the accept rate limit.",
	}, []string{"id"})

	p.reg.MustRegister(p.bpOutstanding,
		p.bpWaiting,
		p.bpAdmissions,
		p.bpAdmissionWait,
		p.bpCanceled,
		p.bpLeakedGuards,
		p.acceptErrors,
		p.acceptBackoff,
		p.acceptRateLimits,
	)
}

func (p prometheusRec) SetOutstandingConnections(quantity int) {
	p.bpOutstanding.WithLabelValues(p.id).Set(float64(quantity))
}

func (p prometheusRec) SetWaitingAdmissions(quantity int) {
	p.bpWaiting.WithLabelValues(p.id).Set(float64(quantity))
}

func (p prometheusRec) IncAdmission(waited bool) {
	p.bpAdmissions.WithLabelValues(p.id, fmt.Sprintf("%t", waited)).Inc()
}

func (p prometheusRec) ObserveAdmissionWait(start time.Time) {
	p.bpAdmissionWait.WithLabelValues(p.id).Observe(time.Since(start).Seconds())
}

func (p prometheusRec) IncCanceledAdmission() {
	p.bpCanceled.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) IncLeakedGuard() {
	p.bpLeakedGuards.WithLabelValues(p.id).Inc()
}

func (p prometheusRec) IncAcceptError(class string) {
	p.acceptErrors.WithLabelValues(p.id, class).Inc()
}

func (p prometheusRec) ObserveAcceptBackoff(d time.Duration) {
	p.acceptBackoff.WithLabelValues(p.id).Observe(d.Seconds())
}

func (p prometheusRec) IncAcceptRateLimited() {
	p.acceptRateLimits.WithLabelValues(p.id).Inc()
}
