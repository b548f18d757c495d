package goSocialAuth

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrEthical07/goSocialAuth/pipeline"
)

// Metrics exports flow outcomes and step timings to Prometheus. It is the
// pipeline Observer installed by Build when metrics are enabled.
type Metrics struct {
	runs         *prometheus.CounterVec
	stepErrors   *prometheus.CounterVec
	auditDropped prometheus.Counter
	rateLimited  *prometheus.CounterVec

	runDuration  *prometheus.HistogramVec
	stepDuration *prometheus.HistogramVec
}

var _ pipeline.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg. Latency
// histograms are only registered when histograms is true.
func NewMetrics(reg prometheus.Registerer, namespace string, histograms bool) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_total",
			Help:      "Flow runs by flow and result type.",
		}, []string{"flow", "outcome"}),
		stepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_errors_total",
			Help:      "Step failures converted at the pipeline boundary.",
		}, []string{"flow", "step"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the buffer was full.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limit.",
		}, []string{"limit"}),
	}
	collectors := []prometheus.Collector{m.runs, m.stepErrors, m.auditDropped, m.rateLimited}

	if histograms {
		m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Flow run latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"})
		m.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow", "step"})
		collectors = append(collectors, m.runDuration, m.stepDuration)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// StepFinished implements pipeline.Observer.
func (m *Metrics) StepFinished(flow, step string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.stepErrors.WithLabelValues(flow, step).Inc()
	}
	if m.stepDuration != nil {
		m.stepDuration.WithLabelValues(flow, step).Observe(elapsed.Seconds())
	}
}

// RunFinished implements pipeline.Observer.
func (m *Metrics) RunFinished(flow, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(flow, outcome).Inc()
	if m.runDuration != nil {
		m.runDuration.WithLabelValues(flow).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) incAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

func (m *Metrics) incRateLimited(limit string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limit).Inc()
}
