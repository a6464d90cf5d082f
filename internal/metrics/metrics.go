// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ratelimit"

const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// Collector records engine activity. All methods are safe on a nil Collector,
// which records nothing.
type Collector struct {
	checks             *prometheus.CounterVec
	violations         *prometheus.CounterVec
	failOpen           prometheus.Counter
	accessDecisions    *prometheus.CounterVec
	alerts             prometheus.Counter
	evaluationDuration *prometheus.HistogramVec
	suspiciousPatterns prometheus.Gauge
}

// New creates the collectors and registers them on reg.
// A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Rule evaluations by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "violations_total",
				Help:      "Recorded violations by severity",
			},
			[]string{"severity"},
		),
		failOpen: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fail_open_total",
				Help:      "Checks allowed because the counter store failed",
			},
		),
		accessDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_decisions_total",
				Help:      "Requests short-circuited by the access lists",
			},
			[]string{"list"},
		),
		alerts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Violation alerts raised",
			},
		),
		evaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a single rule evaluation against the counter store",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"strategy"},
		),
		suspiciousPatterns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "suspicious_patterns",
				Help:      "Patterns at or above the suspicious score threshold at the last cleanup",
			},
		),
	}
}

func (c *Collector) ObserveCheck(strategy string, allowed bool, took time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeAllowed
	if !allowed {
		outcome = OutcomeDenied
	}
	c.checks.WithLabelValues(strategy, outcome).Inc()
	c.evaluationDuration.WithLabelValues(strategy).Observe(took.Seconds())
}

func (c *Collector) IncViolation(severity string) {
	if c == nil {
		return
	}
	c.violations.WithLabelValues(severity).Inc()
}

func (c *Collector) IncFailOpen() {
	if c == nil {
		return
	}
	c.failOpen.Inc()
}

func (c *Collector) IncAccessDecision(list string) {
	if c == nil {
		return
	}
	c.accessDecisions.WithLabelValues(list).Inc()
}

func (c *Collector) IncAlert() {
	if c == nil {
		return
	}
	c.alerts.Inc()
}

func (c *Collector) SetSuspiciousPatterns(n int) {
	if c == nil {
		return
	}
	c.suspiciousPatterns.Set(float64(n))
}
