package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveCheck("fixed_window", true, time.Millisecond)
	c.ObserveCheck("fixed_window", false, time.Millisecond)
	c.ObserveCheck("fixed_window", false, time.Millisecond)
	c.IncViolation("high")
	c.IncFailOpen()
	c.IncAccessDecision("blacklist")
	c.IncAlert()
	c.SetSuspiciousPatterns(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.checks.WithLabelValues("fixed_window", OutcomeAllowed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.checks.WithLabelValues("fixed_window", OutcomeDenied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.violations.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.accessDecisions.WithLabelValues("blacklist")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.alerts))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.suspiciousPatterns))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ratelimit_checks_total")
	assert.Contains(t, names, "ratelimit_evaluation_duration_seconds")
	assert.Contains(t, names, "ratelimit_suspicious_patterns")
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.ObserveCheck("token_bucket", true, time.Second)
		c.IncViolation("low")
		c.IncFailOpen()
		c.IncAccessDecision("whitelist")
		c.IncAlert()
		c.SetSuspiciousPatterns(1)
	})
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
