package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

var t0 = time.Unix(1_700_000_000, 0)

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		requests   int64
		violations int64
		lifetime   time.Duration
		want       float64
	}{
		{"empty", 0, 0, 0, 0},
		{"quiet", 10, 0, time.Minute, 0},
		{"some violations", 10, 3, time.Minute, 15},
		{"mostly violations", 10, 6, time.Minute, 30},
		{"sustained abuser", 1000, 600, time.Hour, 50},
		{"long lived but small", 999, 0, 2 * time.Hour, 0},
		{"fast", 60, 0, 0, 20},
		{"flood", 500, 0, 2 * time.Second, 40},
		{"everything", 500_000, 400_000, time.Hour, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := types.PatternAnalysis{
				RequestCount:   tt.requests,
				ViolationCount: tt.violations,
				FirstSeen:      t0,
				LastSeen:       t0.Add(tt.lifetime),
			}
			assert.Equal(t, tt.want, Score(p))
		})
	}
}

func TestObserve(t *testing.T) {
	a := New(Options{})

	a.Observe("ip:1.1.1.1", "/x", 0, t0)
	a.Observe("ip:1.1.1.1", "/x", 1, t0.Add(time.Second))
	p := a.Observe("ip:1.1.1.1", "/x", 2, t0.Add(2*time.Second))

	assert.Equal(t, int64(3), p.RequestCount)
	assert.Equal(t, int64(3), p.ViolationCount)
	assert.Equal(t, t0, p.FirstSeen)
	assert.Equal(t, t0.Add(2*time.Second), p.LastSeen)
	assert.Equal(t, "ip:1.1.1.1", p.Identity)
	assert.Equal(t, "/x", p.Endpoint)
	assert.Equal(t, 30.0, p.SuspiciousScore)

	got, ok := a.Get("ip:1.1.1.1", "/x", t0.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = a.Get("ip:1.1.1.1", "/y", t0)
	assert.False(t, ok, "endpoints are tracked separately")
}

func TestSustainedAbuseIsSuspicious(t *testing.T) {
	a := New(Options{})
	identity, endpoint := "api:k1", "/search"

	// 1000 requests spread over one hour, 600 of them denied.
	step := time.Hour / 999
	var last types.PatternAnalysis
	for i := 0; i < 1000; i++ {
		denied := 0
		if i%5 < 3 {
			denied = 1
		}
		at := t0.Add(time.Duration(i) * step)
		if i == 999 {
			at = t0.Add(time.Hour)
		}
		last = a.Observe(identity, endpoint, denied, at)
	}

	assert.Equal(t, int64(1000), last.RequestCount)
	assert.Equal(t, int64(600), last.ViolationCount)
	assert.Equal(t, time.Hour, last.LastSeen.Sub(last.FirstSeen))
	assert.Equal(t, 50.0, last.SuspiciousScore)

	now := last.LastSeen
	suspicious := a.Suspicious(0, now)
	require.Len(t, suspicious, 1)
	assert.Equal(t, Key(identity, endpoint), suspicious[0].Key)
	assert.GreaterOrEqual(t, suspicious[0].SuspiciousScore, 50.0)
}

func TestSuspiciousOrdering(t *testing.T) {
	a := New(Options{})
	for _i := 0; _i < 200; _i++ {
		a.Observe("ip:flood", "/x", 1, t0)
	}
	for _i := 0; _i < 60; _i++ {
		a.Observe("ip:fast", "/x", 0, t0)
	}
	a.Observe("ip:calm", "/x", 0, t0)

	got := a.Suspicious(20, t0)
	require.Len(t, got, 2)
	assert.Equal(t, "ip:flood", got[0].Identity)
	assert.Equal(t, 70.0, got[0].SuspiciousScore)
	assert.Equal(t, "ip:fast", got[1].Identity)

	assert.Len(t, a.Suspicious(0, t0), 1, "default threshold is 50")
}

func TestCleanupEvictsIdlePatterns(t *testing.T) {
	a := New(Options{AnalysisWindow: 10 * time.Minute})
	for i := 0; i < 300; i++ {
		a.Observe(fmt.Sprintf("ip:%d", i), "/x", 0, t0)
	}
	a.Observe("ip:active", "/x", 0, t0.Add(5*time.Minute))

	assert.Equal(t, 300, a.Cleanup(t0.Add(11*time.Minute)))
	assert.Equal(t, 1, a.Len())
}

func TestMaxEntries(t *testing.T) {
	a := New(Options{MaxEntries: 2})
	a.Observe("a", "/", 0, t0)
	a.Observe("b", "/", 0, t0)
	a.Observe("c", "/", 0, t0)

	assert.Equal(t, 2, a.Len())
	_, ok := a.Get("a", "/", t0)
	assert.False(t, ok)
}
