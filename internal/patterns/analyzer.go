// Package patterns keeps per (identity, endpoint) request statistics and
// scores how suspicious each pair looks.
package patterns

import (
	"sort"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/lru"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

const (
	DefaultAnalysisWindow      = time.Hour
	DefaultMaxEntries          = 10000
	DefaultSuspiciousThreshold = 50.0

	cleanupBatch = 256
)

type Options struct {
	// AnalysisWindow is how long a pattern may stay idle before it is evicted.
	AnalysisWindow      time.Duration
	MaxEntries          int
	SuspiciousThreshold float64
}

func (o *Options) SetDefaults() {
	if o.AnalysisWindow <= 0 {
		o.AnalysisWindow = DefaultAnalysisWindow
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.SuspiciousThreshold <= 0 {
		o.SuspiciousThreshold = DefaultSuspiciousThreshold
	}
}

type Analyzer struct {
	opts     Options
	patterns *lru.Cache[types.PatternAnalysis]
}

func New(opts Options) *Analyzer {
	opts.SetDefaults()
	return &Analyzer{
		opts:     opts,
		patterns: lru.New[types.PatternAnalysis](opts.MaxEntries, opts.AnalysisWindow),
	}
}

// Key identifies the pattern of an identity on an endpoint.
func Key(identity, endpoint string) string {
	return identity + "|" + endpoint
}

// Observe counts one evaluated request and the denials it got, then rescores the pattern.
func (a *Analyzer) Observe(identity, endpoint string, denials int, at time.Time) types.PatternAnalysis {
	key := Key(identity, endpoint)
	return a.patterns.Update(key, at, func(p types.PatternAnalysis, exists bool) types.PatternAnalysis {
		if !exists {
			p = types.PatternAnalysis{
				Key:       key,
				Identity:  identity,
				Endpoint:  endpoint,
				FirstSeen: at,
			}
		}

		p.RequestCount++
		p.ViolationCount += int64(denials)
		if at.After(p.LastSeen) {
			p.LastSeen = at
		}
		if at.Before(p.FirstSeen) {
			p.FirstSeen = at
		}
		p.SuspiciousScore = Score(p)
		return p
	})
}

func (a *Analyzer) Get(identity, endpoint string, now time.Time) (types.PatternAnalysis, bool) {
	return a.patterns.Get(Key(identity, endpoint), now)
}

// Suspicious returns the patterns scoring at least minScore, highest score first.
// A minScore of zero uses the configured threshold.
func (a *Analyzer) Suspicious(minScore float64, now time.Time) []types.PatternAnalysis {
	if minScore <= 0 {
		minScore = a.opts.SuspiciousThreshold
	}

	var out []types.PatternAnalysis
	a.patterns.Range(now, func(_ string, p types.PatternAnalysis) bool {
		if p.SuspiciousScore >= minScore {
			out = append(out, p)
		}
		return true
	})

	sort.Slice(out, func(i, j int) bool {
		if out[i].SuspiciousScore != out[j].SuspiciousScore {
			return out[i].SuspiciousScore > out[j].SuspiciousScore
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (a *Analyzer) Len() int {
	return a.patterns.Len()
}

// Cleanup evicts patterns idle for longer than the analysis window.
func (a *Analyzer) Cleanup(now time.Time) int {
	removed := 0
	for {
		n := a.patterns.EvictExpired(now, cleanupBatch)
		removed += n
		if n < cleanupBatch {
			return removed
		}
	}
}
