package patterns

import (
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// Score rates a pattern from 0 to 100:
//
//	violation rate  > 0.5: +30, > 0.2: +15
//	request rate    > 100/s: +40, > 50/s: +20
//	sustained       lifetime >= 1h and >= 1000 requests: +20
//
// The request rate is taken over the pattern's lifetime, counted as at least one second.
func Score(p types.PatternAnalysis) float64 {
	if p.RequestCount <= 0 {
		return 0
	}

	score := 0.0

	violationRate := float64(p.ViolationCount) / float64(p.RequestCount)
	switch {
	case violationRate > 0.5:
		score += 30
	case violationRate > 0.2:
		score += 15
	}

	lifetime := p.LastSeen.Sub(p.FirstSeen)
	requestRate := float64(p.RequestCount) / max(lifetime.Seconds(), 1)
	switch {
	case requestRate > 100:
		score += 40
	case requestRate > 50:
		score += 20
	}

	if lifetime >= time.Hour && p.RequestCount >= 1000 {
		score += 20
	}

	return min(max(score, 0), 100)
}
