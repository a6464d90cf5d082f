// Package strategy implements the four limiting algorithms.
//
// Each algorithm is a pure function from (state, rule, now) to (next state,
// result). The Evaluator runs one of them inside a single store.Update so the
// read-modify-write of a key is atomic. All arithmetic is in unix milliseconds.
package strategy

import (
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// Outcome is what an algorithm decided for one request.
type Outcome struct {
	State  types.State
	Result types.Result
	// Write is false when the stored state must stay as it was.
	Write bool
}

// StorageKey returns the store key holding the state of rule for key at now.
// The strategy is part of the key so rules of different strategies sharing a
// custom key keep separate state. Fixed windows get one counter per window.
func StorageKey(rule types.Rule, key string, now time.Time) string {
	storageKey := key + ":" + string(rule.Strategy)
	if rule.Strategy == types.StrategyFixedWindow {
		return storageKey + ":" + itoa(windowStart(now.UnixMilli(), rule.WindowSize.Milliseconds()))
	}
	return storageKey
}

// TTL is how long the state of rule must outlive its last write.
func TTL(rule types.Rule) time.Duration {
	switch rule.Strategy {
	case types.StrategyTokenBucket, types.StrategyLeakyBucket:
		return 2 * rule.WindowSize
	default:
		return rule.WindowSize
	}
}

// Fresh returns the state of a key nobody has touched yet.
func Fresh(rule types.Rule, now time.Time) types.State {
	switch rule.Strategy {
	case types.StrategySlidingWindow:
		return types.SlidingWindowState{}
	case types.StrategyTokenBucket:
		return types.TokenBucketState{Tokens: rule.MaxRequests, LastRefill: now.UnixMilli()}
	case types.StrategyLeakyBucket:
		return types.LeakyBucketState{Level: 0, LastLeak: now.UnixMilli()}
	default:
		return types.FixedWindowState{}
	}
}

// Apply runs the algorithm matching the state's type.
func Apply(state types.State, rule types.Rule, counted bool, now time.Time) Outcome {
	switch s := state.(type) {
	case types.FixedWindowState:
		return FixedWindow(s, rule, counted, now)
	case types.SlidingWindowState:
		return SlidingWindow(s, rule, counted, now)
	case types.TokenBucketState:
		return TokenBucket(s, rule, counted, now)
	case types.LeakyBucketState:
		return LeakyBucket(s, rule, counted, now)
	}
	panic("strategy: unknown state type")
}

func windowStart(now, window int64) int64 {
	start := now / window * window
	if start > now {
		start -= window
	}
	return start
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// retryAfter rounds a millisecond wait up to whole seconds, never below one.
func retryAfter(waitMillis int64) time.Duration {
	secs := ceilDiv(waitMillis, 1000)
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func clamp(v, lo, hi int64) int64 {
	return max(lo, min(v, hi))
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func millis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
