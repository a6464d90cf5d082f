package strategy

import (
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// LeakyBucket drains MaxRequests units per window and adds one per counted
// request, refusing requests that would overflow it. Drain time that has not
// yet removed a whole unit is carried over in LastLeak.
func LeakyBucket(state types.LeakyBucketState, rule types.Rule, counted bool, now time.Time) Outcome {
	window := rule.WindowSize.Milliseconds()
	capacity := rule.MaxRequests
	nowMs := now.UnixMilli()

	level := clamp(state.Level, 0, capacity)
	lastLeak := min(state.LastLeak, nowMs)

	elapsed := nowMs - lastLeak
	var leaked int64
	if elapsed >= window {
		leaked = capacity
	} else {
		leaked = elapsed * capacity / window
	}
	if leaked > 0 {
		level = max(0, level-leaked)
		lastLeak += ceilDiv(leaked*window, capacity)
	}
	if level == 0 {
		lastLeak = nowMs
	}

	allowed := true
	if counted {
		newLevel := level + 1
		allowed = newLevel <= capacity
		if allowed {
			level = newLevel
		}
	}

	emptyAt := max(nowMs, lastLeak+ceilDiv(level*window, capacity))
	bucketLevel := level

	res := types.Result{
		Allowed:   allowed,
		Limit:     capacity,
		Remaining: capacity - level,
		ResetTime: millis(emptyAt),
		Strategy:  types.StrategyLeakyBucket,
		RuleID:    rule.ID,
		Metadata: types.ResultMetadata{
			CurrentCount: level,
			WindowStart:  millis(lastLeak),
			WindowEnd:    millis(emptyAt),
			BucketLevel:  &bucketLevel,
		},
	}
	if !allowed {
		res.RetryAfter = retryAfter(lastLeak + ceilDiv(window, capacity) - nowMs)
	}

	return Outcome{
		State:  types.LeakyBucketState{Level: level, LastLeak: lastLeak},
		Result: res,
		Write:  true,
	}
}
