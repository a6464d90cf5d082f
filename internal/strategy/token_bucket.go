package strategy

import (
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// TokenBucket refills MaxRequests tokens per window and spends one per counted
// request. Refill time that has not yet produced a whole token is carried over
// in LastRefill, so frequent checks do not starve the bucket.
func TokenBucket(state types.TokenBucketState, rule types.Rule, counted bool, now time.Time) Outcome {
	window := rule.WindowSize.Milliseconds()
	capacity := rule.MaxRequests
	nowMs := now.UnixMilli()

	tokens := clamp(state.Tokens, 0, capacity)
	lastRefill := min(state.LastRefill, nowMs)

	elapsed := nowMs - lastRefill
	var toAdd int64
	if elapsed >= window {
		toAdd = capacity
	} else {
		toAdd = elapsed * capacity / window
	}
	if toAdd > 0 {
		tokens = min(capacity, tokens+toAdd)
		lastRefill += ceilDiv(toAdd*window, capacity)
	}
	if tokens >= capacity {
		lastRefill = nowMs
	}

	allowed := true
	if counted {
		allowed = tokens >= 1
		if allowed {
			tokens--
		}
	}

	// Time until the bucket is full again, counting the partial refill already accrued.
	fullAt := max(nowMs, lastRefill+ceilDiv((capacity-tokens)*window, capacity))
	level := tokens

	res := types.Result{
		Allowed:   allowed,
		Limit:     capacity,
		Remaining: tokens,
		ResetTime: millis(fullAt),
		Strategy:  types.StrategyTokenBucket,
		RuleID:    rule.ID,
		Metadata: types.ResultMetadata{
			CurrentCount: capacity - tokens,
			WindowStart:  millis(lastRefill),
			WindowEnd:    millis(fullAt),
			BucketLevel:  &level,
		},
	}
	if !allowed {
		res.RetryAfter = retryAfter(lastRefill + ceilDiv(window, capacity) - nowMs)
	}

	return Outcome{
		State:  types.TokenBucketState{Tokens: tokens, LastRefill: lastRefill},
		Result: res,
		Write:  true,
	}
}
