package strategy

import (
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/slidingwindow"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// SlidingWindow keeps a log of counted request timestamps and admits a request
// when fewer than MaxRequests remain in the window ending now.
func SlidingWindow(state types.SlidingWindowState, rule types.Rule, counted bool, now time.Time) Outcome {
	window := rule.WindowSize.Milliseconds()
	nowMs := now.UnixMilli()

	kept := slidingwindow.Prune(state.Timestamps, nowMs, window)
	pruned := len(kept) != len(state.Timestamps)

	count := int64(len(kept))
	newCount := count + boolToInt(counted)
	allowed := newCount <= rule.MaxRequests

	timestamps := make([]int64, len(kept), len(kept)+1)
	copy(timestamps, kept)

	appended := allowed && counted
	if appended {
		timestamps = append(timestamps, nowMs)
		count++
	}

	res := types.Result{
		Allowed:   allowed,
		Limit:     rule.MaxRequests,
		Remaining: max(0, rule.MaxRequests-newCount),
		ResetTime: millis(nowMs + window),
		Strategy:  types.StrategySlidingWindow,
		RuleID:    rule.ID,
		Metadata: types.ResultMetadata{
			CurrentCount: count,
			WindowStart:  millis(nowMs - window),
			WindowEnd:    millis(nowMs),
		},
	}
	if !allowed {
		wait := window
		if len(timestamps) > 0 {
			wait = timestamps[0] + window - nowMs
		}
		res.RetryAfter = retryAfter(wait)
	}

	return Outcome{
		State:  types.SlidingWindowState{Timestamps: timestamps},
		Result: res,
		Write:  appended || pruned,
	}
}
