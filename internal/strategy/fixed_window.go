package strategy

import (
	"strconv"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// FixedWindow counts requests in windows aligned to multiples of the window
// size. Up to twice the quota can pass across a window boundary.
func FixedWindow(state types.FixedWindowState, rule types.Rule, counted bool, now time.Time) Outcome {
	window := rule.WindowSize.Milliseconds()
	nowMs := now.UnixMilli()
	start := windowStart(nowMs, window)
	end := start + window

	newCount := state.Count + boolToInt(counted)
	allowed := newCount <= rule.MaxRequests
	write := allowed && counted

	current := state.Count
	if write {
		current = newCount
	}

	res := types.Result{
		Allowed:   allowed,
		Limit:     rule.MaxRequests,
		Remaining: max(0, rule.MaxRequests-newCount),
		ResetTime: millis(end),
		Strategy:  types.StrategyFixedWindow,
		RuleID:    rule.ID,
		Metadata: types.ResultMetadata{
			CurrentCount: current,
			WindowStart:  millis(start),
			WindowEnd:    millis(end),
		},
	}
	if !allowed {
		res.RetryAfter = retryAfter(end - nowMs)
	}

	return Outcome{
		State:  types.FixedWindowState{Count: current},
		Result: res,
		Write:  write,
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
