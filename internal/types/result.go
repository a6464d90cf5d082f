package types

import "time"

const (
	RuleIDWhitelist = "whitelist"
	RuleIDBlacklist = "blacklist"
	RuleIDFailOpen  = "fail-open"
)

type ResultMetadata struct {
	CurrentCount int64
	WindowStart  time.Time
	WindowEnd    time.Time
	// BucketLevel is set by the bucket strategies: tokens left or current level.
	BucketLevel *int64
}

// Result is the outcome of evaluating one rule for one request.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetTime time.Time
	// RetryAfter is zero when there is no recommendation.
	RetryAfter time.Duration
	Strategy   Strategy
	RuleID     string
	Key        string
	Metadata   ResultMetadata
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (r Result) RetryAfterSeconds() int64 {
	if r.RetryAfter <= 0 {
		return 0
	}
	return int64((r.RetryAfter + time.Second - 1) / time.Second)
}

// MostRestrictive picks the result a transport should surface: any denial first
// (longest retry), otherwise the lowest remaining quota.
func MostRestrictive(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}

	best := results[0]
	for _, r := range results[1:] {
		switch {
		case !r.Allowed && best.Allowed:
			best = r
		case r.Allowed != best.Allowed:
		case !r.Allowed && r.RetryAfter > best.RetryAfter:
			best = r
		case r.Allowed && r.Remaining < best.Remaining:
			best = r
		}
	}
	return best, true
}

// AllAllowed reports whether every result allows the request.
func AllAllowed(results []Result) bool {
	for _, r := range results {
		if !r.Allowed {
			return false
		}
	}
	return true
}
