package ratelimit

import "time"

// GetStatistics summarizes the engine since it started. Suspicious patterns
// are the ones scoring at or above the configured threshold, highest first.
func (e *Engine) GetStatistics() Statistics {
	now := e.now()
	return Statistics{
		TotalRequests:          e.totalRequests.Load(),
		TotalViolations:        e.violations.Total(),
		BlockedByAccessControl: e.blockedByAccess.Load(),
		FailOpenCount:          e.failOpen.Load(),
		TopViolators:           e.violations.TopViolators(TopViolatorsLimit, now),
		SuspiciousPatterns:     e.patterns.Suspicious(0, now),
	}
}

// Violations returns the violation records kept for a quota key, oldest first.
func (e *Engine) Violations(key string) []ViolationRecord {
	return e.violations.Violations(key, e.now())
}

// Pattern returns the behavioral summary of identity on endpoint.
func (e *Engine) Pattern(identity, endpoint string) (PatternAnalysis, bool) {
	return e.patterns.Get(identity, endpoint, e.now())
}

// ViolationCount counts the recent violations of a quota key.
func (e *Engine) ViolationCount(key string, within time.Duration) int {
	return e.violations.Count(key, within, e.now())
}
