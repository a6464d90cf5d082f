package main

import "github.com/AikidoSec/ratelimit-go/ratelimit"

// resultView is the JSON shape of a result: times in unix milliseconds,
// retryAfter in whole seconds.
type resultView struct {
	Allowed      bool   `json:"allowed"`
	Limit        int64  `json:"limit"`
	Remaining    int64  `json:"remaining"`
	ResetTime    int64  `json:"resetTime"`
	RetryAfter   int64  `json:"retryAfter,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
	RuleID       string `json:"ruleId"`
	Key          string `json:"key"`
	CurrentCount int64  `json:"currentCount"`
	BucketLevel  *int64 `json:"bucketLevel,omitempty"`
}

func newResultView(r ratelimit.Result) resultView {
	return resultView{
		Allowed:      r.Allowed,
		Limit:        r.Limit,
		Remaining:    r.Remaining,
		ResetTime:    r.ResetTime.UnixMilli(),
		RetryAfter:   r.RetryAfterSeconds(),
		Strategy:     string(r.Strategy),
		RuleID:       r.RuleID,
		Key:          r.Key,
		CurrentCount: r.Metadata.CurrentCount,
		BucketLevel:  r.Metadata.BucketLevel,
	}
}

type violatorView struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type patternView struct {
	Identity        string  `json:"identity"`
	Endpoint        string  `json:"endpoint"`
	RequestCount    int64   `json:"requestCount"`
	ViolationCount  int64   `json:"violationCount"`
	FirstSeen       int64   `json:"firstSeen"`
	LastSeen        int64   `json:"lastSeen"`
	SuspiciousScore float64 `json:"suspiciousScore"`
}

type statsView struct {
	TotalRequests          int64          `json:"totalRequests"`
	TotalViolations        int64          `json:"totalViolations"`
	BlockedByAccessControl int64          `json:"blockedByAccessControl"`
	FailOpenCount          int64          `json:"failOpenCount"`
	TopViolators           []violatorView `json:"topViolators"`
	SuspiciousPatterns     []patternView  `json:"suspiciousPatterns"`
}

func newStatsView(s ratelimit.Statistics) statsView {
	v := statsView{
		TotalRequests:          s.TotalRequests,
		TotalViolations:        s.TotalViolations,
		BlockedByAccessControl: s.BlockedByAccessControl,
		FailOpenCount:          s.FailOpenCount,
		TopViolators:           make([]violatorView, 0, len(s.TopViolators)),
		SuspiciousPatterns:     make([]patternView, 0, len(s.SuspiciousPatterns)),
	}
	for _, t := range s.TopViolators {
		v.TopViolators = append(v.TopViolators, violatorView{Key: t.Key, Count: t.Count})
	}
	for _, p := range s.SuspiciousPatterns {
		v.SuspiciousPatterns = append(v.SuspiciousPatterns, patternView{
			Identity:        p.Identity,
			Endpoint:        p.Endpoint,
			RequestCount:    p.RequestCount,
			ViolationCount:  p.ViolationCount,
			FirstSeen:       p.FirstSeen.UnixMilli(),
			LastSeen:        p.LastSeen.UnixMilli(),
			SuspiciousScore: p.SuspiciousScore,
		})
	}
	return v
}
