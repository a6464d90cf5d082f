package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AikidoSec/ratelimit-go/internal/accesscontrol"
	"github.com/AikidoSec/ratelimit-go/internal/alerts"
	"github.com/AikidoSec/ratelimit-go/internal/metrics"
	"github.com/AikidoSec/ratelimit-go/internal/patterns"
	"github.com/AikidoSec/ratelimit-go/internal/store"
	"github.com/AikidoSec/ratelimit-go/internal/types"
	"github.com/AikidoSec/ratelimit-go/internal/violations"
)

type (
	Rule            = types.Rule
	RulePatch       = types.RulePatch
	Strategy        = types.Strategy
	Priority        = types.Priority
	KeyFunc         = types.KeyFunc
	Request         = types.Request
	Result          = types.Result
	ResultMetadata  = types.ResultMetadata
	Severity        = types.Severity
	ViolationRecord = types.ViolationRecord
	PatternAnalysis = types.PatternAnalysis
	Violator        = types.Violator
	Statistics      = types.Statistics
	ValidationError = types.ValidationError

	Store       = store.Store
	UpdateFunc  = store.UpdateFunc
	AccessLists = accesscontrol.Lists

	ViolationOptions = violations.Options
	PatternOptions   = patterns.Options

	Alert     = alerts.Alert
	AlertSink = alerts.Sink

	Metrics = metrics.Collector
)

const (
	FixedWindow   = types.StrategyFixedWindow
	SlidingWindow = types.StrategySlidingWindow
	TokenBucket   = types.StrategyTokenBucket
	LeakyBucket   = types.StrategyLeakyBucket

	PriorityLow      = types.PriorityLow
	PriorityMedium   = types.PriorityMedium
	PriorityHigh     = types.PriorityHigh
	PriorityCritical = types.PriorityCritical

	RuleIDWhitelist = types.RuleIDWhitelist
	RuleIDBlacklist = types.RuleIDBlacklist
	RuleIDFailOpen  = types.RuleIDFailOpen
)

var (
	ErrRuleNotFound     = types.ErrRuleNotFound
	ErrDuplicateRule    = types.ErrDuplicateRule
	ErrInvalidRule      = types.ErrInvalidRule
	ErrUnknownStrategy  = types.ErrUnknownStrategy
	ErrInvalidPattern   = types.ErrInvalidPattern
	ErrStoreUnavailable = store.ErrStoreUnavailable
)

// NewMemoryStore returns a process-local counter store.
func NewMemoryStore() Store {
	return store.NewMemory()
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return metrics.New(reg)
}

// MostRestrictive picks the result to surface to a client.
func MostRestrictive(results []Result) (Result, bool) {
	return types.MostRestrictive(results)
}

// AllAllowed reports whether no result denies the request.
func AllAllowed(results []Result) bool {
	return types.AllAllowed(results)
}
