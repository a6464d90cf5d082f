package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Strategy names one of the limiting algorithms.
type Strategy string

const (
	StrategyFixedWindow   Strategy = "fixed_window"
	StrategySlidingWindow Strategy = "sliding_window"
	StrategyTokenBucket   Strategy = "token_bucket"
	StrategyLeakyBucket   Strategy = "leaky_bucket"
)

var strategies = []Strategy{
	StrategyFixedWindow,
	StrategySlidingWindow,
	StrategyTokenBucket,
	StrategyLeakyBucket,
}

func (s Strategy) Valid() bool {
	for _, known := range strategies {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStrategy accepts snake_case, kebab-case and CamelCase spellings.
func ParseStrategy(s string) (Strategy, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch normalized {
	case "fixed_window", "fixedwindow":
		return StrategyFixedWindow, nil
	case "sliding_window", "slidingwindow":
		return StrategySlidingWindow, nil
	case "token_bucket", "tokenbucket":
		return StrategyTokenBucket, nil
	case "leaky_bucket", "leakybucket":
		return StrategyLeakyBucket, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Priority orders rules; higher values are evaluated first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return 0, NewValidationError("priority", fmt.Sprintf("unknown priority %q", s))
}

// KeyFunc derives a custom quota key from a request. The result is namespaced by the key builder.
type KeyFunc func(req Request) string

// Rule is a quota definition. Rules are values: the registry hands out copies.
type Rule struct {
	ID             string
	Name           string
	Strategy       Strategy
	WindowSize     time.Duration
	MaxRequests    int64
	SkipSuccessful bool
	SkipFailed     bool
	KeyFunc        KeyFunc
	Priority       Priority
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RulePatch holds the fields to change in UpdateRule. Nil fields are left untouched.
type RulePatch struct {
	Name           *string
	Strategy       *Strategy
	WindowSize     *time.Duration
	MaxRequests    *int64
	SkipSuccessful *bool
	SkipFailed     *bool
	KeyFunc        KeyFunc
	Priority       *Priority
	Enabled        *bool
}

// Apply returns a copy of rule with the patch applied. ID and timestamps are not touched.
func (p RulePatch) Apply(rule Rule) Rule {
	if p.Name != nil {
		rule.Name = *p.Name
	}
	if p.Strategy != nil {
		rule.Strategy = *p.Strategy
	}
	if p.WindowSize != nil {
		rule.WindowSize = *p.WindowSize
	}
	if p.MaxRequests != nil {
		rule.MaxRequests = *p.MaxRequests
	}
	if p.SkipSuccessful != nil {
		rule.SkipSuccessful = *p.SkipSuccessful
	}
	if p.SkipFailed != nil {
		rule.SkipFailed = *p.SkipFailed
	}
	if p.KeyFunc != nil {
		rule.KeyFunc = p.KeyFunc
	}
	if p.Priority != nil {
		rule.Priority = *p.Priority
	}
	if p.Enabled != nil {
		rule.Enabled = *p.Enabled
	}
	return rule
}

// idReserved are the characters that delimit key segments or act as glob
// wildcards in invalidation patterns.
const idReserved = ":*?[]\\"

// maxQuotaProduct bounds MaxRequests times the window in milliseconds so the
// bucket arithmetic cannot overflow int64.
const maxQuotaProduct = math.MaxInt64 / 4

// Validate checks the rule is usable by an evaluator.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return NewValidationError("id", "is required")
	}
	if strings.ContainsAny(r.ID, idReserved) {
		return NewValidationError("id", fmt.Sprintf("must not contain any of %q", idReserved))
	}
	if !r.Strategy.Valid() {
		return fmt.Errorf("%w: %q (rule %s)", ErrUnknownStrategy, r.Strategy, r.ID)
	}
	if r.WindowSize <= 0 {
		return NewValidationError("window_size", "must be positive")
	}
	if r.WindowSize%time.Millisecond != 0 {
		return NewValidationError("window_size", "must be a whole number of milliseconds")
	}
	if r.MaxRequests <= 0 {
		return NewValidationError("max_requests", "must be positive")
	}
	if r.MaxRequests > maxQuotaProduct/r.WindowSize.Milliseconds() {
		return NewValidationError("max_requests", "too large for the window size")
	}
	if !r.Priority.Valid() {
		return NewValidationError("priority", fmt.Sprintf("unknown priority %d", int(r.Priority)))
	}
	return nil
}
