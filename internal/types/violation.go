package types

import (
	"fmt"
	"time"
)

type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "low":
		*s = SeverityLow
	case "medium":
		*s = SeverityMedium
	case "high":
		*s = SeverityHigh
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// SeverityOf maps a rule priority onto the severity scale.
func SeverityOf(p Priority) Severity {
	return Severity(p)
}

type ViolationRecord struct {
	ID        string
	Key       string
	RuleID    string
	Request   Request
	Timestamp time.Time
	Severity  Severity
}

// PatternAnalysis is the behavioral summary of one (identity, endpoint) pair.
type PatternAnalysis struct {
	Key             string
	Identity        string
	Endpoint        string
	RequestCount    int64
	ViolationCount  int64
	FirstSeen       time.Time
	LastSeen        time.Time
	SuspiciousScore float64
}

type Violator struct {
	Key   string
	Count int
}

type Statistics struct {
	TotalRequests          int64
	TotalViolations        int64
	BlockedByAccessControl int64
	FailOpenCount          int64
	TopViolators           []Violator
	SuspiciousPatterns     []PatternAnalysis
}
