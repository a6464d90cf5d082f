package types

import "time"

// Request describes one call being measured. It is built per call and not mutated afterwards.
//
// Success is the outcome of the measured call. Checks usually run before the call is
// handled, when the outcome is unknown; leave Success nil in that case and the request
// counts regardless of the rule's skip flags. Callers that want skip flags to apply
// run a second check once the outcome is known.
type Request struct {
	IP        string
	UserID    string
	APIKey    string
	Endpoint  string
	Method    string
	UserAgent string
	Success   *bool
	Timestamp time.Time
	Metadata  map[string]string
}

// Identity returns the identity segment with precedence api key > user id > ip.
func (r Request) Identity() string {
	switch {
	case r.APIKey != "":
		return "api:" + r.APIKey
	case r.UserID != "":
		return "user:" + r.UserID
	default:
		return "ip:" + r.IP
	}
}

// ShouldCount reports whether the request consumes quota under rule.
func (r Request) ShouldCount(rule Rule) bool {
	if r.Success == nil {
		return true
	}
	if *r.Success && rule.SkipSuccessful {
		return false
	}
	if !*r.Success && rule.SkipFailed {
		return false
	}
	return true
}
