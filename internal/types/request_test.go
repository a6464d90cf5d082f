package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestIdentity(t *testing.T) {
	assert.Equal(t, "api:k1", Request{IP: "1.2.3.4", UserID: "u1", APIKey: "k1"}.Identity())
	assert.Equal(t, "user:u1", Request{IP: "1.2.3.4", UserID: "u1"}.Identity())
	assert.Equal(t, "ip:1.2.3.4", Request{IP: "1.2.3.4"}.Identity())
}

func TestRequestShouldCount(t *testing.T) {
	ok, failed := true, false
	rule := Rule{SkipSuccessful: true}

	assert.True(t, Request{}.ShouldCount(rule), "unknown outcome always counts")
	assert.False(t, Request{Success: &ok}.ShouldCount(rule))
	assert.True(t, Request{Success: &failed}.ShouldCount(rule))

	rule = Rule{SkipFailed: true}
	assert.True(t, Request{Success: &ok}.ShouldCount(rule))
	assert.False(t, Request{Success: &failed}.ShouldCount(rule))
}

func TestMostRestrictive(t *testing.T) {
	_, ok := MostRestrictive(nil)
	assert.False(t, ok)

	results := []Result{
		{RuleID: "a", Allowed: true, Remaining: 5},
		{RuleID: "b", Allowed: true, Remaining: 2},
	}
	got, ok := MostRestrictive(results)
	assert.True(t, ok)
	assert.Equal(t, "b", got.RuleID)
	assert.True(t, AllAllowed(results))

	results = append(results,
		Result{RuleID: "c", Allowed: false, RetryAfter: 3 * time.Second},
		Result{RuleID: "d", Allowed: false, RetryAfter: 30 * time.Second},
	)
	got, _ = MostRestrictive(results)
	assert.Equal(t, "d", got.RuleID)
	assert.False(t, AllAllowed(results))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, int64(0), Result{}.RetryAfterSeconds())
	assert.Equal(t, int64(1), Result{RetryAfter: 200 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, int64(86400), Result{RetryAfter: 24 * time.Hour}.RetryAfterSeconds())
}

func TestSeverityText(t *testing.T) {
	b, err := SeverityCritical.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "critical", string(b))

	var s Severity
	assert.NoError(t, s.UnmarshalText([]byte("medium")))
	assert.Equal(t, SeverityMedium, s)
	assert.Error(t, s.UnmarshalText([]byte("severe")))

	assert.Equal(t, SeverityHigh, SeverityOf(PriorityHigh))
}
