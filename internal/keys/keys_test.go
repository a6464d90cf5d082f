package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AikidoSec/ratelimit-go/internal/store"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

func TestBuild(t *testing.T) {
	b := NewBuilder("rl")
	rule := types.Rule{ID: "api"}

	tests := []struct {
		name string
		req  types.Request
		want string
	}{
		{"api key wins", types.Request{IP: "1.1.1.1", UserID: "u", APIKey: "k", Endpoint: "/x"}, "rl:rule:api:api:k:endpoint:/x"},
		{"user before ip", types.Request{IP: "1.1.1.1", UserID: "u", Endpoint: "/x"}, "rl:rule:api:user:u:endpoint:/x"},
		{"ip fallback", types.Request{IP: "1.1.1.1", Endpoint: "/x"}, "rl:rule:api:ip:1.1.1.1:endpoint:/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Build(rule, tt.req))
		})
	}
}

func TestBuildIsolation(t *testing.T) {
	b := NewBuilder("")
	rule := types.Rule{ID: "api"}

	k1 := b.Build(rule, types.Request{APIKey: "a", Endpoint: "/x", Method: "GET"})
	k2 := b.Build(rule, types.Request{APIKey: "a", Endpoint: "/x", Method: "POST", IP: "9.9.9.9"})
	k3 := b.Build(rule, types.Request{APIKey: "b", Endpoint: "/x"})
	k4 := b.Build(types.Rule{ID: "other"}, types.Request{APIKey: "a", Endpoint: "/x"})

	assert.Equal(t, k1, k2, "method and ip do not matter once an api key is present")
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
	assert.Equal(t, "ratelimit:rule:api:api:a:endpoint:/x", k1)
}

func TestBuildEscapesSegments(t *testing.T) {
	b := NewBuilder("")
	rule := types.Rule{ID: "r"}

	k1 := b.Build(rule, types.Request{APIKey: "k:endpoint:/a", Endpoint: "/b"})
	k2 := b.Build(rule, types.Request{APIKey: "k", Endpoint: "/a:endpoint:/b"})
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, "ratelimit:rule:r:api:k%3Aendpoint%3A/a:endpoint:/b", k1)
	assert.Equal(t, "ratelimit:rule:r:api:k:endpoint:/a%3Aendpoint%3A/b", k2)

	k3 := b.Build(rule, types.Request{APIKey: "k%3A", Endpoint: "/"})
	k4 := b.Build(rule, types.Request{APIKey: "k:", Endpoint: "/"})
	assert.NotEqual(t, k3, k4)

	assert.Equal(t, "ratelimit:rule:r:ip:%3A%3A1:endpoint:/", b.Build(rule, types.Request{IP: "::1", Endpoint: "/"}))
}

func TestRulePatternMatchesOnlyThatRule(t *testing.T) {
	b := NewBuilder("")
	pattern := b.RulePattern("login")
	req := types.Request{IP: "1.1.1.1", Endpoint: "/x"}

	assert.True(t, store.MatchPattern(pattern, b.Build(types.Rule{ID: "login"}, req)))
	assert.False(t, store.MatchPattern(pattern, b.Build(types.Rule{ID: "login2"}, req)))
	assert.False(t, store.MatchPattern(pattern, b.Build(types.Rule{ID: "other"}, types.Request{IP: "login", Endpoint: "/x"})))
}

func TestBuildCustomKeyFunc(t *testing.T) {
	b := NewBuilder("rl:")
	rule := types.Rule{ID: "api", KeyFunc: func(r types.Request) string { return "tenant:" + r.Metadata["tenant"] }}

	got := b.Build(rule, types.Request{Metadata: map[string]string{"tenant": "acme"}})
	assert.Equal(t, "rl:tenant:acme", got)
}

func TestPattern(t *testing.T) {
	b := NewBuilder("rl")
	assert.Equal(t, "rl:rule:api:*", b.Pattern("rule:api:*"))
	assert.Equal(t, "rl:rule:api:*", b.Pattern("rl:rule:api:*"))
	assert.Equal(t, "rl:rule:api:*", b.RulePattern("api"))
}

func TestTemplateFunc(t *testing.T) {
	fn, err := TemplateFunc("login:{ip}:{method}:{endpoint}")
	require.NoError(t, err)
	assert.Equal(t, "login:1.2.3.4:POST:/login", fn(types.Request{IP: "1.2.3.4", Method: "POST", Endpoint: "/login"}))

	fn, err = TemplateFunc("tenant:{identity}")
	require.NoError(t, err)
	assert.Equal(t, "tenant:user:u1", fn(types.Request{UserID: "u1"}))
	assert.Equal(t, "tenant:user:u%3A1", fn(types.Request{UserID: "u:1"}))

	_, err = TemplateFunc("x:{host}")
	assert.ErrorIs(t, err, types.ErrInvalidRule)

	_, err = TemplateFunc("x:{ip")
	assert.ErrorIs(t, err, types.ErrInvalidRule)

	_, err = TemplateFunc("  ")
	assert.ErrorIs(t, err, types.ErrInvalidRule)
}
