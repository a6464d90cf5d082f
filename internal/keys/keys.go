// Package keys derives the quota keys that isolate counter state.
package keys

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

const DefaultNamespace = "ratelimit"

// Builder prefixes every key with a store namespace.
type Builder struct {
	namespace string
}

func NewBuilder(namespace string) *Builder {
	namespace = strings.Trim(namespace, ":")
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Builder{namespace: namespace}
}

func (b *Builder) Namespace() string {
	return b.namespace
}

// Build returns namespace:rule:<id>:<identity>:endpoint:<endpoint>, or
// namespace:<custom> when the rule has a key function.
//
// Rule ids cannot contain ':' and the caller-supplied parts of the identity
// and the endpoint have ':' and '%' percent-encoded, so distinct
// (rule, identity, endpoint) triples never produce the same key.
func (b *Builder) Build(rule types.Rule, req types.Request) string {
	if rule.KeyFunc != nil {
		return b.namespace + ":" + rule.KeyFunc(req)
	}
	return b.namespace + ":rule:" + rule.ID + ":" + identitySegment(req) + ":endpoint:" + Escape(req.Endpoint)
}

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Escape percent-encodes the characters that delimit key segments.
func Escape(s string) string {
	return segmentEscaper.Replace(s)
}

// identitySegment is req.Identity() with the value after the kind prefix escaped.
func identitySegment(req types.Request) string {
	kind, value, _ := strings.Cut(req.Identity(), ":")
	return kind + ":" + Escape(value)
}

// Pattern namespaces a glob so invalidation cannot reach keys of another namespace.
func (b *Builder) Pattern(glob string) string {
	return b.namespace + ":" + strings.TrimPrefix(glob, b.namespace+":")
}

// RulePattern matches every default-layout key of a rule. Rule ids hold no
// ':' or glob characters, so only keys of exactly this rule match.
func (b *Builder) RulePattern(ruleID string) string {
	return b.namespace + ":rule:" + ruleID + ":*"
}

var placeholderRe = regexp.MustCompile(`\{([^{}]*)\}`)

var placeholders = map[string]func(types.Request) string{
	"ip":       func(r types.Request) string { return Escape(r.IP) },
	"user":     func(r types.Request) string { return Escape(r.UserID) },
	"api_key":  func(r types.Request) string { return Escape(r.APIKey) },
	"endpoint": func(r types.Request) string { return Escape(r.Endpoint) },
	"method":   func(r types.Request) string { return Escape(r.Method) },
	"identity": identitySegment,
}

// TemplateFunc compiles a key template such as "login:{ip}:{method}" into a
// key function. Unknown placeholders are rejected.
func TemplateFunc(template string) (types.KeyFunc, error) {
	if strings.TrimSpace(template) == "" {
		return nil, types.NewValidationError("key_template", "is empty")
	}

	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if _, ok := placeholders[m[1]]; !ok {
			return nil, types.NewValidationError("key_template", fmt.Sprintf("unknown placeholder {%s}", m[1]))
		}
	}
	if strings.Count(template, "{") != strings.Count(template, "}") {
		return nil, types.NewValidationError("key_template", "unbalanced braces")
	}

	return func(req types.Request) string {
		return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
			return placeholders[m[1:len(m)-1]](req)
		})
	}, nil
}
