package ratelimit

import (
	"context"
	"fmt"

	"github.com/AikidoSec/ratelimit-go/internal/strategy"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// AddRule validates and registers rule. Unknown strategies, bad sizes and
// duplicate ids are rejected here so they never reach CheckLimit.
func (e *Engine) AddRule(rule Rule) error {
	return e.rules.Add(rule)
}

// UpdateRule applies patch to the rule with id. It returns false when no such
// rule exists, and an error when the patched rule is invalid, in which case
// the rule is left unchanged.
func (e *Engine) UpdateRule(id string, patch RulePatch) (bool, error) {
	return e.rules.Update(id, patch)
}

// RemoveRule reports whether a rule was removed. Its counters expire on their own.
func (e *Engine) RemoveRule(id string) bool {
	return e.rules.Remove(id)
}

func (e *Engine) GetRule(id string) (Rule, bool) {
	return e.rules.Get(id)
}

// Rules returns every rule, enabled or not, in insertion order.
func (e *Engine) Rules() []Rule {
	return e.rules.All()
}

// ResetKey clears the live counter state of ruleID for the identity and
// endpoint of req, so its next request starts from a fresh window or bucket.
func (e *Engine) ResetKey(ctx context.Context, ruleID string, req Request) (int64, error) {
	rule, ok := e.rules.Get(ruleID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrRuleNotFound, ruleID)
	}

	now := req.Timestamp
	if now.IsZero() {
		now = e.now()
	}
	key := strategy.StorageKey(rule, e.keys.Build(rule, req), now)

	n, err := e.store.Delete(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("reset %s: %w", key, err)
	}
	return n, nil
}
