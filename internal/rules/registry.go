// Package rules holds the rate limit rules known to an engine.
package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/log"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

type entry struct {
	rule types.Rule
	seq  uint64
}

// Registry is safe for concurrent use. Rules are copied in and out.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]entry
	seq   uint64
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[string]entry),
		now:   time.Now,
	}
}

// Add validates and stores a new rule. CreatedAt and UpdatedAt are set here.
func (r *Registry) Add(rule types.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateRule, rule.ID)
	}

	now := r.now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	r.seq++
	r.rules[rule.ID] = entry{rule: rule, seq: r.seq}

	log.Info("Rate limit rule added",
		slog.String("rule", rule.ID),
		slog.String("strategy", string(rule.Strategy)),
		slog.Int64("max_requests", rule.MaxRequests),
		slog.Duration("window", rule.WindowSize))
	return nil
}

// Update applies patch to the rule with the given id. It returns false when no
// such rule exists, and an error when the patched rule is invalid; in both
// cases the stored rule is unchanged.
func (r *Registry) Update(id string, patch types.RulePatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rules[id]
	if !ok {
		return false, nil
	}

	updated := patch.Apply(e.rule)
	if err := updated.Validate(); err != nil {
		return false, err
	}
	updated.UpdatedAt = r.now()

	e.rule = updated
	r.rules[id] = e

	log.Info("Rate limit rule updated", slog.String("rule", id))
	return true, nil
}

func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return false
	}
	delete(r.rules, id)

	log.Info("Rate limit rule removed", slog.String("rule", id))
	return true
}

func (r *Registry) Get(id string) (types.Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rules[id]
	return e.rule, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// All returns every rule, enabled or not, in evaluation order.
func (r *Registry) All() []types.Rule {
	return r.collect(func(types.Rule) bool { return true })
}

// Enabled returns the enabled rules, highest priority first. Rules of equal
// priority keep the order they were added in.
func (r *Registry) Enabled() []types.Rule {
	return r.collect(func(rule types.Rule) bool { return rule.Enabled })
}

// Select returns the named rules that exist and are enabled, in evaluation order.
func (r *Registry) Select(ids []string) []types.Rule {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	selected := r.collect(func(rule types.Rule) bool {
		_, ok := wanted[rule.ID]
		return ok && rule.Enabled
	})

	if len(selected) != len(wanted) {
		for _, id := range ids {
			if _, ok := r.Get(id); !ok {
				log.Debug("Skipping unknown rate limit rule", slog.String("rule", id))
			}
		}
	}
	return selected
}

func (r *Registry) collect(keep func(types.Rule) bool) []types.Rule {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.rules))
	for _, e := range r.rules {
		if keep(e.rule) {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rule.Priority != entries[j].rule.Priority {
			return entries[i].rule.Priority > entries[j].rule.Priority
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]types.Rule, len(entries))
	for i, e := range entries {
		out[i] = e.rule
	}
	return out
}
