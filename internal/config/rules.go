package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AikidoSec/ratelimit-go/internal/accesscontrol"
	"github.com/AikidoSec/ratelimit-go/internal/keys"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

type RuleConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Strategy       string `yaml:"strategy"`
	WindowSize     int64  `yaml:"window_size"` // seconds
	MaxRequests    int64  `yaml:"max_requests"`
	SkipSuccessful bool   `yaml:"skip_successful"`
	SkipFailed     bool   `yaml:"skip_failed"`
	Priority       string `yaml:"priority"`
	// Enabled defaults to true when omitted.
	Enabled     *bool  `yaml:"enabled"`
	KeyTemplate string `yaml:"key_template"`
}

// Rule converts the YAML rule. A missing id gets a random one and a missing
// priority is medium.
func (rc RuleConfig) Rule() (types.Rule, error) {
	rule := types.Rule{
		ID:             rc.ID,
		Name:           rc.Name,
		WindowSize:     time.Duration(rc.WindowSize) * time.Second,
		MaxRequests:    rc.MaxRequests,
		SkipSuccessful: rc.SkipSuccessful,
		SkipFailed:     rc.SkipFailed,
		Priority:       types.PriorityMedium,
		Enabled:        true,
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rc.Enabled != nil {
		rule.Enabled = *rc.Enabled
	}

	strategy, err := types.ParseStrategy(rc.Strategy)
	if err != nil {
		return types.Rule{}, err
	}
	rule.Strategy = strategy

	if rc.Priority != "" {
		priority, err := types.ParsePriority(rc.Priority)
		if err != nil {
			return types.Rule{}, err
		}
		rule.Priority = priority
	}

	if rc.KeyTemplate != "" {
		fn, err := keys.TemplateFunc(rc.KeyTemplate)
		if err != nil {
			return types.Rule{}, err
		}
		rule.KeyFunc = fn
	}

	if err := rule.Validate(); err != nil {
		return types.Rule{}, err
	}
	return rule, nil
}

// BuildRules converts every configured rule and rejects duplicate ids.
func (c *Config) BuildRules() ([]types.Rule, error) {
	out := make([]types.Rule, 0, len(c.Rules))
	seen := make(map[string]struct{}, len(c.Rules))
	for i, rc := range c.Rules {
		rule, err := rc.Rule()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rc.ID, err)
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, fmt.Errorf("rule %d: %w: %s", i, types.ErrDuplicateRule, rule.ID)
		}
		seen[rule.ID] = struct{}{}
		out = append(out, rule)
	}
	return out, nil
}

func (c *Config) AccessLists() accesscontrol.Lists {
	return accesscontrol.Lists{
		WhitelistIPs:      c.Access.Whitelist.IPs,
		WhitelistUserIDs:  c.Access.Whitelist.UserIDs,
		WhitelistAPIKeys:  c.Access.Whitelist.APIKeys,
		BlacklistIPs:      c.Access.Blacklist.IPs,
		BlacklistUserIDs:  c.Access.Blacklist.UserIDs,
		BlacklistPatterns: c.Access.Blacklist.Patterns,
	}
}
