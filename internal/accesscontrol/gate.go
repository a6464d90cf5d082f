// Package accesscontrol implements the whitelist/blacklist gate evaluated
// before any rate limit rule.
package accesscontrol

import (
	"fmt"
	"math"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/seancfoley/ipaddress-go/ipaddr"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// BlacklistRetryAfter is the retry delay given to blacklisted callers.
const BlacklistRetryAfter = 24 * time.Hour

// Lists is the raw access control configuration.
type Lists struct {
	WhitelistIPs      []string
	WhitelistUserIDs  []string
	WhitelistAPIKeys  []string
	BlacklistIPs      []string
	BlacklistUserIDs  []string
	BlacklistPatterns []string // matched case-insensitively against user agent and ip
}

type Verdict int

const (
	VerdictNone Verdict = iota
	VerdictWhitelisted
	VerdictBlacklisted
)

func (v Verdict) String() string {
	switch v {
	case VerdictWhitelisted:
		return "whitelist"
	case VerdictBlacklisted:
		return "blacklist"
	}
	return "none"
}

// Decision says whether the gate short-circuits a request, and on what.
type Decision struct {
	Verdict Verdict
	// Match is the kind of entry that matched: ip, user, api_key or pattern.
	Match string
}

// ShortCircuit reports whether rule evaluation must be skipped.
func (d Decision) ShortCircuit() bool {
	return d.Verdict != VerdictNone
}

// Result builds the synthetic result returned instead of rule results.
func (d Decision) Result(req types.Request, now time.Time) types.Result {
	switch d.Verdict {
	case VerdictWhitelisted:
		return types.Result{
			Allowed:   true,
			Limit:     math.MaxInt32,
			Remaining: math.MaxInt32,
			ResetTime: now,
			RuleID:    types.RuleIDWhitelist,
			Key:       req.Identity(),
		}
	case VerdictBlacklisted:
		return types.Result{
			Allowed:    false,
			Limit:      0,
			Remaining:  0,
			ResetTime:  now.Add(BlacklistRetryAfter),
			RetryAfter: BlacklistRetryAfter,
			RuleID:     types.RuleIDBlacklist,
			Key:        req.Identity(),
		}
	}
	return types.Result{}
}

type compiled struct {
	whitelistIPs   *MatchList
	whitelistUsers map[string]struct{}
	whitelistKeys  map[string]struct{}
	blacklistIPs   *MatchList
	blacklistUsers map[string]struct{}
	patterns       []*regexp.Regexp
}

// Gate is safe for concurrent use. Replace swaps the lists atomically, so
// Check never waits on a reconfiguration.
type Gate struct {
	lists atomic.Pointer[compiled]
}

// New compiles the lists. Invalid addresses and patterns are reported here
// and never at request time.
func New(lists Lists) (*Gate, error) {
	g := &Gate{}
	if err := g.Replace(lists); err != nil {
		return nil, err
	}
	return g, nil
}

// Replace compiles lists and swaps them in. On error the previous lists stay active.
func (g *Gate) Replace(lists Lists) error {
	c, err := compile(lists)
	if err != nil {
		return err
	}
	g.lists.Store(c)
	return nil
}

func compile(lists Lists) (*compiled, error) {
	whitelistIPs, err := BuildMatchList("whitelist", lists.WhitelistIPs)
	if err != nil {
		return nil, err
	}
	blacklistIPs, err := BuildMatchList("blacklist", lists.BlacklistIPs)
	if err != nil {
		return nil, err
	}

	c := &compiled{
		whitelistIPs:   whitelistIPs,
		whitelistUsers: toSet(lists.WhitelistUserIDs),
		whitelistKeys:  toSet(lists.WhitelistAPIKeys),
		blacklistIPs:   blacklistIPs,
		blacklistUsers: toSet(lists.BlacklistUserIDs),
	}

	for _, p := range lists.BlacklistPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%w: blacklist pattern %q: %v", types.ErrInvalidPattern, p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// Check evaluates the whitelist first, then the blacklist.
func (g *Gate) Check(req types.Request) Decision {
	c := g.lists.Load()
	if c == nil {
		return Decision{}
	}

	ip := parseRequestIP(req.IP, c)

	switch {
	case c.whitelistIPs.Matches(ip):
		return Decision{Verdict: VerdictWhitelisted, Match: "ip"}
	case contains(c.whitelistUsers, req.UserID):
		return Decision{Verdict: VerdictWhitelisted, Match: "user"}
	case contains(c.whitelistKeys, req.APIKey):
		return Decision{Verdict: VerdictWhitelisted, Match: "api_key"}
	case c.blacklistIPs.Matches(ip):
		return Decision{Verdict: VerdictBlacklisted, Match: "ip"}
	case contains(c.blacklistUsers, req.UserID):
		return Decision{Verdict: VerdictBlacklisted, Match: "user"}
	}

	for _, re := range c.patterns {
		if (req.UserAgent != "" && re.MatchString(req.UserAgent)) ||
			(req.IP != "" && re.MatchString(req.IP)) {
			return Decision{Verdict: VerdictBlacklisted, Match: "pattern"}
		}
	}

	return Decision{}
}

// parseRequestIP skips parsing when no IP list is configured.
func parseRequestIP(raw string, c *compiled) *ipaddr.IPAddress {
	if raw == "" || (c.whitelistIPs.Count == 0 && c.blacklistIPs.Count == 0) {
		return nil
	}
	ip, err := Parse(raw)
	if err != nil {
		return nil
	}
	return ip
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func contains(set map[string]struct{}, v string) bool {
	if v == "" {
		return false
	}
	_, ok := set[v]
	return ok
}
