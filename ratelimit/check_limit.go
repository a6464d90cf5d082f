package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/accesscontrol"
	"github.com/AikidoSec/ratelimit-go/internal/log"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// CheckLimit evaluates req and returns one result per evaluated rule.
//
// With ruleIDs only those rules are evaluated, otherwise every enabled rule.
// Either way rules run highest priority first. A denial by a critical rule
// stops the evaluation. A whitelist or blacklist match returns a single
// synthetic result without touching any rule.
//
// CheckLimit never fails: when the counter store errors or times out it
// returns a single allowing result with rule id "fail-open".
func (e *Engine) CheckLimit(ctx context.Context, req Request, ruleIDs ...string) []Result {
	if req.Timestamp.IsZero() {
		req.Timestamp = e.now()
	}
	now := req.Timestamp
	e.totalRequests.Add(1)

	if decision := e.gate.Check(req); decision.ShortCircuit() {
		e.metrics.IncAccessDecision(decision.Verdict.String())
		if decision.Verdict == accesscontrol.VerdictBlacklisted {
			e.blockedByAccess.Add(1)
			log.Info("Request blocked by blacklist",
				slog.String("identity", req.Identity()),
				slog.String("match", decision.Match),
				slog.String("endpoint", req.Endpoint))
		}
		return []Result{decision.Result(req, now)}
	}

	var selected []types.Rule
	if len(ruleIDs) > 0 {
		selected = e.rules.Select(ruleIDs)
	} else {
		selected = e.rules.Enabled()
	}

	results := make([]Result, 0, len(selected))
	denials := 0
	for _, rule := range selected {
		key := e.keys.Build(rule, req)

		res, err := e.evaluate(ctx, rule, key, req)
		if err != nil {
			return []Result{e.failOpenResult(rule, key, now, err)}
		}
		results = append(results, res)

		if res.Allowed {
			continue
		}
		denials++
		rec, alerted := e.violations.Record(rule, key, req, now)
		e.metrics.IncViolation(rec.Severity.String())
		if alerted {
			e.metrics.IncAlert()
		}
		if rule.Priority == types.PriorityCritical {
			break
		}
	}

	e.patterns.Observe(req.Identity(), req.Endpoint, denials, now)
	return results
}

// evaluate runs one rule under the store timeout. A panic in the store is
// returned as an error so it fails open like any other store failure.
func (e *Engine) evaluate(ctx context.Context, rule types.Rule, key string, req types.Request) (res types.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("evaluate rule %s: panic: %v", rule.ID, rec)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
	defer cancel()

	start := time.Now()
	res, err = e.evaluator.Evaluate(ctx, rule, key, req)
	if err != nil {
		return types.Result{}, err
	}
	e.metrics.ObserveCheck(string(rule.Strategy), res.Allowed, time.Since(start))
	return res, nil
}

func (e *Engine) failOpenResult(rule types.Rule, key string, now time.Time, err error) Result {
	e.failOpen.Add(1)
	e.metrics.IncFailOpen()
	log.Warn("Rate limit check failed, allowing request",
		slog.String("rule", rule.ID),
		slog.String("key", key),
		slog.String("error", err.Error()))

	return Result{
		Allowed:   true,
		Limit:     e.opts.FailOpenLimit,
		Remaining: e.opts.FailOpenLimit,
		ResetTime: now.Add(failOpenReset),
		Strategy:  rule.Strategy,
		RuleID:    types.RuleIDFailOpen,
		Key:       key,
	}
}
