package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/log"
	"github.com/AikidoSec/ratelimit-go/internal/store"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// Evaluator applies rules against a counter store.
type Evaluator struct {
	store store.Store
}

func NewEvaluator(s store.Store) *Evaluator {
	return &Evaluator{store: s}
}

// Evaluate decides req under rule for the quota key. The store is read and
// written with a single Update. Errors come only from the store.
func (e *Evaluator) Evaluate(ctx context.Context, rule types.Rule, key string, req types.Request) (types.Result, error) {
	now := req.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	counted := req.ShouldCount(rule)
	storageKey := StorageKey(rule, key, now)
	ttl := TTL(rule)

	var outcome Outcome
	err := e.store.Update(ctx, storageKey, func(current []byte, found bool) ([]byte, time.Duration, bool, error) {
		state := Fresh(rule, now)
		if found {
			decoded, err := Decode(rule.Strategy, current)
			if err != nil {
				log.Debug("Discarding undecodable rate limit state",
					slog.String("key", storageKey),
					slog.String("error", err.Error()))
			} else {
				state = decoded
			}
		}

		outcome = Apply(state, rule, counted, now)
		if !outcome.Write {
			return nil, 0, false, nil
		}

		next, err := Encode(outcome.State)
		if err != nil {
			return nil, 0, false, err
		}
		return next, ttl, true, nil
	})
	if err != nil {
		return types.Result{}, fmt.Errorf("evaluate rule %s: %w", rule.ID, err)
	}

	outcome.Result.Key = key
	return outcome.Result, nil
}
