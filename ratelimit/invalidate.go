package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AikidoSec/ratelimit-go/internal/log"
)

// InvalidateKeys deletes every counter key under the engine namespace that
// matches the glob pattern (* and ?). The namespace prefix is added when
// missing. It scans the store and does not belong on the request path.
func (e *Engine) InvalidateKeys(ctx context.Context, pattern string) (int64, error) {
	glob := e.keys.Pattern(pattern)

	matched, err := e.store.Keys(ctx, glob)
	if err != nil {
		return 0, fmt.Errorf("list keys %s: %w", glob, err)
	}
	if len(matched) == 0 {
		return 0, nil
	}

	deleted, err := e.store.Delete(ctx, matched...)
	if err != nil {
		return 0, fmt.Errorf("delete keys %s: %w", glob, err)
	}

	log.Info("Invalidated rate limit keys", slog.String("pattern", glob), slog.Int64("deleted", deleted))
	return deleted, nil
}

// InvalidateRule deletes the counters of a rule that uses the default key layout.
func (e *Engine) InvalidateRule(ctx context.Context, ruleID string) (int64, error) {
	return e.InvalidateKeys(ctx, e.keys.RulePattern(ruleID))
}
