// Package store defines the counter store used by the strategy evaluators and
// an in-memory implementation of it.
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrStoreUnavailable = errors.New("counter store unavailable")
	ErrConflict         = errors.New("counter store update conflict")
)

// UpdateFunc computes the next value of a key from its current value.
// found is false when the key is absent or expired.
// Returning write=false leaves the key untouched.
//
// An implementation may call the function more than once for a single Update
// (compare-and-swap retries), so it must not have side effects.
type UpdateFunc func(current []byte, found bool) (next []byte, ttl time.Duration, write bool, err error)

// Store is a key/value store with per-key expiry.
//
// Update is the only operation the evaluators use on the request path. It MUST
// run the read, the call to fn and the write as one atomic step per key: two
// concurrent Updates on the same key must behave as if run one after the
// other. Implementations get there with a lock, a transaction or a
// compare-and-swap loop. A store that cannot give this guarantee loses updates
// under concurrent callers and must not implement this interface.
//
// A ttl of zero means the key does not expire. Expired keys must read as absent;
// they may be reclaimed later than their deadline, never earlier.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Keys lists keys matching a glob pattern (* and ?). Not for the request path.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// Expirer is implemented by stores that reclaim expired keys on demand.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// MatchPattern reports whether key matches a glob pattern where * matches any
// run of characters (including ':' and '/') and ? matches exactly one.
func MatchPattern(pattern, key string) bool {
	return globRegexp(pattern).MatchString(key)
}

func globRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
