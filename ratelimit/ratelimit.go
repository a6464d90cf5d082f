// Package ratelimit is the rate-limiting decision engine.
//
// An Engine holds the rules, the access lists and the in-process analytics,
// and evaluates requests against a shared counter store:
//
//	engine, err := ratelimit.New(ratelimit.Options{Store: store})
//	...
//	results := engine.CheckLimit(ctx, ratelimit.Request{IP: ip, Endpoint: "/login"})
//	if !ratelimit.AllAllowed(results) { ... }
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/accesscontrol"
	"github.com/AikidoSec/ratelimit-go/internal/alerts"
	"github.com/AikidoSec/ratelimit-go/internal/keys"
	"github.com/AikidoSec/ratelimit-go/internal/metrics"
	"github.com/AikidoSec/ratelimit-go/internal/patterns"
	"github.com/AikidoSec/ratelimit-go/internal/polling"
	"github.com/AikidoSec/ratelimit-go/internal/rules"
	"github.com/AikidoSec/ratelimit-go/internal/store"
	"github.com/AikidoSec/ratelimit-go/internal/strategy"
	"github.com/AikidoSec/ratelimit-go/internal/violations"
)

const (
	DefaultStoreTimeout    = 50 * time.Millisecond
	DefaultFailOpenLimit   = 1000
	DefaultCleanupInterval = time.Minute

	// TopViolatorsLimit is how many keys GetStatistics reports.
	TopViolatorsLimit = 10

	failOpenReset = time.Minute
)

type Options struct {
	// Store holds the counters. Defaults to a process-local memory store.
	Store store.Store
	// Namespace prefixes every counter key.
	Namespace string
	// StoreTimeout bounds a single rule evaluation.
	StoreTimeout time.Duration
	// FailOpenLimit is the limit reported when the store fails.
	FailOpenLimit   int64
	CleanupInterval time.Duration

	Access     AccessLists
	Violations ViolationOptions
	Patterns   PatternOptions

	// AlertSink receives violation alerts. Defaults to the logger.
	AlertSink AlertSink
	// AlertsPerHour caps forwarded alerts.
	AlertsPerHour int

	// Metrics may be nil.
	Metrics *Metrics
	// Now is the clock used when a request carries no timestamp.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.Store == nil {
		o.Store = store.NewMemory()
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.FailOpenLimit <= 0 {
		o.FailOpenLimit = DefaultFailOpenLimit
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = DefaultCleanupInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	o.Violations.SetDefaults()
	o.Patterns.SetDefaults()
}

// Engine is safe for concurrent use. Build it with New.
type Engine struct {
	opts Options

	store      store.Store
	keys       *keys.Builder
	rules      *rules.Registry
	gate       *accesscontrol.Gate
	evaluator  *strategy.Evaluator
	violations *violations.Tracker
	patterns   *patterns.Analyzer
	dispatcher *alerts.Dispatcher
	metrics    *metrics.Collector
	now        func() time.Time

	totalRequests   atomic.Int64
	blockedByAccess atomic.Int64
	failOpen        atomic.Int64

	mu        sync.Mutex
	cleanup   *polling.Routine
	closers   []func() error
	closeOnce sync.Once
}

// New builds an engine. It fails only when the access lists do not compile.
func New(opts Options) (*Engine, error) {
	opts.setDefaults()

	gate, err := accesscontrol.New(opts.Access)
	if err != nil {
		return nil, err
	}

	dispatcher := alerts.NewDispatcher(opts.AlertSink, alerts.DispatcherOptions{
		MaxPerHour: opts.AlertsPerHour,
		Now:        opts.Now,
	})

	return &Engine{
		opts:       opts,
		store:      opts.Store,
		keys:       keys.NewBuilder(opts.Namespace),
		rules:      rules.NewRegistry(),
		gate:       gate,
		evaluator:  strategy.NewEvaluator(opts.Store),
		violations: violations.New(opts.Violations, dispatcher),
		patterns:   patterns.New(opts.Patterns),
		dispatcher: dispatcher,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}, nil
}

// Namespace is the prefix of every counter key.
func (e *Engine) Namespace() string {
	return e.keys.Namespace()
}

// SetAccessLists replaces the white and black lists. On error the current lists stay.
func (e *Engine) SetAccessLists(lists AccessLists) error {
	return e.gate.Replace(lists)
}
