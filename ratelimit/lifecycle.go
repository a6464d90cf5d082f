package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/log"
	"github.com/AikidoSec/ratelimit-go/internal/polling"
	"github.com/AikidoSec/ratelimit-go/internal/store"
)

const storeCleanupTimeout = 5 * time.Second

// Start runs Cleanup every CleanupInterval until Stop. Calling it twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cleanup != nil {
		return
	}
	e.cleanup = polling.Start("cleanup", e.opts.CleanupInterval, func() {
		e.Cleanup(context.Background())
	})
	log.Info("Rate limit engine started", slog.Duration("cleanupInterval", e.opts.CleanupInterval))
}

// Stop halts the cleanup routine and waits for alerts in flight.
func (e *Engine) Stop() {
	e.mu.Lock()
	routine := e.cleanup
	e.cleanup = nil
	e.mu.Unlock()

	if routine != nil {
		routine.Stop()
	}
	e.dispatcher.Wait()
}

// Close stops the engine and releases the connections NewFromConfig opened.
// A store passed in Options is left to the caller.
func (e *Engine) Close() error {
	e.Stop()

	var errs []error
	e.closeOnce.Do(func() {
		for _, c := range e.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// Cleanup evicts old violation records and idle patterns, and asks the store
// to drop expired keys when it supports that. The in-process maps are evicted
// in small batches so a request waits for at most one batch.
func (e *Engine) Cleanup(ctx context.Context) {
	now := e.now()

	records := e.violations.Cleanup(now)
	idle := e.patterns.Cleanup(now)
	e.metrics.SetSuspiciousPatterns(len(e.patterns.Suspicious(0, now)))

	var expired int64
	if exp, ok := e.store.(store.Expirer); ok {
		ctx, cancel := context.WithTimeout(ctx, storeCleanupTimeout)
		n, err := exp.DeleteExpired(ctx)
		cancel()
		if err != nil {
			log.Warn("Failed to delete expired counters", slog.String("error", err.Error()))
		}
		expired = n
	}

	log.Debug("Cleanup finished",
		slog.Int("violationKeys", records),
		slog.Int("patterns", idle),
		slog.Int64("expiredCounters", expired))
}
