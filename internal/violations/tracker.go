// Package violations records denied requests per quota key and raises alerts
// when a key keeps being denied.
package violations

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AikidoSec/ratelimit-go/internal/alerts"
	"github.com/AikidoSec/ratelimit-go/internal/log"
	"github.com/AikidoSec/ratelimit-go/internal/lru"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

const (
	DefaultMaxPerKey      = 100
	DefaultMaxKeys        = 10000
	DefaultAlertThreshold = 10
	DefaultAlertWindow    = time.Minute
	DefaultSeverityWindow = 5 * time.Minute
	DefaultRetention      = time.Hour

	cleanupBatch = 256
)

type Options struct {
	// MaxPerKey bounds the records kept per key; the oldest go first.
	MaxPerKey int
	// MaxKeys bounds the number of keys tracked; the key idle the longest goes first.
	MaxKeys        int
	AlertThreshold int
	AlertWindow    time.Duration
	SeverityWindow time.Duration
	// Retention is how long a key without new violations is kept.
	Retention time.Duration
}

func (o *Options) SetDefaults() {
	if o.MaxPerKey <= 0 {
		o.MaxPerKey = DefaultMaxPerKey
	}
	if o.MaxKeys <= 0 {
		o.MaxKeys = DefaultMaxKeys
	}
	if o.AlertThreshold <= 0 {
		o.AlertThreshold = DefaultAlertThreshold
	}
	if o.AlertWindow <= 0 {
		o.AlertWindow = DefaultAlertWindow
	}
	if o.SeverityWindow <= 0 {
		o.SeverityWindow = DefaultSeverityWindow
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
}

// Alerter delivers alerts without blocking; *alerts.Dispatcher implements it.
type Alerter interface {
	Dispatch(alert alerts.Alert) bool
}

type history struct {
	records []types.ViolationRecord
	// alerted is set once an alert went out and cleared when the key drops
	// back under the threshold.
	alerted bool
}

type Tracker struct {
	opts    Options
	alerter Alerter
	keys    *lru.Cache[*history]
	total   atomic.Int64
	raised  atomic.Int64
	newID   func() string
}

// New builds a tracker. alerter may be nil, in which case alerts are only logged.
func New(opts Options, alerter Alerter) *Tracker {
	opts.SetDefaults()
	return &Tracker{
		opts:    opts,
		alerter: alerter,
		keys:    lru.New[*history](opts.MaxKeys, opts.Retention),
		newID:   uuid.NewString,
	}
}

// Record stores a denial of req under rule for key and reports whether it raised an alert.
func (t *Tracker) Record(rule types.Rule, key string, req types.Request, at time.Time) (types.ViolationRecord, bool) {
	rec := types.ViolationRecord{
		ID:        t.newID(),
		Key:       key,
		RuleID:    rule.ID,
		Request:   snapshot(req),
		Timestamp: at,
	}

	var alert *alerts.Alert
	t.keys.Update(key, at, func(h *history, exists bool) *history {
		if !exists {
			h = &history{}
		}

		rec.Severity = severity(rule.Priority, countSince(h.records, at.Add(-t.opts.SeverityWindow)))

		h.records = append(h.records, rec)
		if over := len(h.records) - t.opts.MaxPerKey; over > 0 {
			h.records = append([]types.ViolationRecord(nil), h.records[over:]...)
		}

		recent := countSince(h.records, at.Add(-t.opts.AlertWindow))
		switch {
		case recent < t.opts.AlertThreshold:
			h.alerted = false
		case !h.alerted:
			h.alerted = true
			alert = &alerts.Alert{
				Type:           alerts.EventType,
				Key:            key,
				RuleID:         rule.ID,
				ViolationCount: recent,
				Severity:       rec.Severity,
				Identity:       req.Identity(),
				Endpoint:       req.Endpoint,
				Time:           at.UnixMilli(),
			}
		}
		return h
	})
	t.total.Add(1)

	if alert == nil {
		return rec, false
	}

	t.raised.Add(1)
	if t.alerter == nil {
		_ = alerts.LogSink{}.Send(context.Background(), *alert)
	} else if !t.alerter.Dispatch(*alert) {
		log.Debug("Alert dropped by throttle", slog.String("key", key))
	}
	return rec, true
}

// Violations returns a copy of the records kept for key, oldest first.
func (t *Tracker) Violations(key string, now time.Time) []types.ViolationRecord {
	var out []types.ViolationRecord
	t.keys.View(key, now, func(h *history) {
		out = append([]types.ViolationRecord(nil), h.records...)
	})
	return out
}

// Count returns how many violations key had in the window ending at now.
func (t *Tracker) Count(key string, within time.Duration, now time.Time) int {
	n := 0
	t.keys.View(key, now, func(h *history) {
		n = countSince(h.records, now.Add(-within))
	})
	return n
}

// TopViolators returns up to n keys by number of retained violations, most first.
func (t *Tracker) TopViolators(n int, now time.Time) []types.Violator {
	cutoff := now.Add(-t.opts.Retention)

	var all []types.Violator
	t.keys.Range(now, func(k string, v *history) bool {
		if c := countSince(v.records, cutoff); c > 0 {
			all = append(all, types.Violator{Key: k, Count: c})
		}
		return true
	})

	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Key < all[j].Key
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Total is the number of violations recorded since the tracker was created.
func (t *Tracker) Total() int64 {
	return t.total.Load()
}

// AlertsRaised is the number of threshold crossings, throttled ones included.
func (t *Tracker) AlertsRaised() int64 {
	return t.raised.Load()
}

func (t *Tracker) Len() int {
	return t.keys.Len()
}

// Cleanup drops keys without violations for longer than the retention period.
// The cache lock is released between batches.
func (t *Tracker) Cleanup(now time.Time) int {
	removed := 0
	for {
		n := t.keys.EvictExpired(now, cleanupBatch)
		removed += n
		if n < cleanupBatch {
			return removed
		}
	}
}

func severity(p types.Priority, recent int) types.Severity {
	switch {
	case p == types.PriorityCritical || p == types.PriorityHigh:
		return types.SeverityOf(p)
	case recent > 10:
		return types.SeverityHigh
	case recent > 5:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

func countSince(records []types.ViolationRecord, cutoff time.Time) int {
	n := 0
	for _, r := range records {
		if r.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}

func snapshot(req types.Request) types.Request {
	if req.Success != nil {
		success := *req.Success
		req.Success = &success
	}
	req.Metadata = maps.Clone(req.Metadata)
	return req
}
