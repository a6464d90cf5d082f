// Package alerts forwards violation alerts to external collaborators.
// Delivery is fire-and-forget: failures are logged, never returned to the
// request path.
package alerts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AikidoSec/ratelimit-go/internal/log"
	"github.com/AikidoSec/ratelimit-go/internal/types"
)

const EventType = "rate_limit_violation"

// Alert is raised when a key crosses the violation threshold.
type Alert struct {
	Type           string         `json:"type"`
	Key            string         `json:"key"`
	RuleID         string         `json:"ruleId"`
	ViolationCount int            `json:"violationCount"`
	Severity       types.Severity `json:"severity"`
	Identity       string         `json:"identity,omitempty"`
	Endpoint       string         `json:"endpoint,omitempty"`
	Time           int64          `json:"time"` // unix milliseconds
}

type Sink interface {
	Send(ctx context.Context, alert Alert) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, alert Alert) error

func (f SinkFunc) Send(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// LogSink writes alerts to the package logger.
type LogSink struct{}

func (LogSink) Send(_ context.Context, alert Alert) error {
	log.Warn("Rate limit violation threshold reached",
		slog.String("key", alert.Key),
		slog.String("rule", alert.RuleID),
		slog.Int("violations", alert.ViolationCount),
		slog.String("severity", alert.Severity.String()))
	return nil
}

// Multi sends to every sink, even when some of them fail.
type Multi []Sink

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
