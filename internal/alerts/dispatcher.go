package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/log"
	"github.com/AikidoSec/ratelimit-go/internal/slidingwindow"
)

const (
	DefaultMaxPerHour  = 100
	DefaultSendTimeout = 5 * time.Second
)

type DispatcherOptions struct {
	// MaxPerHour caps forwarded alerts in any rolling hour. Zero means DefaultMaxPerHour.
	MaxPerHour  int
	SendTimeout time.Duration
	Now         func() time.Time
}

// Dispatcher sends alerts in the background and drops the ones over the hourly cap.
type Dispatcher struct {
	sink        Sink
	window      *slidingwindow.Window
	maxPerHour  int
	sendTimeout time.Duration
	now         func() time.Time
	wg          sync.WaitGroup
}

func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if opts.MaxPerHour <= 0 {
		opts.MaxPerHour = DefaultMaxPerHour
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if sink == nil {
		sink = LogSink{}
	}

	return &Dispatcher{
		sink:        sink,
		window:      slidingwindow.New(time.Hour, opts.MaxPerHour),
		maxPerHour:  opts.MaxPerHour,
		sendTimeout: opts.SendTimeout,
		now:         opts.Now,
	}
}

// Dispatch queues alert for delivery and returns immediately. It returns false
// when the hourly cap dropped the alert.
func (d *Dispatcher) Dispatch(alert Alert) bool {
	now := d.now()
	if !d.window.TryRecord(now) {
		log.Warn("Maximum number of alerts exceeded for timeframe",
			slog.Int("max", d.maxPerHour),
			slog.Int("count", d.window.Count(now)),
			slog.String("key", alert.Key))
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Alert sink panicked", slog.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		defer cancel()

		if err := d.sink.Send(ctx, alert); err != nil {
			log.Warn("Failed to deliver alert",
				slog.String("key", alert.Key),
				slog.String("rule", alert.RuleID),
				slog.Any("error", err))
		}
	}()
	return true
}

// Wait blocks until every dispatched alert has been handed to the sink.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
