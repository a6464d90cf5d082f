package polling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/log"
)

// Routine runs a task on a fixed interval until stopped.
type Routine struct {
	name     string
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// Start launches fn every interval on its own goroutine.
// A panic inside fn is logged and the routine keeps running.
func Start(name string, interval time.Duration, fn func()) *Routine {
	r := &Routine{
		name:     name,
		ticker:   time.NewTicker(interval),
		stopChan: make(chan struct{}),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.ticker.Stop()
		for {
			select {
			case <-r.ticker.C:
				r.run(fn)
			case <-r.stopChan:
				return
			}
		}
	}()

	return r
}

func (r *Routine) run(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Background routine panicked", slog.String("routine", r.name), slog.Any("panic", rec))
		}
	}()
	fn()
}

// Stop stops the routine and waits for a running task to return. Safe to call more than once.
func (r *Routine) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

func (r *Routine) Reset(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticker.Reset(interval)
}
