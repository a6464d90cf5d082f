package slidingwindow

import (
	"sync"
	"time"
)

// Window admits at most maxCount events in any rolling span of size.
type Window struct {
	timestamps []int64 // unix milliseconds, oldest first
	size       time.Duration
	maxCount   int

	mu sync.Mutex
}

func New(size time.Duration, maxCount int) *Window {
	return &Window{
		timestamps: make([]int64, 0),
		size:       size,
		maxCount:   maxCount,
	}
}

// TryRecord records an event at t.
// Returns false without recording when the window is already full.
func (w *Window) TryRecord(t time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := t.UnixMilli()
	w.timestamps = Prune(w.timestamps, now, w.size.Milliseconds())

	if len(w.timestamps) >= w.maxCount {
		return false
	}

	w.timestamps = append(w.timestamps, now)
	return true
}

// Count returns the number of events inside the window ending at t.
func (w *Window) Count(t time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.timestamps = Prune(w.timestamps, t.UnixMilli(), w.size.Milliseconds())
	return len(w.timestamps)
}

// Prune drops the leading timestamps that are no longer inside the window of
// the given size ending at now. An entry exactly size old is expired.
// timestamps must be sorted ascending; the returned slice shares its backing array.
func Prune(timestamps []int64, now, size int64) []int64 {
	windowStart := now - size

	cutoffIndex := 0
	for cutoffIndex < len(timestamps) && timestamps[cutoffIndex] <= windowStart {
		cutoffIndex++
	}

	return timestamps[cutoffIndex:]
}
