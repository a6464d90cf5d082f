package slidingwindow_test

import (
	"testing"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/slidingwindow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_EmptyWindow(t *testing.T) {
	window := slidingwindow.New(time.Minute, 10)
	now := time.Now()

	assert.Equal(t, 0, window.Count(now))
	assert.True(t, window.TryRecord(now))
	assert.Equal(t, 1, window.Count(now))
}

func TestWindow_RecordUnderLimit(t *testing.T) {
	window := slidingwindow.New(time.Minute, 10)
	now := time.Now()

		for _i := 0; _i < 5; _i++ {
		require.True(t, window.TryRecord(now))
	}
	assert.Equal(t, 5, window.Count(now))
}

func TestWindow_RecordAtLimit(t *testing.T) {
	window := slidingwindow.New(time.Minute, 3)
	now := time.Now()

		for _i := 0; _i < 3; _i++ {
		require.True(t, window.TryRecord(now))
	}
	assert.Equal(t, 3, window.Count(now))

	// Next request should be blocked
	assert.False(t, window.TryRecord(now))
	assert.Equal(t, 3, window.Count(now))
}

func TestWindow_ZeroLimit(t *testing.T) {
	window := slidingwindow.New(time.Minute, 0)
	now := time.Now()

	assert.False(t, window.TryRecord(now))
	assert.Equal(t, 0, window.Count(now))
}

func TestWindow_SlidingExpiration(t *testing.T) {
	window := slidingwindow.New(10*time.Second, 100)
	baseTime := time.Now()

	// Add requests at different times
	for _i := 0; _i < 3; _i++ {
		window.TryRecord(baseTime) // at t=0
	}
	for _i := 0; _i < 2; _i++ {
		window.TryRecord(baseTime.Add(5*time.Second)) // at t=5
	}

	// All requests visible at t=5
	assert.Equal(t, 5, window.Count(baseTime.Add(5*time.Second)))

	// Only t=5 requests remain at t=12 (t=0 requests expired)
	assert.Equal(t, 2, window.Count(baseTime.Add(12*time.Second)))

	// All expired at t=16
	assert.Equal(t, 0, window.Count(baseTime.Add(16*time.Second)))
}

func TestWindow_ExactBoundary(t *testing.T) {
	window := slidingwindow.New(10*time.Second, 100)
	baseTime := time.Now()

	window.TryRecord(baseTime)

	// Still in window just before boundary
	assert.Equal(t, 1, window.Count(baseTime.Add(9*time.Second)))

	// Expired at exact boundary
	assert.Equal(t, 0, window.Count(baseTime.Add(10*time.Second)))
}

func TestWindow_CountIsIdempotent(t *testing.T) {
	window := slidingwindow.New(time.Minute, 10)
	now := time.Now()

	for _i := 0; _i < 5; _i++ {
		window.TryRecord(now)
	}

	// Multiple counts should return same value
	assert.Equal(t, 5, window.Count(now))
	assert.Equal(t, 5, window.Count(now))
	assert.Equal(t, 5, window.Count(now))
}

func TestWindow_ConcurrentAccess(t *testing.T) {
	window := slidingwindow.New(time.Minute, 100)
	now := time.Now()

	const goroutines = 10
	const requestsPerGoroutine = 10
	results := make(chan bool, goroutines*requestsPerGoroutine)

	// Launch concurrent recordings
	for _i := 0; _i < goroutines; _i++ {
		go func() {
			for _i := 0; _i < requestsPerGoroutine; _i++ {
				results <- window.TryRecord(now)
			}
		}()
	}

	// Collect results
	successful := 0
	for _i := 0; _i < goroutines*requestsPerGoroutine; _i++ {
		if <-results {
			successful++
		}
	}

	// All 100 should succeed (exactly at limit)
	assert.Equal(t, 100, successful)
	assert.Equal(t, 100, window.Count(now))
}

func TestWindow_ConcurrentExceedingLimit(t *testing.T) {
	window := slidingwindow.New(time.Minute, 50)
	now := time.Now()

	const totalRequests = 100
	results := make(chan bool, totalRequests)

	// 100 concurrent requests against limit of 50
	for _i := 0; _i < 10; _i++ {
		go func() {
			for _i := 0; _i < 10; _i++ {
				results <- window.TryRecord(now)
			}
		}()
	}

	successful := 0
	for _i := 0; _i < totalRequests; _i++ {
		if <-results {
			successful++
		}
	}

	// Exactly 50 should succeed, rest blocked
	assert.Equal(t, 50, successful)
	assert.Equal(t, 50, window.Count(now))
}

func TestPrune(t *testing.T) {
	tests := []struct {
		name       string
		timestamps []int64
		now        int64
		want       []int64
	}{
		{"empty", nil, 100, []int64{}},
		{"all inside", []int64{95, 99}, 100, []int64{95, 99}},
		{"boundary expired", []int64{90, 91, 99}, 100, []int64{91, 99}},
		{"all expired", []int64{10, 20}, 100, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slidingwindow.Prune(tt.timestamps, tt.now, 10)
			assert.Equal(t, len(tt.want), len(got))
			for i := range tt.want {
				assert.Equal(t, tt.want[i], got[i])
			}
		})
	}
}
