package testutil

import (
	"context"
	"sync"

	"github.com/AikidoSec/ratelimit-go/internal/alerts"
)

// MockSink is an alerts.Sink for tests. It captures every alert and signals
// AlertSent so tests can wait for the background dispatcher.
type MockSink struct {
	AlertSent chan struct{}
	Err       error

	mu       sync.Mutex
	captured []alerts.Alert
}

func NewMockSink() *MockSink {
	return &MockSink{
		AlertSent: make(chan struct{}, 100),
	}
}

func (m *MockSink) Send(_ context.Context, alert alerts.Alert) error {
	m.mu.Lock()
	m.captured = append(m.captured, alert)
	m.mu.Unlock()

	select {
	case m.AlertSent <- struct{}{}:
	default:
	}
	return m.Err
}

func (m *MockSink) Alerts() []alerts.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]alerts.Alert(nil), m.captured...)
}
