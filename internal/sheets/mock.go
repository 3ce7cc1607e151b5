package sheets

import (
	"context"
	"sync"

	"github.com/kirenlabs/opspulse/internal/model"
)

// MockSink is a mock implementation of the ReportSink interface for testing.
type MockSink struct {
	WriteFunc      func(ctx context.Context, row model.DailyKPIRow, verdicts []model.AnomalyVerdict) error
	WriteCalls     []WriteCall
	WriteCallCount int
	mu             sync.Mutex
}

// WriteCall records a single call to WriteDaily.
type WriteCall struct {
	Error    error
	Row      model.DailyKPIRow
	Verdicts []model.AnomalyVerdict
}

// NewMockSink creates a new mock sink.
func NewMockSink() *MockSink {
	return &MockSink{WriteCalls: make([]WriteCall, 0)}
}

// WriteDaily implements the ReportSink interface.
func (m *MockSink) WriteDaily(ctx context.Context, row model.DailyKPIRow, verdicts []model.AnomalyVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, row, verdicts)
	}

	m.WriteCalls = append(m.WriteCalls, WriteCall{Row: row, Verdicts: verdicts, Error: err})
	return err
}

// Reset clears all recorded calls.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount = 0
	m.WriteCalls = make([]WriteCall, 0)
}

// SetWriteError configures the mock to return an error on subsequent calls.
func (m *MockSink) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(_ context.Context, _ model.DailyKPIRow, _ []model.AnomalyVerdict) error {
		return err
	}
}
