package sink

import (
	"sync"
	"time"
)

// MockSink is an in-memory Sink for tests: it never touches real hardware
// but accumulates the same statistics a real transport's scope/analyzer
// would, so end-to-end mixer scenarios (spec §8) can assert on peak, RMS,
// clipping, and zero-crossing counts.
type MockSink struct {
	mu sync.Mutex

	sampleRate int
	running    bool

	stats Stats
	left  statAccumulator
	right statAccumulator

	captureCapacity int
	capture         []int16 // interleaved L,R
}

// NewMockSink creates a mock sink. captureCapacity is the number of
// interleaved samples (not pairs) retained for offline inspection; 0
// disables capture.
func NewMockSink(captureCapacity int) *MockSink {
	return &MockSink{captureCapacity: captureCapacity}
}

// Begin records the configured sample rate and marks the sink running.
func (m *MockSink) Begin(sampleRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampleRate = sampleRate
	m.running = true
	return nil
}

// WriteStereoFrame accumulates statistics for one (left, right) pair.
func (m *MockSink) WriteStereoFrame(left, right int16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if m.stats.WriteCalls == 0 {
		m.stats.FirstWriteAt = now
	}
	m.stats.LastWriteAt = now
	m.stats.WriteCalls++
	m.stats.TotalPairs++

	peakL, clipL, zcL, silentL := m.left.observe(left)
	peakR, clipR, zcR, silentR := m.right.observe(right)

	if peakL > m.stats.PeakL {
		m.stats.PeakL = peakL
	}
	if peakR > m.stats.PeakR {
		m.stats.PeakR = peakR
	}
	if clipL {
		m.stats.ClippingL++
	}
	if clipR {
		m.stats.ClippingR++
	}
	if zcL {
		m.stats.ZeroCrossingsL++
	}
	if zcR {
		m.stats.ZeroCrossingsR++
	}
	if silentL && silentR {
		m.stats.SilentSamples++
	}
	m.stats.RMSL = m.left.rms
	m.stats.RMSR = m.right.rms

	if m.captureCapacity > 0 && len(m.capture) < m.captureCapacity {
		m.capture = append(m.capture, left, right)
	}

	return nil
}

// End marks the sink as stopped.
func (m *MockSink) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Stats returns a snapshot of the accumulated statistics.
func (m *MockSink) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Capture returns the captured interleaved samples, if capture was
// enabled via NewMockSink's captureCapacity argument.
func (m *MockSink) Capture() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int16, len(m.capture))
	copy(out, m.capture)
	return out
}

// IsRunning reports whether Begin has been called without a matching End.
func (m *MockSink) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ResetStatistics zeros all counters without affecting running state.
func (m *MockSink) ResetStatistics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
	m.left = statAccumulator{}
	m.right = statAccumulator{}
	m.capture = m.capture[:0]
}
