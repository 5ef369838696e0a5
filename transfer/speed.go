package transfer

import (
	"math"
	"sync/atomic"
	"time"
)

// SpeedTracker accumulates transferred byte counts from concurrent workers
// and derives completion and throughput. All methods are safe for concurrent
// use; Increment is a single atomic add so workers never contend on a lock in
// the data path.
type SpeedTracker struct {
	transferred atomic.Int64
	total       int64
	start       time.Time
}

// NewSpeedTracker starts tracking a transfer of total bytes.
func NewSpeedTracker(total int64) *SpeedTracker {
	return &SpeedTracker{total: total, start: time.Now()}
}

// Increment records n more bytes moved and returns the new completed size.
func (s *SpeedTracker) Increment(n int64) int64 {
	return s.clamp(s.transferred.Add(n))
}

// CompleteSize returns the bytes moved so far, never exceeding the total.
func (s *SpeedTracker) CompleteSize() int64 {
	return s.clamp(s.transferred.Load())
}

// clamp bounds the completed count to the declared total, so double-counted
// replays never report more than 100%.
func (s *SpeedTracker) clamp(n int64) int64 {
	if s.total > 0 && n > s.total {
		return s.total
	}
	return n
}

// TotalSize returns the size of the whole transfer.
func (s *SpeedTracker) TotalSize() int64 {
	return s.total
}

// CompletePercent returns completion in percent rounded to the given number
// of decimal places. An empty transfer is complete by definition.
func (s *SpeedTracker) CompletePercent(precision int) float64 {
	if s.total <= 0 {
		return 100
	}
	pct := float64(s.CompleteSize()) / float64(s.total) * 100
	scale := math.Pow(10, float64(precision))
	return math.Round(pct*scale) / scale
}

// ElapsedSeconds returns the time since tracking started.
func (s *SpeedTracker) ElapsedSeconds() float64 {
	return time.Since(s.start).Seconds()
}

// AverageSpeed returns mean throughput in bytes per second over the whole
// transfer so far.
func (s *SpeedTracker) AverageSpeed() float64 {
	elapsed := s.ElapsedSeconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.transferred.Load()) / elapsed
}
