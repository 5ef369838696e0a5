package transfer

import (
	"sync"
	"testing"
)

func TestSpeedTrackerAccumulates(t *testing.T) {
	s := NewSpeedTracker(100)
	s.Increment(15)
	s.Increment(10)

	if got := s.CompleteSize(); got != 25 {
		t.Errorf("CompleteSize = %d, want 25", got)
	}
	if got := s.CompletePercent(0); got != 25 {
		t.Errorf("CompletePercent = %v, want 25", got)
	}
}

func TestSpeedTrackerPercentPrecision(t *testing.T) {
	s := NewSpeedTracker(3)
	s.Increment(1)

	if got := s.CompletePercent(2); got != 33.33 {
		t.Errorf("CompletePercent(2) = %v, want 33.33", got)
	}
	if got := s.CompletePercent(0); got != 33 {
		t.Errorf("CompletePercent(0) = %v, want 33", got)
	}
}

// TestSpeedTrackerClampsAtTotal verifies replayed chunks can never push the
// reported completion past 100%.
func TestSpeedTrackerClampsAtTotal(t *testing.T) {
	s := NewSpeedTracker(10)
	if got := s.Increment(8); got != 8 {
		t.Errorf("Increment = %d, want 8", got)
	}
	if got := s.Increment(8); got != 10 {
		t.Errorf("over-counted Increment = %d, want clamp at 10", got)
	}
	if got := s.CompletePercent(0); got != 100 {
		t.Errorf("CompletePercent = %v, want 100", got)
	}
}

func TestSpeedTrackerEmptyTransferComplete(t *testing.T) {
	s := NewSpeedTracker(0)
	if got := s.CompletePercent(1); got != 100 {
		t.Errorf("empty transfer CompletePercent = %v, want 100", got)
	}
}

// TestSpeedTrackerConcurrentIncrements hammers Increment from many goroutines
// and verifies no updates are lost.
func TestSpeedTrackerConcurrentIncrements(t *testing.T) {
	const workers = 16
	const perWorker = 1000

	s := NewSpeedTracker(workers * perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.Increment(1)
			}
		}()
	}
	wg.Wait()

	if got := s.CompleteSize(); got != workers*perWorker {
		t.Errorf("CompleteSize = %d, want %d", got, workers*perWorker)
	}
	if got := s.CompletePercent(0); got != 100 {
		t.Errorf("CompletePercent = %v, want 100", got)
	}
}

func TestSpeedTrackerAverageSpeed(t *testing.T) {
	s := NewSpeedTracker(1 << 20)
	s.Increment(1 << 19)
	if s.AverageSpeed() <= 0 {
		t.Error("AverageSpeed should be positive after bytes moved")
	}
	if s.ElapsedSeconds() < 0 {
		t.Error("ElapsedSeconds negative")
	}
}
