package pipeline

import (
	"testing"
	"time"
)

// TestLinearPolicyNonRetryableStatuses verifies client-error classes are never
// retried, even on the first attempt.
func TestLinearPolicyNonRetryableStatuses(t *testing.T) {
	p := NewLinearPolicy()
	for _, status := range []int{400, 403, 404, 409, 501, 505} {
		d := p.ShouldRetry(status, &RetryContext{})
		if d.Retry {
			t.Errorf("status %d: expected no retry on first attempt", status)
		}
	}
}

func TestLinearPolicyRetryableStatuses(t *testing.T) {
	p := NewLinearPolicy()
	for _, status := range []int{0, 408, 500, 502, 503, 504} {
		d := p.ShouldRetry(status, &RetryContext{})
		if !d.Retry {
			t.Errorf("status %d: expected retry", status)
		}
		if d.Interval < 0 {
			t.Errorf("status %d: negative interval %v", status, d.Interval)
		}
	}
}

// TestPolicyExhaustion verifies no status is retryable once the attempt count
// reaches the configured budget.
func TestPolicyExhaustion(t *testing.T) {
	linear := &LinearPolicy{RetryCount: 3, Interval: time.Second}
	exp := &ExponentialPolicy{RetryCount: 3, MinInterval: time.Second, MaxInterval: time.Minute}

	for _, status := range []int{0, 408, 500, 503} {
		for count := 3; count <= 10; count++ {
			rc := &RetryContext{Count: count}
			if linear.ShouldRetry(status, rc).Retry {
				t.Errorf("linear: status %d count %d: expected exhaustion", status, count)
			}
			if exp.ShouldRetry(status, rc).Retry {
				t.Errorf("exponential: status %d count %d: expected exhaustion", status, count)
			}
		}
	}
}

func TestLinearPolicyConstantInterval(t *testing.T) {
	p := &LinearPolicy{RetryCount: 5, Interval: 30 * time.Second}
	for count := 0; count < 5; count++ {
		d := p.ShouldRetry(500, &RetryContext{Count: count})
		if !d.Retry {
			t.Fatalf("count %d: expected retry", count)
		}
		if d.Interval != 30*time.Second {
			t.Errorf("count %d: interval %v, want constant 30s", count, d.Interval)
		}
	}
}

// TestExponentialPolicyGrowth verifies the interval strictly increases with
// the attempt count until it reaches the cap, then stays there.
func TestExponentialPolicyGrowth(t *testing.T) {
	p := &ExponentialPolicy{RetryCount: 10, MinInterval: time.Second, MaxInterval: 30 * time.Second}

	var prev time.Duration
	capped := false
	for count := 0; count < 10; count++ {
		d := p.ShouldRetry(503, &RetryContext{Count: count})
		if !d.Retry {
			t.Fatalf("count %d: expected retry", count)
		}
		if d.Interval > p.MaxInterval {
			t.Errorf("count %d: interval %v exceeds cap %v", count, d.Interval, p.MaxInterval)
		}
		if capped {
			if d.Interval != p.MaxInterval {
				t.Errorf("count %d: interval %v, want cap %v after reaching it", count, d.Interval, p.MaxInterval)
			}
		} else if count > 0 {
			if d.Interval <= prev && d.Interval != p.MaxInterval {
				t.Errorf("count %d: interval %v did not grow past %v", count, d.Interval, prev)
			}
		}
		if d.Interval == p.MaxInterval {
			capped = true
		}
		prev = d.Interval
	}
}

func TestExponentialPolicyJitterBounds(t *testing.T) {
	p := &ExponentialPolicy{RetryCount: 5, MinInterval: 4 * time.Second, MaxInterval: time.Minute, Jitter: true}
	for i := 0; i < 100; i++ {
		d := p.ShouldRetry(500, &RetryContext{Count: 2})
		// Deterministic interval would be 16s; jitter stays within (8s, 16s].
		if d.Interval <= 8*time.Second || d.Interval > 16*time.Second {
			t.Fatalf("jittered interval %v outside (8s, 16s]", d.Interval)
		}
	}
}

func TestDefaultPolicies(t *testing.T) {
	lin := NewLinearPolicy()
	if lin.RetryCount != 3 || lin.Interval != 30*time.Second {
		t.Errorf("linear defaults = (%d, %v), want (3, 30s)", lin.RetryCount, lin.Interval)
	}

	exp := NewExponentialPolicy()
	if exp.RetryCount != 3 {
		t.Errorf("exponential default retry count = %d, want 3", exp.RetryCount)
	}
	if exp.MinInterval <= 0 || exp.MaxInterval <= exp.MinInterval {
		t.Errorf("exponential default intervals (%v, %v) not ordered", exp.MinInterval, exp.MaxInterval)
	}
}

// TestPolicyFuncOverride verifies callers can swap in their own decision
// function, the hook tests rely on.
func TestPolicyFuncOverride(t *testing.T) {
	calls := 0
	p := PolicyFunc(func(status int, rc *RetryContext) Decision {
		calls++
		return Decision{Retry: status == 418, Interval: time.Millisecond}
	})

	if !p.ShouldRetry(418, &RetryContext{}).Retry {
		t.Error("custom policy ignored")
	}
	if p.ShouldRetry(500, &RetryContext{}).Retry {
		t.Error("custom policy should have declined 500")
	}
	if calls != 2 {
		t.Errorf("expected 2 policy calls, got %d", calls)
	}
}
