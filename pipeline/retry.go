package pipeline

import (
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/altostore/altostore/internal/constants"
)

// Decision is the pure output of a retry policy: whether to retry and after
// what delay. Interval is never negative.
type Decision struct {
	Retry    bool
	Interval time.Duration
}

// Policy decides, given a failed attempt's status code and the operation's
// retry context, whether to schedule another attempt. Implementations must be
// pure: no observable side effects, deterministic given policy state and
// context (modulo jitter).
type Policy interface {
	ShouldRetry(status int, rc *RetryContext) Decision
}

// PolicyFunc adapts a function to the Policy interface. Tests use this to
// force specific retry timing and conditions.
type PolicyFunc func(status int, rc *RetryContext) Decision

// ShouldRetry implements Policy.
func (f PolicyFunc) ShouldRetry(status int, rc *RetryContext) Decision {
	return f(status, rc)
}

// RetryableStatus reports whether a status code class permits retrying.
// Transport-level failures (status 0) and server errors are retryable;
// 3xx/4xx are caller mistakes, except 408 which is a timeout. 501 and 505
// indicate the service will never accept the request as sent.
func RetryableStatus(status int) bool {
	switch {
	case status == 0:
		return true
	case status == http.StatusRequestTimeout:
		return true
	case status >= 300 && status < 500:
		return false
	case status == http.StatusNotImplemented, status == http.StatusHTTPVersionNotSupported:
		return false
	case status >= 500:
		return true
	default:
		return false
	}
}

// LinearPolicy retries a fixed number of times at a constant interval.
type LinearPolicy struct {
	// RetryCount is the maximum number of retries (not counting the first
	// attempt).
	RetryCount int
	// Interval is the constant delay between attempts.
	Interval time.Duration
}

// NewLinearPolicy returns a linear policy with the default budget:
// 3 retries, 30 seconds apart.
func NewLinearPolicy() *LinearPolicy {
	return &LinearPolicy{
		RetryCount: constants.DefaultRetryCount,
		Interval:   constants.RetryInterval,
	}
}

// ShouldRetry implements Policy.
func (p *LinearPolicy) ShouldRetry(status int, rc *RetryContext) Decision {
	if rc.Count >= p.RetryCount || !RetryableStatus(status) {
		return Decision{}
	}
	return Decision{Retry: true, Interval: p.Interval}
}

// ExponentialPolicy retries with a doubling interval bounded by MaxInterval,
// optionally jittered to spread out synchronized retries.
type ExponentialPolicy struct {
	RetryCount  int
	MinInterval time.Duration
	MaxInterval time.Duration
	// Jitter randomizes each interval over (interval/2, interval]; the
	// expected value keeps growing with the attempt count.
	Jitter bool
}

// NewExponentialPolicy returns an exponential policy with the default budget.
func NewExponentialPolicy() *ExponentialPolicy {
	return &ExponentialPolicy{
		RetryCount:  constants.DefaultRetryCount,
		MinInterval: constants.RetryMinInterval,
		MaxInterval: constants.RetryMaxInterval,
	}
}

// ShouldRetry implements Policy.
func (p *ExponentialPolicy) ShouldRetry(status int, rc *RetryContext) Decision {
	if rc.Count >= p.RetryCount || !RetryableStatus(status) {
		return Decision{}
	}

	interval := p.MinInterval << uint(rc.Count)
	if interval > p.MaxInterval || interval <= 0 {
		interval = p.MaxInterval
	}
	if p.Jitter && interval > 1 {
		half := interval / 2
		interval = half + time.Duration(rand.Int63n(int64(half)))
	}
	return Decision{Retry: true, Interval: interval}
}

// Retry returns a filter that replays failed attempts per policy. The replayed
// request passes back through every filter inside this one, so a signing
// filter placed inside refreshes timestamp-dependent headers on each attempt.
//
// The last failed attempt's response and error surface to the caller
// unchanged once the policy declines.
func Retry(policy Policy) Filter {
	return FilterFunc(func(next Handler) Handler {
		return func(r *Request) (*http.Response, error) {
			for {
				resp, err := next(r)

				status := 0
				if resp != nil {
					status = resp.StatusCode
				}
				if err == nil && status < 400 {
					return resp, nil
				}

				r.Retry.LastStatus = status
				r.Retry.LastErr = err

				d := policy.ShouldRetry(status, &r.Retry)
				if !d.Retry {
					return resp, err
				}
				if d.Interval < 0 {
					d.Interval = 0
				}

				// The failed response is ours now; drain it so the
				// connection returns to the pool.
				if resp != nil {
					io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
				}

				if rerr := r.Rewind(); rerr != nil {
					return nil, rerr
				}

				r.Retry.Count++
				r.Retry.Accumulated += d.Interval

				select {
				case <-time.After(d.Interval):
				case <-r.Req.Context().Done():
					return nil, r.Req.Context().Err()
				}
			}
		}
	})
}
