package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func immediateRetry(max int) Policy {
	return PolicyFunc(func(status int, rc *RetryContext) Decision {
		if rc.Count >= max || !RetryableStatus(status) {
			return Decision{}
		}
		return Decision{Retry: true, Interval: time.Millisecond}
	})
}

// TestCompositionOrder verifies filters wrap right-to-left: the first filter
// listed sees the request first and the response last.
func TestCompositionOrder(t *testing.T) {
	var order []string
	tag := func(name string) Filter {
		return FilterFunc(func(next Handler) Handler {
			return func(r *Request) (*http.Response, error) {
				order = append(order, name+"-in")
				resp, err := next(r)
				order = append(order, name+"-out")
				return resp, err
			}
		})
	}

	terminal := func(r *Request) (*http.Response, error) {
		order = append(order, "transport")
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(""))}, nil
	}

	req, _ := http.NewRequest("GET", "http://example.invalid/", nil)
	resp, err := New(terminal, tag("outer"), tag("inner"))(NewRequest(req))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	want := []string{"outer-in", "inner-in", "transport", "inner-out", "outer-out"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRetryReplaysUntilSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	handler := New(Transport(srv.Client()), Retry(immediateRetry(5)))

	req, _ := http.NewRequest("GET", srv.URL, nil)
	resp, err := handler(NewRequest(req))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("server hits = %d, want 3", n)
	}
}

// TestRetrySurfacesLastFailure verifies exhaustion returns the final
// response unchanged rather than a synthetic error.
func TestRetrySurfacesLastFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-request-id", "req-123")
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	handler := New(Transport(srv.Client()), Retry(immediateRetry(2)))

	req, _ := http.NewRequest("GET", srv.URL, nil)
	preq := NewRequest(req)
	resp, err := handler(preq)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if resp.Header.Get("x-ms-request-id") != "req-123" {
		t.Error("final response headers not preserved")
	}
	if preq.Retry.Count != 2 {
		t.Errorf("retry count = %d, want 2", preq.Retry.Count)
	}
	if preq.Retry.LastStatus != http.StatusServiceUnavailable {
		t.Errorf("last status = %d, want 503", preq.Retry.LastStatus)
	}
}

func TestRetryRewindsBody(t *testing.T) {
	var bodies []string
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if atomic.AddInt32(&hits, 1) == 1 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	handler := New(Transport(srv.Client()), Retry(immediateRetry(3)))

	// bytes.Reader bodies get GetBody for free from NewRequest.
	req, _ := http.NewRequest("PUT", srv.URL, bytes.NewReader([]byte("chunk-payload")))
	resp, err := handler(NewRequest(req))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(bodies))
	}
	for i, b := range bodies {
		if b != "chunk-payload" {
			t.Errorf("attempt %d body = %q, want full payload", i+1, b)
		}
	}
}

// TestRetryRefusesExhaustedStream verifies a consumed, non-rewindable body is
// never replayed: the caller gets ErrStreamExhausted instead of a second send.
func TestRetryRefusesExhaustedStream(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		atomic.AddInt32(&hits, 1)
		http.Error(w, "flaky", http.StatusInternalServerError)
	}))
	defer srv.Close()

	handler := New(Transport(srv.Client()), Retry(immediateRetry(3)))

	// An io.Pipe-style body has no GetBody; once sent it cannot be rewound.
	req, _ := http.NewRequest("PUT", srv.URL, io.NopCloser(strings.NewReader("one-shot stream")))
	req.ContentLength = int64(len("one-shot stream"))
	preq := NewRequest(req)
	preq.GetBody = nil
	preq.Replayable = false

	_, err := handler(preq)
	if !errors.Is(err, ErrStreamExhausted) {
		t.Fatalf("err = %v, want ErrStreamExhausted", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hits = %d, want exactly 1 (no replay)", n)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	slow := PolicyFunc(func(status int, rc *RetryContext) Decision {
		return Decision{Retry: true, Interval: 10 * time.Second}
	})
	handler := New(Transport(srv.Client()), Retry(slow))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL, nil)
	start := time.Now()
	_, err := handler(NewRequest(req))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v, should abort backoff sleep promptly", elapsed)
	}
}
