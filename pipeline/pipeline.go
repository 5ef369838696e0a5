// Package pipeline composes the filter chain every storage request travels
// through. A Filter wraps a Handler and may inspect or modify the request
// before calling the next stage, inspect the result after it returns, and
// invoke the next stage again to replay a failed attempt. The terminal stage
// is the HTTP transport.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrStreamExhausted is returned when a retry would require re-reading a
// request body that has already been handed to the transport and cannot be
// rewound. The failed attempt's error is wrapped alongside it.
var ErrStreamExhausted = errors.New("request body already consumed, cannot replay")

// Handler executes a request and returns the transport-level response.
// A nil error with a response carrying a 4xx/5xx status is still a failed
// operation; filters decide how to react.
type Handler func(*Request) (*http.Response, error)

// Filter wraps a Handler, composing around the next stage of the chain.
type Filter interface {
	Apply(next Handler) Handler
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(next Handler) Handler

// Apply implements Filter.
func (f FilterFunc) Apply(next Handler) Handler { return f(next) }

// New composes filters around the terminal transport. The first filter listed
// is the outermost: New(t, a, b) yields a(b(t)).
func New(transport Handler, filters ...Filter) Handler {
	h := transport
	for i := len(filters) - 1; i >= 0; i-- {
		h = filters[i].Apply(h)
	}
	return h
}

// RetryContext tracks the retry state of one logical operation. It is created
// fresh per operation, mutated by the retry filter across attempts, and
// discarded on success or final failure.
type RetryContext struct {
	// Count is the number of retries already performed (0 on first attempt).
	Count int
	// LastStatus is the HTTP status of the most recent failed attempt,
	// 0 when the failure happened below the HTTP layer.
	LastStatus int
	// LastErr is the transport error of the most recent failed attempt.
	LastErr error
	// Accumulated is the total backoff delay waited so far.
	Accumulated time.Duration
}

// Request is the mutable descriptor threaded through the filter chain.
// It is owned exclusively by one operation; the same pointer is seen by every
// filter across every retry attempt.
type Request struct {
	Req *http.Request

	// GetBody returns a fresh copy of the request body for replay.
	// Populated automatically from Req.GetBody when available.
	GetBody func() (io.ReadCloser, error)

	// Replayable marks a request safe to resend even without GetBody
	// (bodyless requests are replayable by construction).
	Replayable bool

	// Retry is this operation's retry state.
	Retry RetryContext

	consumed bool
}

// NewRequest wraps an HTTP request for the pipeline. Requests without a body,
// or with a rewindable one (GetBody set, as NewRequestWithContext does for
// bytes and strings readers), are replayable.
func NewRequest(req *http.Request) *Request {
	r := &Request{Req: req}
	if req.Body == nil {
		r.Replayable = true
	}
	if req.GetBody != nil {
		r.GetBody = req.GetBody
		r.Replayable = true
	}
	return r
}

// Rewind prepares the request for another attempt. Once a non-rewindable body
// has been handed to the transport the request can never be replayed: the
// stream data is gone. That holds for partially-sent bodies too, so the check
// is on any consumption, not only a fully-sent body.
func (r *Request) Rewind() error {
	if r.Req.Body == nil || !r.consumed {
		return nil
	}
	if r.GetBody == nil {
		if !r.Replayable {
			return fmt.Errorf("%w (last failure: %v)", ErrStreamExhausted, r.Retry.LastErr)
		}
		return nil
	}
	body, err := r.GetBody()
	if err != nil {
		return fmt.Errorf("rewinding request body: %w", err)
	}
	r.Req.Body = body
	return nil
}

// Transport returns the terminal Handler backed by client.
func Transport(client *http.Client) Handler {
	return func(r *Request) (*http.Response, error) {
		if r.Req.Body != nil {
			r.consumed = true
		}
		return client.Do(r.Req)
	}
}
