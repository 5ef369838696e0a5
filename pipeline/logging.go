package pipeline

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Logging returns a filter that records each attempt. Placed inside the retry
// filter it logs every replay, not just the final outcome.
func Logging(log zerolog.Logger) Filter {
	return FilterFunc(func(next Handler) Handler {
		return func(r *Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(r)
			elapsed := time.Since(start)

			ev := log.Debug()
			if err != nil || (resp != nil && resp.StatusCode >= 400) {
				ev = log.Warn()
			}
			ev = ev.
				Str("method", r.Req.Method).
				Str("path", r.Req.URL.Path).
				Dur("elapsed", elapsed).
				Int("attempt", r.Retry.Count+1)
			if resp != nil {
				ev = ev.Int("status", resp.StatusCode)
			}
			if err != nil {
				ev = ev.Err(err)
			}
			ev.Msg("storage request")
			return resp, err
		}
	})
}
