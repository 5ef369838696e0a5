package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/altostore/altostore/internal/constants"
)

// FetchSignedURL streams the object behind a pre-signed URL into w and
// returns the byte count. Signed URLs carry their authorization in the query
// string, so the whole GET is replayable and a stock retrying client is safe
// to use; no request pipeline or re-signing is involved.
func FetchSignedURL(ctx context.Context, log zerolog.Logger, signedURL string, w io.Writer) (int64, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = constants.DefaultRetryCount
	client.RetryWaitMin = constants.RetryMinInterval
	client.RetryWaitMax = constants.RetryMaxInterval
	client.Logger = retryLogger{log}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return 0, fmt.Errorf("transfer: bad signed url: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("transfer: fetch signed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("transfer: signed url fetch failed with status %d", resp.StatusCode)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("transfer: stream signed url body: %w", err)
	}
	return n, nil
}

// retryLogger adapts zerolog to retryablehttp's leveled logger.
type retryLogger struct {
	log zerolog.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.emit(l.log.Error(), msg, kv) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.emit(l.log.Warn(), msg, kv) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.emit(l.log.Info(), msg, kv) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.emit(l.log.Debug(), msg, kv) }

func (l retryLogger) emit(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
