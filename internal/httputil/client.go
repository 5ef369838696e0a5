package httputil

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/altostore/altostore/internal/constants"
)

// NewTransferClient creates an HTTP client optimized for large segmented
// transfers with proxy support.
//
// Key features:
//   - Proxy support (uses NewClient as base)
//   - Large connection pool for concurrent block operations
//   - HTTP/2 support with runtime toggle (ALTO_DISABLE_HTTP2 env var)
//   - Disabled compression (no benefit for already-compressed payloads)
func NewTransferClient(cfg ProxyConfig) (*nethttp.Client, error) {
	baseClient, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM mode wraps the transport in a negotiator; the inner transport
		// already carries the pooling settings from NewClient.
		return baseClient, nil
	}

	tr.MaxIdleConns = 512
	tr.MaxIdleConnsPerHost = 100
	tr.MaxConnsPerHost = 100
	tr.IdleConnTimeout = constants.HTTPIdleConnTimeout

	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Runtime toggle for HTTP/2, useful when a middlebox mishandles it.
	if os.Getenv("ALTO_DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return baseClient, nil
}
