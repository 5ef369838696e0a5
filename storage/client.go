package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/altostore/altostore/internal/httputil"
	"github.com/altostore/altostore/pipeline"
)

const (
	// DefaultAPIVersion is sent as x-ms-version on every request.
	DefaultAPIVersion = "2020-10-02"

	// DefaultBaseURL is the DNS suffix of the public service endpoints.
	DefaultBaseURL = "core.windows.net"
)

// Service endpoint kinds used by Client.Endpoint.
const (
	ServiceBlob  = "blob"
	ServiceQueue = "queue"
	ServiceTable = "table"
	ServiceFile  = "file"
)

// emulatorBlobEndpoint is the fixed path-style blob endpoint of the local
// emulator.
const emulatorBlobEndpoint = "http://127.0.0.1:10000"

// Options configures a Client. The zero value gives HTTPS against the public
// cloud with the default linear retry policy.
type Options struct {
	// APIVersion overrides DefaultAPIVersion.
	APIVersion string

	// BaseURL overrides DefaultBaseURL, for sovereign clouds.
	BaseURL string

	// Endpoint forces path-style addressing against a fixed host, e.g.
	// "http://127.0.0.1:10000" for a custom emulator port. When set it
	// wins over BaseURL for every service.
	Endpoint string

	// UseHTTP downgrades the scheme; only sensible against test doubles.
	UseHTTP bool

	// HTTPClient overrides the pooled transfer client.
	HTTPClient *http.Client

	// Policy overrides the default linear retry policy.
	Policy pipeline.Policy

	// Logger receives one entry per attempt. Defaults to a disabled logger.
	Logger zerolog.Logger

	// Filters are appended outside retry, before logging and signing. Used
	// by tests to observe or fault-inject attempts.
	Filters []pipeline.Filter
}

// Client executes signed requests against one storage account. All resource
// operations funnel through Exec so they share the same pipeline: outer
// filters, retry, per-attempt logging, per-attempt signing, transport.
type Client struct {
	cred       *Credentials
	apiVersion string
	baseURL    string
	endpoint   string
	scheme     string
	handler    pipeline.Handler
}

// NewClient builds a client from credentials. Pass nil opts for defaults.
// Credentials for the emulator account switch the client to the emulator's
// path-style endpoint automatically.
func NewClient(cred *Credentials, opts *Options) (*Client, error) {
	if cred == nil {
		return nil, ErrMissingCredentials
	}
	if opts == nil {
		opts = &Options{}
	}

	c := &Client{
		cred:       cred,
		apiVersion: opts.APIVersion,
		baseURL:    opts.BaseURL,
		endpoint:   opts.Endpoint,
		scheme:     "https",
	}
	if c.endpoint == "" && cred.AccountName() == EmulatorAccountName {
		c.endpoint = emulatorBlobEndpoint
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if opts.UseHTTP {
		c.scheme = "http"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = httputil.NewTransferClient(httputil.ProxyConfig{})
		if err != nil {
			return nil, err
		}
	}
	policy := opts.Policy
	if policy == nil {
		policy = pipeline.NewLinearPolicy()
	}

	// Signing sits inside retry so every replay carries a fresh x-ms-date
	// and a signature over it; logging sits between them to record each
	// attempt as sent.
	filters := append([]pipeline.Filter{}, opts.Filters...)
	filters = append(filters,
		pipeline.Retry(policy),
		pipeline.Logging(opts.Logger),
		SigningFilter(cred),
	)
	c.handler = pipeline.New(pipeline.Transport(httpClient), filters...)

	return c, nil
}

// AccountName returns the account the client is bound to.
func (c *Client) AccountName() string {
	return c.cred.AccountName()
}

// Credentials returns the client's credentials, for SAS generation.
func (c *Client) Credentials() *Credentials {
	return c.cred
}

// Endpoint returns the base URL for one service, without a trailing slash.
// The emulator uses path-style addressing (host/account) instead of the
// account-as-subdomain form.
func (c *Client) Endpoint(service string) string {
	if c.endpoint != "" {
		return fmt.Sprintf("%s/%s", c.endpoint, c.cred.AccountName())
	}
	return fmt.Sprintf("%s://%s.%s.%s", c.scheme, c.cred.AccountName(), service, c.baseURL)
}

// buildURL joins the service endpoint, resource path and query parameters.
func (c *Client) buildURL(service, path string, params url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(c.Endpoint(service) + path)
	if err != nil {
		return "", fmt.Errorf("storage: bad resource path %q: %w", path, err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String(), nil
}

// Exec sends one signed request with a replayable byte-slice body and returns
// the response. Non-2xx responses are converted to *ServiceError with the body
// consumed; on success the caller owns resp.Body.
func (c *Client) Exec(ctx context.Context, verb, service, path string, params url.Values, headers http.Header, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if len(body) > 0 {
		rdr = bytes.NewReader(body)
	}
	req, err := c.newRequest(ctx, verb, service, path, params, headers, rdr)
	if err != nil {
		return nil, err
	}
	if len(body) > 0 {
		req.ContentLength = int64(len(body))
	}
	return c.do(pipeline.NewRequest(req))
}

// ExecStream is Exec for streaming bodies. contentLength must be the exact
// byte count. If the reader cannot be reopened the request is sent exactly
// once; a retryable failure after the stream is consumed surfaces
// pipeline.ErrStreamExhausted instead of a replay.
func (c *Client) ExecStream(ctx context.Context, verb, service, path string, params url.Values, headers http.Header, body io.Reader, contentLength int64) (*http.Response, error) {
	req, err := c.newRequest(ctx, verb, service, path, params, headers, body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = contentLength
	return c.do(pipeline.NewRequest(req))
}

func (c *Client) newRequest(ctx context.Context, verb, service, path string, params url.Values, headers http.Header, body io.Reader) (*http.Request, error) {
	target, err := c.buildURL(service, path, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, verb, target, body)
	if err != nil {
		return nil, fmt.Errorf("storage: build request: %w", err)
	}
	req.Header.Set("x-ms-version", c.apiVersion)
	for name, vv := range headers {
		for _, v := range vv {
			req.Header.Add(name, v)
		}
	}
	if req.ContentLength > 0 {
		req.Header.Set("Content-Length", strconv.FormatInt(req.ContentLength, 10))
	}
	return req, nil
}

func (c *Client) do(preq *pipeline.Request) (*http.Response, error) {
	resp, err := c.handler(preq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, newServiceError(resp)
	}
	return resp, nil
}
