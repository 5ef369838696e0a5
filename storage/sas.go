package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// sasTimeFormat is the on-the-wire timestamp layout for st and se.
const sasTimeFormat = "2006-01-02T15:04:05Z"

// AccountSASOptions describes the scope of an account-level shared access
// signature. Services, ResourceTypes and Permissions use the service's
// single-letter codes (e.g. "b" for blob, "co" for container+object, "rw"
// for read+write); the letters must appear in the order the service
// documents, since they are signed verbatim.
type AccountSASOptions struct {
	Services      string
	ResourceTypes string
	Permissions   string

	// Start is optional; a zero value omits st from the token.
	Start  time.Time
	Expiry time.Time

	// Protocol restricts the schemes the token is valid for, e.g. "https"
	// or "https,http". Empty omits spr.
	Protocol string

	// IPRange restricts callers, e.g. "168.1.5.60-168.1.5.70". Empty
	// omits sip.
	IPRange string

	// APIVersion defaults to DefaultAPIVersion. Part of the signature.
	APIVersion string
}

// ErrInvalidSASOptions is returned when a required SAS field is missing.
var ErrInvalidSASOptions = errors.New("storage: sas requires services, resource types, permissions and an expiry")

// AccountSAS returns the signed query parameters for an account SAS token.
// Append them to any resource URL under the account; requests presenting them
// need no Authorization header.
func (c *Credentials) AccountSAS(opts AccountSASOptions) (url.Values, error) {
	if opts.Services == "" || opts.ResourceTypes == "" || opts.Permissions == "" || opts.Expiry.IsZero() {
		return nil, ErrInvalidSASOptions
	}
	version := opts.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	start := ""
	if !opts.Start.IsZero() {
		start = opts.Start.UTC().Format(sasTimeFormat)
	}
	expiry := opts.Expiry.UTC().Format(sasTimeFormat)

	// Field order and the trailing newline are part of the contract.
	sts := strings.Join([]string{
		c.canonicalAccountName(),
		opts.Permissions,
		opts.Services,
		opts.ResourceTypes,
		start,
		expiry,
		opts.IPRange,
		opts.Protocol,
		version,
		"",
	}, "\n")

	q := url.Values{}
	q.Set("sv", version)
	q.Set("ss", opts.Services)
	q.Set("srt", opts.ResourceTypes)
	q.Set("sp", opts.Permissions)
	if start != "" {
		q.Set("st", start)
	}
	q.Set("se", expiry)
	if opts.Protocol != "" {
		q.Set("spr", opts.Protocol)
	}
	if opts.IPRange != "" {
		q.Set("sip", opts.IPRange)
	}
	q.Set("sig", c.sign(sts))
	return q, nil
}

// SignURL appends an account SAS token to a resource URL.
func (c *Credentials) SignURL(rawURL string, opts AccountSASOptions) (string, error) {
	q, err := c.AccountSAS(opts)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("storage: bad resource url: %w", err)
	}
	existing := u.Query()
	for name, vv := range q {
		for _, v := range vv {
			existing.Set(name, v)
		}
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}
