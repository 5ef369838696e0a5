// Package storage provides credentials, request signing and signed request
// execution for an Azure-compatible object storage service. Resource
// operations build on Client.Exec; the heavy lifting of retry and transport
// lives in the pipeline package.
package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredentials is returned when signing is attempted without a
// complete account name + key pair. Requests are never silently signed with
// empty key material.
var ErrMissingCredentials = errors.New("storage: account name and access key are required")

const (
	// EmulatorAccountName is the fixed account used by the local storage
	// emulator.
	EmulatorAccountName = "devstoreaccount1"

	// EmulatorAccountKey is the well-known key for the emulator account.
	EmulatorAccountKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// Credentials holds the signing key material for one storage account.
// Immutable once constructed and safe to share across concurrent requests;
// rotating a key means constructing a new Credentials.
type Credentials struct {
	accountName string
	accountKey  []byte
}

// NewCredentials validates and decodes an account key. The key is the
// Base64-encoded secret from the portal; signing uses the decoded bytes.
func NewCredentials(accountName, accountKey string) (*Credentials, error) {
	if accountName == "" || accountKey == "" {
		return nil, ErrMissingCredentials
	}
	key, err := base64.StdEncoding.DecodeString(accountKey)
	if err != nil {
		return nil, fmt.Errorf("storage: malformed account key: %w", err)
	}
	return &Credentials{accountName: accountName, accountKey: key}, nil
}

// NewEmulatorCredentials returns credentials for the local emulator account.
func NewEmulatorCredentials() *Credentials {
	cred, err := NewCredentials(EmulatorAccountName, EmulatorAccountKey)
	if err != nil {
		// The constant key is valid Base64.
		panic(err)
	}
	return cred
}

// AccountName returns the storage account name.
func (c *Credentials) AccountName() string {
	return c.accountName
}

// canonicalAccountName strips the -secondary suffix used when addressing the
// secondary endpoint of a geo-replicated account; signatures are always
// computed against the primary account name.
func (c *Credentials) canonicalAccountName() string {
	return strings.TrimSuffix(c.accountName, "-secondary")
}

// sign computes the Base64-encoded HMAC-SHA256 of message under the decoded
// account key.
func (c *Credentials) sign(message string) string {
	mac := hmac.New(sha256.New, c.accountKey)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
