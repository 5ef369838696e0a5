package storage

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ServiceError is a non-2xx response from the storage service, carrying the
// service error code and request id for support tickets alongside the HTTP
// status.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storage: %s (%d): %s [request id %s]", e.Code, e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("storage: request failed with status %d [request id %s]", e.StatusCode, e.RequestID)
}

// newServiceError consumes and closes resp.Body. The service reports errors as
// an XML document; a missing or unparsable body still yields a usable error
// from the status line.
func newServiceError(resp *http.Response) *ServiceError {
	se := &ServiceError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("x-ms-request-id"),
	}

	var body struct {
		XMLName xml.Name `xml:"Error"`
		Code    string   `xml:"Code"`
		Message string   `xml:"Message"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	if err == nil && xml.Unmarshal(raw, &body) == nil {
		se.Code = body.Code
		se.Message = body.Message
	}
	return se
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsAuthenticationError reports whether the service rejected the request's
// signature or credentials.
func IsAuthenticationError(err error) bool {
	var se *ServiceError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusUnauthorized ||
		se.StatusCode == http.StatusForbidden ||
		se.Code == "AuthenticationFailed"
}
