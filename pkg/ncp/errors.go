package ncp

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingCredentials is returned by Credentials.Validate when either
// half of the API key pair is empty.
var ErrMissingCredentials = errors.New("ncp: NCP_CLIENT_ID and NCP_CLIENT_SECRET must both be set")

// TransportError reports a non-2xx response from the provider. The
// response body is discarded; only the status line is kept.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Status     string // reason phrase, e.g. "Forbidden"
}

func (e *TransportError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("HTTP error %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error %d %s", e.StatusCode, e.Status)
}

// IsTransportError reports whether err wraps a TransportError and returns it.
func IsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// ErrorKind classifies a provider error for metrics and spans: "auth",
// "quota", "server" or "client" for HTTP errors, "network" otherwise.
func ErrorKind(err error) string {
	te, ok := IsTransportError(err)
	if !ok {
		return "network"
	}
	switch {
	case te.StatusCode == http.StatusUnauthorized, te.StatusCode == http.StatusForbidden:
		return "auth"
	case te.StatusCode == http.StatusTooManyRequests:
		return "quota"
	case te.StatusCode >= 500:
		return "server"
	default:
		return "client"
	}
}
