package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Auth types accepted by the HTTP transport.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
)

var (
	errTokenEmpty = errors.New("authentication token cannot be empty")
	errTokenShort = errors.New("authentication token is too short, use at least 16 characters")
	errTokenWeak  = errors.New("authentication token appears to be weak, use a randomly generated token")
)

var weakTokens = []string{
	"password", "secret", "token", "admin", "test", "default",
	"12345", "123456", "password123", "secret123", "admin123",
}

// secureCompare performs a constant-time string comparison.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidateAuthToken reports tokens that are empty, short or contain a
// common weak word. The transport only warns on these.
func ValidateAuthToken(token string) error {
	if token == "" {
		return errTokenEmpty
	}
	if len(token) < 16 {
		return errTokenShort
	}
	lower := strings.ToLower(token)
	for _, weak := range weakTokens {
		if strings.Contains(lower, weak) {
			return errTokenWeak
		}
	}
	return nil
}

// AuthResult represents the result of authentication
type AuthResult struct {
	Authorized bool
	Error      string
	Duration   time.Duration
}

// AuthenticateBearer checks an Authorization header of the form
// "Bearer <token>".
func AuthenticateBearer(authHeader, expectedToken string) AuthResult {
	start := time.Now()
	defer time.Sleep(time.Millisecond)

	if authHeader == "" {
		return AuthResult{Error: "Missing Authorization header", Duration: time.Since(start)}
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" {
		return AuthResult{Error: "Invalid Authorization header format", Duration: time.Since(start)}
	}

	if !secureCompare(token, expectedToken) {
		return AuthResult{Error: "Invalid bearer token", Duration: time.Since(start)}
	}
	return AuthResult{Authorized: true, Duration: time.Since(start)}
}

// AuthenticateBasic checks basic auth credentials against an expected
// "user:password" string.
func AuthenticateBasic(username, password, expectedCredentials string) AuthResult {
	start := time.Now()
	defer time.Sleep(time.Millisecond)

	if username == "" || password == "" {
		return AuthResult{Error: "Missing basic auth credentials", Duration: time.Since(start)}
	}

	if !secureCompare(username+":"+password, expectedCredentials) {
		return AuthResult{Error: "Invalid basic auth credentials", Duration: time.Since(start)}
	}
	return AuthResult{Authorized: true, Duration: time.Since(start)}
}

// authenticate applies the configured auth type to r.
func authenticate(r *http.Request, authType, token string) AuthResult {
	switch authType {
	case "", AuthNone:
		return AuthResult{Authorized: true}
	case AuthBearer:
		return AuthenticateBearer(r.Header.Get("Authorization"), token)
	case AuthBasic:
		username, password, ok := r.BasicAuth()
		if !ok {
			return AuthResult{Error: "Missing basic auth credentials"}
		}
		return AuthenticateBasic(username, password, token)
	default:
		return AuthResult{Error: "Unknown auth type"}
	}
}
