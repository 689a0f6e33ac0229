package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/navermapmcp/pkg/monitoring"
)

// ErrTransportStarted is returned by Start when the transport is already serving.
var ErrTransportStarted = errors.New("HTTP transport already started")

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string  `json:"addr"`             // listen address, e.g. ":7082"
	BaseURL        string  `json:"base_url"`         // advertised base URL, derived from the request when empty
	AuthType       string  `json:"auth_type"`        // none, bearer or basic
	AuthToken      string  `json:"auth_token"`       // bearer token or "user:password"
	MCPEndpoint    string  `json:"mcp_endpoint"`     // Streamable HTTP endpoint path
	RateLimit      float64 `json:"rate_limit"`       // requests per second per client IP, 0 disables
	RateBurst      int     `json:"rate_burst"`       // burst size for the rate limiter
	MaxRequestSize int64   `json:"max_request_size"` // maximum request body size in bytes

	// TrustProxyHeaders identifies clients by X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool `json:"trust_proxy_headers"`
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		AuthType:       AuthNone,
		MCPEndpoint:    "/mcp",
		RateBurst:      20,
		MaxRequestSize: 10 << 20,
	}
}

// HTTPTransport serves the MCP server over Streamable HTTP together
// with health and discovery endpoints.
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	streamable    *mcpserver.StreamableHTTPServer
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	closed        bool
	mu            sync.RWMutex
}

// NewHTTPTransport creates a new HTTP transport instance
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http_transport")

	if config.MCPEndpoint == "" {
		config.MCPEndpoint = "/mcp"
	}
	if config.AuthType == "" {
		config.AuthType = AuthNone
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = DefaultHTTPTransportConfig().MaxRequestSize
	}
	if config.AuthType != AuthNone {
		if err := ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token detected", "error", err)
		}
	}

	t := &HTTPTransport{
		config: config,
		logger: logger,
		streamable: mcpserver.NewStreamableHTTPServer(
			mcpServer,
			mcpserver.WithEndpointPath(config.MCPEndpoint),
		),
		mux: http.NewServeMux(),
	}
	if config.RateLimit > 0 {
		t.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), config.RateBurst, config.TrustProxyHeaders)
	}

	t.setupRoutes()
	return t
}

// SetHealthChecker sets the health checker for the HTTP transport
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/{$}", t.handleServiceDiscovery)

	// health endpoints are never authenticated or throttled
	t.mux.HandleFunc("/health", t.handleHealth)
	t.mux.HandleFunc("/ready", t.handleReady)
	t.mux.HandleFunc("/live", t.handleLive)

	var mcp http.Handler = t.authMiddleware(t.streamable)
	if t.rateLimiter != nil {
		mcp = t.rateLimiter.Middleware(mcp)
	}
	t.mux.Handle(t.config.MCPEndpoint, mcp)
}

// Handler returns the complete middleware chain around the routes.
func (t *HTTPTransport) Handler() http.Handler {
	handler := http.Handler(t.mux)
	handler = RequestSizeLimiter(t.config.MaxRequestSize)(handler)
	handler = SecurityHeaders(handler)
	handler = LoggingMiddleware(t.logger)(handler)
	handler = TracingMiddleware()(handler)
	return handler
}

// authMiddleware provides authentication for MCP endpoints
func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := authenticate(r, t.config.AuthType, t.config.AuthToken)
		if !result.Authorized {
			t.logger.Warn("authentication failed",
				"remote_addr", getIP(r, t.config.TrustProxyHeaders),
				"path", r.URL.Path,
				"auth_type", t.config.AuthType,
				"error", result.Error,
				"auth_duration", result.Duration)
			monitoring.RecordError("http_transport", "unauthorized")

			if t.config.AuthType == AuthBasic {
				w.Header().Set("WWW-Authenticate", `Basic realm="mcp"`)
			} else {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			t.writeJSONRPCError(w, http.StatusUnauthorized, -32001, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	discovery := map[string]any{
		"service":   "mcp-server",
		"transport": "streamable-http",
		"endpoints": map[string]string{
			"mcp": baseURL + t.config.MCPEndpoint,
		},
		"capabilities": map[string]any{
			"tools":   true,
			"prompts": true,
		},
		"auth": map[string]any{
			"required": t.config.AuthType != AuthNone,
		},
	}

	t.writeJSON(w, http.StatusOK, discovery)
}

func (t *HTTPTransport) checker() *monitoring.HealthChecker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.healthChecker
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if hc := t.checker(); hc != nil {
		hc.HealthHandler()(w, r)
		return
	}
	t.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReady provides Kubernetes-style readiness check
func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if hc := t.checker(); hc != nil {
		hc.ReadinessHandler()(w, r)
		return
	}
	t.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "status": "ok"})
}

// handleLive provides Kubernetes-style liveness check
func (t *HTTPTransport) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if hc := t.checker(); hc != nil {
		hc.LivenessHandler()(w, r)
		return
	}
	t.writeJSON(w, http.StatusOK, map[string]any{"alive": true})
}

func (t *HTTPTransport) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.logger.Error("failed to encode response", "error", err)
	}
}

func (t *HTTPTransport) writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	t.writeJSON(w, status, map[string]any{
		"jsonrpc": "2.0",
		"id":      nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// Start serves HTTP until Shutdown is called. It returns
// http.ErrServerClosed after a graceful shutdown, including one that
// happened before Start ran.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return http.ErrServerClosed
	}
	if t.httpSrv != nil {
		t.mu.Unlock()
		return ErrTransportStarted
	}

	t.httpSrv = &http.Server{
		Addr:              t.config.Addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := t.httpSrv
	t.mu.Unlock()

	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"mcp_endpoint", t.config.MCPEndpoint,
		"auth_type", t.config.AuthType,
		"base_url", t.config.BaseURL,
		"rate_limit", t.config.RateLimit,
		"trust_proxy_headers", t.config.TrustProxyHeaders)

	return srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP transport. A transport that is
// shut down cannot be started again.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")

	if err := t.streamable.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown streamable HTTP server", "error", err)
	}

	return t.httpSrv.Shutdown(ctx)
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
