// Package ncp is a thin client for the Naver Cloud Platform Maps REST API.
//
// Every call is a single authenticated GET. Non-2xx responses become a
// *TransportError; nothing is retried or cached.
package ncp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/navermapmcp/pkg/tracing"
)

const (
	// DefaultBaseURL is the Maps API gateway origin.
	DefaultBaseURL = "https://maps.apigw.ntruss.com"

	// LegacyBaseURL is the pre-2025 gateway origin, still served for older keys.
	LegacyBaseURL = "https://naveropenapi.apigw.ntruss.com"

	// DefaultTimeout bounds a single provider request.
	DefaultTimeout = 30 * time.Second

	headerKeyID = "X-NCP-APIGW-API-KEY-ID"
	headerKey   = "X-NCP-APIGW-API-KEY"

	// static map rasters top out at a few MB
	maxBodyBytes = 16 << 20
)

// Credentials is the API key pair issued by the NCP console.
type Credentials struct {
	KeyID string
	Key   string
}

// Validate reports ErrMissingCredentials if either half is empty.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.KeyID) == "" || strings.TrimSpace(c.Key) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Hooks observe provider exchanges. statusCode is zero when no response
// was received.
type Hooks struct {
	OnResponse func(endpoint string, statusCode int, latency time.Duration, err error)
}

// Params are query parameters. Nil values are omitted from the URL;
// everything else is stringified with fmt.
type Params map[string]any

// Binary is a raw response payload.
type Binary struct {
	Data        []byte
	ContentType string
}

// Client issues requests against the Maps API. It holds no mutable state
// after construction and is safe for concurrent use.
type Client struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	hooks      Hooks
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API origin.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHooks installs response observers.
func WithHooks(h Hooks) Option {
	return func(c *Client) {
		c.hooks = h
	}
}

// NewClient creates a client bound to creds.
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		creds:   creds,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			}),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "ncp")
	return c
}

// BaseURL returns the origin requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON requests path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params Params, out any) error {
	body, _, err := c.request(ctx, path, params, false)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// GetBinary requests path and returns the body unparsed.
func (c *Client) GetBinary(ctx context.Context, path string, params Params) (Binary, error) {
	body, contentType, err := c.request(ctx, path, params, true)
	if err != nil {
		return Binary{}, err
	}
	return Binary{Data: body, ContentType: contentType}, nil
}

func (c *Client) request(ctx context.Context, path string, params Params, expectBinary bool) ([]byte, string, error) {
	ctx, span := tracing.StartSpan(ctx, "ncp.request "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.ProviderAttributes(path, expectBinary)...),
	)
	defer span.End()

	start := time.Now()
	body, contentType, status, err := c.do(ctx, path, params)
	latency := time.Since(start)

	if c.hooks.OnResponse != nil {
		c.hooks.OnResponse(path, status, latency, err)
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrProviderStatus, status),
		attribute.Int(tracing.AttrProviderBodyBytes, len(body)),
	)
	if err != nil {
		tracing.Fail(span, ErrorKind(err), err)
		c.logger.Warn("provider request failed",
			"endpoint", path,
			"status", status,
			"duration", latency,
			"error", err)
		return nil, "", err
	}
	span.SetStatus(codes.Ok, "")

	c.logger.Debug("provider request",
		"endpoint", path,
		"status", status,
		"bytes", len(body),
		"duration", latency)

	return body, contentType, nil
}

func (c *Client) do(ctx context.Context, path string, params Params) ([]byte, string, int, error) {
	u, err := c.buildURL(path, params)
	if err != nil {
		return nil, "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerKeyID, c.creds.KeyID)
	req.Header.Set(headerKey, c.creds.Key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, "", resp.StatusCode, &TransportError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Status:     reasonPhrase(resp),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", resp.StatusCode, fmt.Errorf("read %s response: %w", path, err)
	}
	return body, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

func (c *Client) buildURL(path string, params Params) (string, error) {
	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid provider URL: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		if v == nil {
			continue
		}
		q.Set(k, fmt.Sprint(v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// reasonPhrase strips the numeric code from resp.Status, falling back to
// the standard text when the server sent none.
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
