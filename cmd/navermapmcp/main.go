package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/navermapmcp/pkg/config"
	"github.com/NERVsystems/navermapmcp/pkg/monitoring"
	"github.com/NERVsystems/navermapmcp/pkg/ncp"
	"github.com/NERVsystems/navermapmcp/pkg/server"
	"github.com/NERVsystems/navermapmcp/pkg/tools"
	"github.com/NERVsystems/navermapmcp/pkg/tracing"
	ver "github.com/NERVsystems/navermapmcp/pkg/version"
)

// providerConnection names the upstream in the health payload.
const providerConnection = "naver_maps"

const shutdownTimeout = 30 * time.Second

var (
	showVersionFlag bool
	debug           bool
	configPath      string
	generateConfig  string
	mergeOnly       bool
	logFormat       string

	// Provider flags
	baseURL         string
	providerTimeout time.Duration

	// HTTP transport flags
	enableHTTP    bool
	httpOnly      bool
	httpAddr      string
	httpBaseURL   string
	httpAuthType  string
	httpAuthToken string
	httpRateLimit float64
	httpRateBurst int
	trustProxy    bool

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string

	// Static map flags
	staticMapDelivery string
	staticMapDir      string

	parentCheck time.Duration
)

func init() {
	d := config.Default()

	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&generateConfig, "generate-config", "", "Generate an MCP client config file at the specified path")
	flag.BoolVar(&mergeOnly, "merge-only", false, "Only merge new config, don't overwrite existing")
	flag.StringVar(&logFormat, "log-format", d.Logging.Format, "Log format: text or json")

	flag.StringVar(&baseURL, "base-url", d.Provider.BaseURL,
		"Naver Cloud Platform Maps API base URL (older keys may need "+ncp.LegacyBaseURL+")")
	flag.DurationVar(&providerTimeout, "timeout", d.Provider.Timeout, "Timeout for each Naver Maps API request")

	flag.BoolVar(&enableHTTP, "enable-http", false, "Enable Streamable HTTP transport (in addition to stdio)")
	flag.BoolVar(&httpOnly, "http-only", false, "Run HTTP transport only, skip stdio (requires --enable-http)")
	flag.StringVar(&httpAddr, "http-addr", d.Server.HTTP.Addr, "HTTP server address")
	flag.StringVar(&httpBaseURL, "http-base-url", "", "Base URL for HTTP transport (auto-detected if empty)")
	flag.StringVar(&httpAuthType, "http-auth-type", d.Server.HTTP.AuthType, "HTTP authentication type: none, bearer, basic")
	flag.StringVar(&httpAuthToken, "http-auth-token", "", "HTTP authentication token")
	flag.Float64Var(&httpRateLimit, "http-rate-limit", d.Server.HTTP.RateLimit, "Requests per second per client on the HTTP transport (0 disables)")
	flag.IntVar(&httpRateBurst, "http-rate-burst", d.Server.HTTP.RateBurst, "Burst size for the HTTP rate limiter")
	flag.BoolVar(&trustProxy, "http-trust-proxy-headers", false, "Rate limit by X-Forwarded-For/X-Real-IP (only behind a trusted proxy)")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", d.Monitoring.Enabled, "Enable Prometheus metrics and health tracking")
	flag.StringVar(&monitoringAddr, "monitoring-addr", d.Monitoring.Addr, "Monitoring server address")

	flag.StringVar(&staticMapDelivery, "static-map-delivery", d.StaticMap.Delivery, "Static map delivery: inline or file")
	flag.StringVar(&staticMapDir, "static-map-dir", "", "Directory for static map images when delivery is file")

	flag.DurationVar(&parentCheck, "parent-check", 5*time.Second, "Exit when the parent process goes away, checked at this interval (0 disables)")
}

func main() {
	flag.Parse()

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	if generateConfig != "" {
		if err := generateClientConfig(generateConfig, mergeOnly); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "generated MCP client config at %s\n", generateConfig)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, explicitFlags())
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging.Format, cfg.LogLevel())
	slog.SetDefault(logger)

	ctx := context.Background()
	flushTracing, err := tracing.Setup(ctx, tracingOptions(cfg.Tracing))
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := flushTracing(ctx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if cfg.Tracing.Endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled",
				"endpoint", cfg.Tracing.Endpoint,
				"insecure", cfg.Tracing.Insecure,
				"sample_ratio", cfg.Tracing.SampleRatio)
		}
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run starts every enabled transport and blocks until a signal arrives,
// a transport fails or, in stdio-only mode, the client disconnects.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...server.Option) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpCfg := cfg.Server.HTTP
	logger.Info("starting Naver Maps MCP server",
		"version", ver.BuildVersion,
		"log_level", cfg.LogLevel().String(),
		"base_url", cfg.Provider.BaseURL,
		"timeout", cfg.Provider.Timeout,
		"http_enabled", httpCfg.Enabled,
		"http_only", httpCfg.Only,
		"monitoring_enabled", cfg.Monitoring.Enabled,
		"static_map_delivery", cfg.StaticMap.Delivery)

	var healthChecker *monitoring.HealthChecker
	if cfg.Monitoring.Enabled {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()
	}

	client := ncp.NewClient(cfg.Credentials(),
		ncp.WithBaseURL(cfg.Provider.BaseURL),
		ncp.WithTimeout(cfg.Provider.Timeout),
		ncp.WithLogger(logger),
		ncp.WithHooks(providerHooks(healthChecker)),
	)

	delivery, err := tools.ParseDelivery(cfg.StaticMap.Delivery)
	if err != nil {
		return err
	}
	registry := tools.NewRegistry(client, logger, tools.WithStaticMapOptions(tools.StaticMapOptions{
		Delivery:  delivery,
		OutputDir: cfg.StaticMap.OutputDir,
	}))

	opts = append([]server.Option{server.WithParentMonitor(parentCheck)}, opts...)
	s := server.NewServer(registry, logger, opts...)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Monitoring.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{
			Addr:              cfg.Monitoring.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		}
		// a metrics failure is logged, never fatal to the MCP transports
		g.Go(func() error {
			logger.Info("starting Prometheus metrics server", "addr", cfg.Monitoring.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "addr", cfg.Monitoring.Addr, "error", err)
				monitoring.RecordError("metrics", "listen")
			}
			return nil
		})
		shutdownOnDone(g, gctx, logger, "metrics server", metricsSrv.Shutdown)
	}

	if httpCfg.Enabled {
		transport := server.NewHTTPTransport(s.GetMCPServer(), server.HTTPTransportConfig{
			Addr:        httpCfg.Addr,
			BaseURL:     httpCfg.BaseURL,
			AuthType:    httpCfg.AuthType,
			AuthToken:   httpCfg.AuthToken,
			MCPEndpoint: "/mcp",
			RateLimit:   httpCfg.RateLimit,
			RateBurst:   httpCfg.RateBurst,

			TrustProxyHeaders: httpCfg.TrustProxyHeaders,
		}, logger)
		if healthChecker != nil {
			transport.SetHealthChecker(healthChecker)
		}
		serveUntilDone(g, gctx, logger, "HTTP transport", transport.Start, transport.Shutdown)
	}

	if healthChecker != nil {
		healthChecker.SetTransport(transportInfo(httpCfg))
	}

	if !httpCfg.Only {
		g.Go(func() error {
			monitoring.UpdateActiveConnections("stdio", "session", 1)
			defer monitoring.UpdateActiveConnections("stdio", "session", 0)

			logger.Info("transport_enabled", "type", "stdio")
			err := s.RunWithContext(gctx)
			if !httpCfg.Enabled {
				// nothing else to serve once the stdio client is gone
				stop()
			}
			if err != nil {
				return fmt.Errorf("stdio transport: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		return nil
	})

	return g.Wait()
}

// serveUntilDone runs serve in g and calls shutdown once ctx is done.
// A serve error is fatal to the group.
func serveUntilDone(g *errgroup.Group, ctx context.Context, logger *slog.Logger, name string,
	serve func() error, shutdown func(context.Context) error) {
	g.Go(func() error {
		if err := serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
	shutdownOnDone(g, ctx, logger, name, shutdown)
}

func shutdownOnDone(g *errgroup.Group, ctx context.Context, logger *slog.Logger, name string,
	shutdown func(context.Context) error) {
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down "+name, "error", err)
		}
		return nil
	})
}

// providerHooks feeds every Naver Maps exchange into metrics and, when
// monitoring is on, into the health table.
func providerHooks(hc *monitoring.HealthChecker) ncp.Hooks {
	return ncp.Hooks{
		OnResponse: func(endpoint string, statusCode int, latency time.Duration, err error) {
			monitoring.RecordProviderRequest(endpoint, latency, err == nil)
			if statusCode > 0 {
				monitoring.RecordProviderStatus(endpoint, statusCode)
			}
			if err != nil {
				monitoring.RecordError("ncp", ncp.ErrorKind(err))
			}
			if hc != nil {
				hc.ObserveResponse(providerConnection, statusCode, latency, err)
			}
		},
	}
}

func tracingOptions(t config.TracingConfig) tracing.Options {
	return tracing.Options{
		Endpoint:    t.Endpoint,
		Insecure:    t.Insecure,
		SampleRatio: t.SampleRatio,
		Environment: t.Environment,
		Version:     ver.BuildVersion,
	}
}

func transportInfo(h config.HTTPConfig) monitoring.TransportInfo {
	switch {
	case h.Enabled && h.Only:
		return monitoring.TransportInfo{Type: "http", HTTPAddr: h.Addr}
	case h.Enabled:
		return monitoring.TransportInfo{Type: "stdio+http", HTTPAddr: h.Addr}
	default:
		return monitoring.TransportInfo{Type: "stdio"}
	}
}

func newLogger(format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	// stdout belongs to the stdio transport
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// explicitFlags returns the names of flags given on the command line.
func explicitFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// applyFlags copies explicitly set flags over cfg, so flags win over the
// config file and the environment while unset flags change nothing.
func applyFlags(cfg *config.Config, set map[string]bool) {
	if set["debug"] {
		cfg.Logging.Debug = debug
	}
	if set["log-format"] {
		cfg.Logging.Format = logFormat
	}
	if set["base-url"] {
		cfg.Provider.BaseURL = baseURL
	}
	if set["timeout"] {
		cfg.Provider.Timeout = providerTimeout
	}

	h := &cfg.Server.HTTP
	if set["enable-http"] {
		h.Enabled = enableHTTP
	}
	if set["http-only"] {
		h.Only = httpOnly
	}
	if set["http-addr"] {
		h.Addr = httpAddr
	}
	if set["http-base-url"] {
		h.BaseURL = httpBaseURL
	}
	if set["http-auth-type"] {
		h.AuthType = httpAuthType
	}
	if set["http-auth-token"] {
		h.AuthToken = httpAuthToken
	}
	if set["http-rate-limit"] {
		h.RateLimit = httpRateLimit
	}
	if set["http-rate-burst"] {
		h.RateBurst = httpRateBurst
	}
	if set["http-trust-proxy-headers"] {
		h.TrustProxyHeaders = trustProxy
	}

	if set["enable-monitoring"] {
		cfg.Monitoring.Enabled = enableMonitoring
	}
	if set["monitoring-addr"] {
		cfg.Monitoring.Addr = monitoringAddr
	}

	if set["static-map-delivery"] {
		cfg.StaticMap.Delivery = staticMapDelivery
	}
	if set["static-map-dir"] {
		cfg.StaticMap.OutputDir = staticMapDir
	}
}
