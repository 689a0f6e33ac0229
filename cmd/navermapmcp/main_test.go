package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/navermapmcp/pkg/config"
	"github.com/NERVsystems/navermapmcp/pkg/monitoring"
	"github.com/NERVsystems/navermapmcp/pkg/ncp"
	"github.com/NERVsystems/navermapmcp/pkg/server"
	ver "github.com/NERVsystems/navermapmcp/pkg/version"
)

func TestApplyFlagsOnlyExplicit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.HTTP.Addr = ":9999" // from a config file

	enableHTTP = true
	httpAddr = ":7082"
	httpRateLimit = 3
	staticMapDelivery = "file"
	staticMapDir = "maps"
	trustProxy = true
	t.Cleanup(func() {
		trustProxy = false
		enableHTTP = false
		httpRateLimit = 0
		staticMapDelivery = "inline"
		staticMapDir = ""
	})

	applyFlags(cfg, map[string]bool{
		"enable-http":         true,
		"http-rate-limit":     true,
		"static-map-delivery": true,
		"static-map-dir":      true,

		"http-trust-proxy-headers": true,
	})

	assert.True(t, cfg.Server.HTTP.Enabled)
	assert.Equal(t, ":9999", cfg.Server.HTTP.Addr, "unset flag must not override the file")
	assert.Equal(t, 3.0, cfg.Server.HTTP.RateLimit)
	assert.Equal(t, "file", cfg.StaticMap.Delivery)
	assert.Equal(t, "maps", cfg.StaticMap.OutputDir)
	assert.True(t, cfg.Server.HTTP.TrustProxyHeaders)
}

func TestProviderHooks(t *testing.T) {
	hc := monitoring.NewHealthChecker("test", "0.0.0")
	t.Cleanup(hc.Shutdown)
	hooks := providerHooks(hc)

	before := testutil.ToFloat64(monitoring.ErrorsTotal.WithLabelValues("ncp", "auth"))
	hooks.OnResponse("/map-geocode/v2/geocode", http.StatusForbidden, 20*time.Millisecond,
		&ncp.TransportError{StatusCode: http.StatusForbidden, Status: "Forbidden"})

	assert.Equal(t, before+1, testutil.ToFloat64(monitoring.ErrorsTotal.WithLabelValues("ncp", "auth")))
	conn, ok := hc.GetHealth().Connections[providerConnection]
	require.True(t, ok)
	assert.Equal(t, monitoring.StatusError, conn.Status)

	hooks.OnResponse("/map-geocode/v2/geocode", http.StatusOK, 5*time.Millisecond, nil)
	assert.Equal(t, monitoring.StatusConnected, hc.GetHealth().Connections[providerConnection].Status)

	// monitoring disabled
	providerHooks(nil).OnResponse("/map-static/v2/raster", 0, time.Millisecond, errors.New("dial tcp: refused"))
}

func TestTracingOptions(t *testing.T) {
	opts := tracingOptions(config.TracingConfig{
		Endpoint:    "collector:4317",
		Insecure:    true,
		SampleRatio: 0.1,
		Environment: "staging",
	})
	assert.Equal(t, "collector:4317", opts.Endpoint)
	assert.True(t, opts.Insecure)
	assert.Equal(t, 0.1, opts.SampleRatio)
	assert.Equal(t, "staging", opts.Environment)
	assert.Equal(t, ver.BuildVersion, opts.Version)
}

func TestRunKeepsStdioWhenMetricsPortBusy(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	cfg := config.Default()
	cfg.Provider.ClientID = "test-id"
	cfg.Provider.ClientSecret = "test-secret"
	cfg.Monitoring.Addr = busy.Addr().String()

	stdin, client := io.Pipe()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), cfg, logger,
			server.WithStdio(stdin, io.Discard),
			server.WithParentMonitor(0))
	}()

	select {
	case err := <-done:
		t.Fatalf("run returned while the stdio client was connected: %v", err)
	case <-time.After(500 * time.Millisecond):
	}

	// the client hanging up ends a stdio-only server cleanly
	require.NoError(t, client.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after stdin was closed")
	}
}

func TestRunFailsWhenHTTPPortBusy(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	cfg := config.Default()
	cfg.Provider.ClientID = "test-id"
	cfg.Provider.ClientSecret = "test-secret"
	cfg.Monitoring.Enabled = false
	cfg.Server.HTTP.Enabled = true
	cfg.Server.HTTP.Addr = busy.Addr().String()

	stdin, client := io.Pipe()
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), cfg, logger,
			server.WithStdio(stdin, io.Discard),
			server.WithParentMonitor(0))
	}()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "HTTP transport")
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after the HTTP transport failed to bind")
	}
}

func TestTransportInfo(t *testing.T) {
	assert.Equal(t, "stdio", transportInfo(config.HTTPConfig{}).Type)
	assert.Equal(t, "stdio+http", transportInfo(config.HTTPConfig{Enabled: true, Addr: ":1"}).Type)
	info := transportInfo(config.HTTPConfig{Enabled: true, Only: true, Addr: ":1"})
	assert.Equal(t, "http", info.Type)
	assert.Equal(t, ":1", info.HTTPAddr)
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func readClientConfig(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestGenerateClientConfig(t *testing.T) {
	chdirTemp(t)
	t.Setenv(config.EnvClientID, "my-id")
	t.Setenv(config.EnvClientSecret, "my-secret")

	require.NoError(t, generateClientConfig(filepath.Join("conf", "mcp.json"), false))

	doc := readClientConfig(t, filepath.Join("conf", "mcp.json"))
	servers := doc["mcpServers"].(map[string]any)
	entry := servers[clientServerName].(map[string]any)
	assert.NotEmpty(t, entry["command"])
	env := entry["env"].(map[string]any)
	assert.Equal(t, "my-id", env[config.EnvClientID])
	assert.Equal(t, "my-secret", env[config.EnvClientSecret])

	info, err := os.Stat(filepath.Join("conf", "mcp.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGenerateClientConfigMerge(t *testing.T) {
	chdirTemp(t)
	existing := `{"theme":"dark","mcpServers":{"other":{"command":"other-mcp"},"naver-maps":{"command":"custom"}}}`
	require.NoError(t, os.WriteFile("mcp.json", []byte(existing), 0600))

	require.NoError(t, generateClientConfig("mcp.json", true))

	doc := readClientConfig(t, "mcp.json")
	assert.Equal(t, "dark", doc["theme"])
	servers := doc["mcpServers"].(map[string]any)
	assert.Contains(t, servers, "other")
	assert.Equal(t, "custom", servers[clientServerName].(map[string]any)["command"], "merge keeps an existing entry")

	require.NoError(t, generateClientConfig("mcp.json", false))
	doc = readClientConfig(t, "mcp.json")
	assert.NotContains(t, doc, "theme", "overwrite replaces the file")
}

func TestGenerateClientConfigRejectsUnsafePaths(t *testing.T) {
	chdirTemp(t)
	for _, path := range []string{"", "config.yaml", "../escape.json", "/tmp/abs.json"} {
		assert.Error(t, generateClientConfig(path, false), "path %q", path)
	}
}
