// Package tools implements the Naver Maps MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/navermapmcp/pkg/monitoring"
	"github.com/NERVsystems/navermapmcp/pkg/ncp"
	"github.com/NERVsystems/navermapmcp/pkg/tracing"
)

// Gateway is the subset of the provider client the tools use.
type Gateway interface {
	Geocode(ctx context.Context, query string) (*ncp.GeocodeResponse, error)
	ReverseGeocode(ctx context.Context, lon, lat float64) (*ncp.ReverseGeocodeResponse, error)
	Driving(ctx context.Context, r ncp.DrivingRequest) (*ncp.DrivingResponse, error)
	StaticMap(ctx context.Context, r ncp.StaticMapRequest) (ncp.Binary, error)
}

var _ Gateway = (*ncp.Client)(nil)

// HandlerFunc is the shape of every tool implementation.
type HandlerFunc func(ctx context.Context, req mcp.CallToolRequest) Outcome

// ToolDefinition pairs a tool schema with its handler.
type ToolDefinition struct {
	Name    string
	Tool    mcp.Tool
	Handler HandlerFunc
}

// Registry owns the tool handlers and their shared dependencies.
type Registry struct {
	logger    *slog.Logger
	gw        Gateway
	staticMap StaticMapOptions
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithStaticMapOptions sets how static map images are delivered.
func WithStaticMapOptions(o StaticMapOptions) RegistryOption {
	return func(r *Registry) {
		r.staticMap = o
	}
}

// NewRegistry creates a new tool registry
func NewRegistry(gw Gateway, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:    logger,
		gw:        gw,
		staticMap: StaticMapOptions{Delivery: DeliveryInline},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{Name: ToolDirections, Tool: DirectionsTool(), Handler: r.HandleDirections},
		{Name: ToolGeocode, Tool: GeocodeTool(), Handler: r.HandleGeocode},
		{Name: ToolReverseGeocode, Tool: ReverseGeocodeTool(), Handler: r.HandleReverseGeocode},
		{Name: ToolStaticMap, Tool: StaticMapTool(), Handler: r.HandleStaticMap},
	}
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, r.Wrap(def.Name, def.Handler))
	}
}

// Wrap adapts a handler to the mcp-go signature, adding a span, metrics
// and a debug log line per call.
func (r *Registry) Wrap(toolName string, handler HandlerFunc) server.ToolHandlerFunc {
	logger := r.logger.With("tool", toolName)

	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("mcp.tool.%s", toolName),
			trace.WithAttributes(attribute.String(tracing.AttrMCPToolName, toolName)),
		)
		defer span.End()

		start := time.Now()
		outcome := runHandler(ctx, handler, req)
		duration := time.Since(start)
		result := outcome.Result()

		status := tracing.StatusSuccess
		switch outcome.Kind {
		case Failed, Invalid:
			status = tracing.StatusError
			tracing.Fail(span, outcome.Kind.String(), outcome.Err)
			logger.Warn("tool call failed", "outcome", outcome.Kind.String(), "error", outcome.Err)
		default:
			span.SetStatus(codes.Ok, "")
		}

		resultSize := 0
		if data, err := json.Marshal(result.Content); err == nil {
			resultSize = len(data)
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, duration.Milliseconds(), resultSize)...)
		span.SetAttributes(attribute.String(tracing.AttrMCPToolOutcome, outcome.Kind.String()))

		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)
		monitoring.RecordToolOutcome(toolName, outcome.Kind.String())

		logger.Debug("tool call",
			"duration_ms", duration.Milliseconds(),
			"outcome", outcome.Kind.String(),
			"result_size", resultSize,
		)

		return result, nil
	}
}

// runHandler turns a handler panic into a Failed outcome so the caller
// still gets the usual error text.
func runHandler(ctx context.Context, handler HandlerFunc, req mcp.CallToolRequest) (outcome Outcome) {
	defer func() {
		if p := recover(); p != nil {
			outcome = FailedWith(fmt.Errorf("panic: %v", p))
		}
	}()
	return handler(ctx, req)
}
