package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for MCP operations
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolOutcome  = "mcp.tool.outcome"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// Provider attributes
	AttrProviderName      = "ncp.provider.name"
	AttrProviderEndpoint  = "ncp.provider.endpoint"
	AttrProviderStatus    = "ncp.provider.status"
	AttrProviderBinary    = "ncp.provider.binary"
	AttrProviderBodyBytes = "ncp.provider.body_bytes"

	// Geocoding pre-step
	AttrGeocodeSkipped = "ncp.geocode.skipped"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPSessionID  = "http.session_id"
	AttrHTTPRequestID  = "http.request_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ProviderNaverMaps names the single upstream this server talks to.
const ProviderNaverMaps = "naver_maps"

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// ProviderAttributes returns attributes for a provider request
func ProviderAttributes(endpoint string, binary bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrProviderName, ProviderNaverMaps),
		attribute.String(AttrProviderEndpoint, endpoint),
		attribute.Bool(AttrProviderBinary, binary),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(errorType string, err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errorType),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
