package tools

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/navermapmcp/pkg/ncp/ncptest"
)

// IsErrorResult checks if a CallToolResult represents an error
func IsErrorResult(result *mcp.CallToolResult) bool {
	if result == nil {
		return false
	}
	return result.IsError
}

// AssertErrorResult checks that a result is an error result and fails the test if not
func AssertErrorResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if !IsErrorResult(result) {
		t.Error(message)
	}
}

// AssertSuccessResult checks that a result is a success result and fails the test if not
func AssertSuccessResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if IsErrorResult(result) {
		t.Errorf("%s. Got error: %s", message, ResultText(result))
	}
}

// ResultText returns the first text content of a result.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// ResultImage returns the first image content of a result.
func ResultImage(result *mcp.CallToolResult) (mcp.ImageContent, bool) {
	if result == nil {
		return mcp.ImageContent{}, false
	}
	for _, content := range result.Content {
		if img, ok := content.(mcp.ImageContent); ok {
			return img, true
		}
	}
	return mcp.ImageContent{}, false
}

// NewRequest builds a tool call request with the given arguments.
func NewRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// StubProvider is a stub Maps API gateway that hands out registries
// wired to it.
type StubProvider struct {
	*ncptest.Server
}

// NewStubProvider starts a stub provider that is closed with the test.
func NewStubProvider(t *testing.T) *StubProvider {
	t.Helper()
	return &StubProvider{Server: ncptest.NewServer(t)}
}

// Registry returns a tool registry talking to the stub.
func (sp *StubProvider) Registry(opts ...RegistryOption) *Registry {
	return NewRegistry(sp.NCPClient(), slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

// geocodeBody builds a single-candidate geocode response.
func geocodeBody(road, x, y string) string {
	var b strings.Builder
	b.WriteString(`{"status":"OK","meta":{"totalCount":1,"page":1,"count":1},"addresses":[{"roadAddress":"`)
	b.WriteString(road)
	b.WriteString(`","jibunAddress":"","englishAddress":"","x":"`)
	b.WriteString(x)
	b.WriteString(`","y":"`)
	b.WriteString(y)
	b.WriteString(`"}]}`)
	return b.String()
}
