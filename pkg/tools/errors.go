package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// OutcomeKind tags how a tool invocation ended.
type OutcomeKind int

const (
	// Found carries a result for the caller.
	Found OutcomeKind = iota
	// NotFound means the provider answered but had nothing to return.
	NotFound
	// Failed means a transport or decoding error ended the call.
	Failed
	// Invalid means the arguments were rejected before any provider call.
	Invalid
)

func (k OutcomeKind) String() string {
	switch k {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Failed:
		return "failed"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one tool handler before it is rendered for
// the MCP runtime. Handlers never return Go errors for ordinary failures;
// they return an Outcome of the matching kind instead.
type Outcome struct {
	Kind    OutcomeKind
	Text    string
	Extra   []mcp.Content // additional content after the text, e.g. images
	Err     error
	Message string
}

// FoundText returns a Found outcome with a text block.
func FoundText(text string, extra ...mcp.Content) Outcome {
	return Outcome{Kind: Found, Text: text, Extra: extra}
}

// NotFoundText returns a NotFound outcome with a fixed message.
func NotFoundText(msg string) Outcome {
	return Outcome{Kind: NotFound, Message: msg}
}

// FailedWith wraps err as a Failed outcome.
func FailedWith(err error) Outcome {
	return Outcome{Kind: Failed, Err: err}
}

// InvalidInput rejects the arguments of a call.
func InvalidInput(format string, args ...any) Outcome {
	return Outcome{Kind: Invalid, Err: fmt.Errorf(format, args...)}
}

// Result renders the outcome. Not-found results are ordinary text;
// failures are text flagged with IsError so the caller can tell them apart.
func (o Outcome) Result() *mcp.CallToolResult {
	switch o.Kind {
	case Found:
		content := make([]mcp.Content, 0, 1+len(o.Extra))
		content = append(content, mcp.NewTextContent(o.Text))
		content = append(content, o.Extra...)
		return &mcp.CallToolResult{Content: content}
	case NotFound:
		return mcp.NewToolResultText(o.Message)
	case Invalid:
		return mcp.NewToolResultError(o.Err.Error())
	default:
		msg := "unknown error"
		if o.Err != nil {
			msg = o.Err.Error()
		}
		return mcp.NewToolResultError(msgErrorPrefix + msg)
	}
}
