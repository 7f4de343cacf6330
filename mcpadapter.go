package agentv

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FromMCPToolCall builds a ToolCall from the request/response pair an
// MCP-backed provider observes around one session.CallTool invocation. The
// caller measures start/end itself; FromMCPToolCall only shapes the data
// MCP hands back into the domain ToolCall record.
func FromMCPToolCall(id string, params *mcp.CallToolParams, result *mcp.CallToolResult, callErr error, start, end time.Time) ToolCall {
	tc := ToolCall{
		Tool: params.Name,
		ID:   id,
	}
	if d := end.Sub(start); d > 0 {
		ms := d.Milliseconds()
		tc.DurationMs = &ms
	}
	if inputJSON, err := json.Marshal(params.Arguments); err == nil {
		tc.Input = json.RawMessage(inputJSON)
	}

	if callErr != nil {
		tc.Output = map[string]string{"error": callErr.Error()}
		return tc
	}
	tc.Output = FromMCPResult(result)
	return tc
}

// FromMCPResult flattens an mcp.CallToolResult's content blocks into the
// string form the trace record and evaluators consume. Text blocks pass
// through verbatim; image and embedded-resource blocks are rendered as a
// short bracketed placeholder since neither survives a trace summary.
func FromMCPResult(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var out string
	for _, content := range result.Content {
		var part string
		switch c := content.(type) {
		case *mcp.TextContent:
			part = c.Text
		case *mcp.ImageContent:
			part = fmt.Sprintf("[Image: %s]", c.MIMEType)
		case *mcp.EmbeddedResource:
			part = fmt.Sprintf("[Resource: %s]", c.Resource.URI)
		default:
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += part
	}
	if result.IsError && out == "" {
		out = "tool reported an error with no content"
	}
	return out
}
