package agentv

import (
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestFromMCPResult_JoinsTextBlocks(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "first"},
			&mcp.TextContent{Text: "second"},
		},
	}
	got := FromMCPResult(result)
	want := "first\nsecond"
	if got != want {
		t.Errorf("FromMCPResult() = %q, want %q", got, want)
	}
}

func TestFromMCPResult_NonTextBlocks(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.ImageContent{MIMEType: "image/png"},
		},
	}
	got := FromMCPResult(result)
	if got != "[Image: image/png]" {
		t.Errorf("FromMCPResult() = %q, want image placeholder", got)
	}
}

func TestFromMCPResult_ErrorWithNoContent(t *testing.T) {
	result := &mcp.CallToolResult{IsError: true}
	got := FromMCPResult(result)
	if got == "" {
		t.Error("FromMCPResult() = empty string for an error result, want a placeholder")
	}
}

func TestFromMCPToolCall_Success(t *testing.T) {
	start := time.Now()
	end := start.Add(25 * time.Millisecond)

	params := &mcp.CallToolParams{Name: "get_forecast", Arguments: map[string]any{"city": "nyc"}}
	result := &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "sunny"}}}

	tc := FromMCPToolCall("tool-1", params, result, nil, start, end)

	if tc.Tool != "get_forecast" {
		t.Errorf("Tool = %q, want get_forecast", tc.Tool)
	}
	if tc.ID != "tool-1" {
		t.Errorf("ID = %q, want tool-1", tc.ID)
	}
	if tc.DurationMs == nil || *tc.DurationMs != 25 {
		t.Errorf("DurationMs = %v, want 25", tc.DurationMs)
	}
	if tc.Output != "sunny" {
		t.Errorf("Output = %v, want sunny", tc.Output)
	}
}

func TestFromMCPToolCall_Error(t *testing.T) {
	params := &mcp.CallToolParams{Name: "get_forecast"}
	tc := FromMCPToolCall("tool-2", params, nil, errors.New("boom"), time.Now(), time.Now())

	errMap, ok := tc.Output.(map[string]string)
	if !ok {
		t.Fatalf("Output = %T, want map[string]string", tc.Output)
	}
	if errMap["error"] != "boom" {
		t.Errorf("Output[error] = %q, want boom", errMap["error"])
	}
}
