package mcpagent

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentv/agentv"
)

func TestBuildToolParams_ExtractsPropertiesAndCachesLast(t *testing.T) {
	toolsResp := &mcp.ListToolsResult{
		Tools: []*mcp.Tool{
			{Name: "get_forecast", Description: "weather", InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"city": map[string]any{"type": "string"}},
			}},
			{Name: "get_alerts", Description: "alerts"},
		},
	}

	tools := buildToolParams(toolsResp, true)
	if len(tools) != 2 {
		t.Fatalf("len(tools) = %d, want 2", len(tools))
	}
	if tools[0].OfTool.Name != "get_forecast" {
		t.Errorf("tools[0].Name = %q, want get_forecast", tools[0].OfTool.Name)
	}
	if tools[0].OfTool.InputSchema.Properties == nil {
		t.Error("tools[0] lost its properties map")
	}
}

func TestBuildToolParams_EmptyToolList(t *testing.T) {
	toolsResp := &mcp.ListToolsResult{}
	tools := buildToolParams(toolsResp, true)
	if len(tools) != 0 {
		t.Errorf("len(tools) = %d, want 0", len(tools))
	}
}

func TestClassifyErr_Timeout(t *testing.T) {
	err := classifyErr(context.DeadlineExceeded)
	if !agentv.IsKind(err, agentv.KindProviderTimeout) {
		t.Errorf("classifyErr(DeadlineExceeded) kind mismatch: %v", err)
	}
}

func TestClassifyErr_Backend(t *testing.T) {
	err := classifyErr(errors.New("boom"))
	if !agentv.IsKind(err, agentv.KindProviderBackend) {
		t.Errorf("classifyErr(generic) kind mismatch: %v", err)
	}
}
