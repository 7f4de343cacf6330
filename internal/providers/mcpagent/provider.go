// Package mcpagent implements the Anthropic-plus-MCP Provider: an agentic
// tool loop that drives a Claude model against one MCP server subprocess,
// tracing every tool call into the OutputMessages sequence the dispatcher
// and evaluators consume.
package mcpagent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/agentv/agentv"
)

// Config configures a Provider: how to launch the MCP server subprocess and
// which Anthropic model drives the agentic loop against it.
type Config struct {
	APIKey              string
	BaseURL             string
	Command             string
	Args                []string
	Env                 []string
	Model               string
	MaxSteps            int
	MaxTokens           int
	EnablePromptCaching bool
	StderrCallback      func(line string)
}

func (c *Config) applyDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 10
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
}

// Provider implements agentv.Provider (and agentv.LanguageModelProvider)
// by spawning an MCP server subprocess per invocation and running Claude
// through it until the model stops requesting tools or MaxSteps is hit.
type Provider struct {
	agentv.NotRetrySafe
	client anthropic.Client
	cfg    Config
}

// New builds a Provider.
func New(cfg Config) *Provider {
	cfg.applyDefaults()

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Provider{client: anthropic.NewClient(opts...), cfg: cfg}
}

// AsLanguageModel implements agentv.LanguageModelProvider, letting
// llm_judge/agent_judge evaluators drive this target's model directly
// instead of through the MCP tool loop.
func (p *Provider) AsLanguageModel() (agentv.LanguageModel, bool) {
	return agentv.NewAnthropicLanguageModel(p.cfg.Model, p.cfg.APIKey, p.cfg.BaseURL), true
}

func (p *Provider) loadSession(ctx context.Context) (*mcp.ClientSession, *mcp.ListToolsResult, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "agentv", Version: "v1.0.0"}, nil)

	// #nosec G204 - command/args come from the resolved target config, the operator's own input
	cmd := exec.Command(p.cfg.Command, p.cfg.Args...)
	if p.cfg.StderrCallback != nil {
		stderrPipe, err := cmd.StderrPipe()
		if err != nil {
			return nil, nil, fmt.Errorf("stderr pipe: %w", err)
		}
		go func() {
			scanner := bufio.NewScanner(stderrPipe)
			for scanner.Scan() {
				p.cfg.StderrCallback(scanner.Text())
			}
		}()
	} else {
		cmd.Stderr = os.Stderr
	}
	if len(p.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), p.cfg.Env...)
	}

	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		_ = session.Close()
		return nil, nil, fmt.Errorf("list tools: %w", err)
	}
	return session, tools, nil
}

func buildToolParams(toolsResp *mcp.ListToolsResult, cache bool) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolParam, 0, len(toolsResp.Tools))
	for _, tool := range toolsResp.Tools {
		var properties map[string]any
		if tool.InputSchema != nil {
			if raw, err := json.Marshal(tool.InputSchema); err == nil {
				var schema map[string]any
				if err := json.Unmarshal(raw, &schema); err == nil {
					if props, ok := schema["properties"].(map[string]any); ok {
						properties = props
					}
				}
			}
		}
		params = append(params, anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: properties},
		})
	}

	if cache && len(params) > 0 {
		params[len(params)-1].CacheControl = anthropic.NewCacheControlEphemeralParam()
	}

	tools := make([]anthropic.ToolUnionParam, len(params))
	for i := range params {
		tools[i] = anthropic.ToolUnionParam{OfTool: &params[i]}
	}
	return tools
}

// Invoke implements agentv.Provider.
func (p *Provider) Invoke(ctx context.Context, req agentv.ProviderRequest) (agentv.ProviderResponse, error) {
	start := time.Now()

	session, toolsResp, err := p.loadSession(ctx)
	if err != nil {
		return agentv.ProviderResponse{}, agentv.NewError(agentv.KindProviderBackend, "mcpagent.Invoke", err)
	}
	defer func() { _ = session.Close() }()

	tools := buildToolParams(toolsResp, p.cfg.EnablePromptCaching)

	systemPrompt := anthropic.TextBlockParam{Text: req.SystemPrompt}
	if p.cfg.EnablePromptCaching {
		systemPrompt.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}

	messages := []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Question))}
	outputMessages := []agentv.Message{{Role: agentv.RoleUser, Content: req.Question}}

	var usage agentv.TokenUsage
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}

	for step := 0; step < p.cfg.MaxSteps; step++ {
		select {
		case <-ctx.Done():
			return agentv.ProviderResponse{}, ctx.Err()
		case <-req.Cancel:
			return agentv.ProviderResponse{}, agentv.NewError(agentv.KindCancelled, "mcpagent.Invoke", errors.New("cancelled"))
		default:
		}

		message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(p.cfg.Model),
			MaxTokens: int64(maxTokens),
			System:    []anthropic.TextBlockParam{systemPrompt},
			Messages:  messages,
			Tools:     tools,
		})
		if err != nil {
			return agentv.ProviderResponse{}, classifyErr(err)
		}
		messages = append(messages, message.ToParam())

		usage.Input += int(message.Usage.InputTokens)
		usage.Output += int(message.Usage.OutputTokens)
		usage.Cached += int(message.Usage.CacheReadInputTokens)

		var text string
		var toolUses []anthropic.ToolUseBlock
		for _, block := range message.Content {
			switch b := block.AsAny().(type) {
			case anthropic.TextBlock:
				text += b.Text
			case anthropic.ToolUseBlock:
				toolUses = append(toolUses, b)
			}
		}

		if len(toolUses) == 0 {
			outputMessages = append(outputMessages, agentv.Message{Role: agentv.RoleAssistant, Content: text})
			break
		}

		calls := make([]agentv.ToolCall, 0, len(toolUses))
		toolResults := make([]anthropic.ContentBlockParamUnion, 0, len(toolUses))
		for _, tu := range toolUses {
			callStart := time.Now()
			params := &mcp.CallToolParams{Name: tu.Name, Arguments: tu.Input}
			result, callErr := session.CallTool(ctx, params)
			callEnd := time.Now()

			calls = append(calls, agentv.FromMCPToolCall(tu.ID, params, result, callErr, callStart, callEnd))

			var resultContent string
			if callErr != nil {
				resultContent = fmt.Sprintf("Error calling tool: %v", callErr)
			} else {
				resultContent = agentv.FromMCPResult(result)
			}
			toolResults = append(toolResults, anthropic.NewToolResultBlock(tu.ID, resultContent, callErr != nil))
		}
		outputMessages = append(outputMessages, agentv.Message{Role: agentv.RoleAssistant, Content: text, ToolCalls: calls})

		if message.StopReason != anthropic.StopReasonToolUse {
			break
		}
		messages = append(messages, anthropic.NewUserMessage(toolResults...))
	}

	end := time.Now()
	durationMs := end.Sub(start).Milliseconds()
	return agentv.ProviderResponse{
		OutputMessages: outputMessages,
		TokenUsage:     &usage,
		DurationMs:     &durationMs,
		StartTime:      start,
		EndTime:        end,
	}, nil
}

func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return agentv.NewError(agentv.KindProviderTimeout, "mcpagent.Invoke", err)
	}
	log.Warn().Err(err).Msg("mcpagent: anthropic call failed")
	return agentv.NewError(agentv.KindProviderBackend, "mcpagent.Invoke", err)
}
