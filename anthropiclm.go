package agentv

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicLanguageModel is the LanguageModel handle an Anthropic-backed
// Provider exposes via AsLanguageModel, so llmjudge/agent-judge evaluators
// can drive a single-turn completion without going through the full
// Invoke/workspace/tool-loop contract.
type AnthropicLanguageModel struct {
	client anthropic.Client
	model  string
}

// NewAnthropicLanguageModel builds a LanguageModel for model. apiKey and
// baseURL, when non-empty, override the client defaults (ANTHROPIC_API_KEY
// and the standard Anthropic endpoint respectively).
func NewAnthropicLanguageModel(model, apiKey, baseURL string) *AnthropicLanguageModel {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicLanguageModel{client: anthropic.NewClient(opts...), model: model}
}

// Complete implements LanguageModel.
func (m *AnthropicLanguageModel) Complete(ctx context.Context, systemPrompt, prompt string, maxTokens int) (string, *TokenUsage, *float64, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", nil, nil, NewError(KindProviderBackend, "anthropiclm.Complete", err)
	}
	if len(resp.Content) == 0 {
		return "", nil, nil, NewError(KindProviderProtocol, "anthropiclm.Complete", fmt.Errorf("empty response content"))
	}

	var text string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}

	usage := &TokenUsage{
		Input:  int(resp.Usage.InputTokens),
		Output: int(resp.Usage.OutputTokens),
		Cached: int(resp.Usage.CacheReadInputTokens),
	}
	return text, usage, nil, nil
}
