package agentv

import "sort"

// TokenUsage reports token counts a provider observed. Fields are pointers
// only at the ProviderResponse level; TraceSummary normalizes to a by-value
// struct since the dispatcher always produces one (zero means "none seen",
// distinguished upstream by the provider leaving ProviderResponse.TokenUsage
// nil entirely).
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Cached int `json:"cached,omitempty"`
}

// TraceSummary is the normalized view of what a provider did during one
// invocation: event and tool-call counts, token usage, cost, and duration.
type TraceSummary struct {
	EventCount      int            `json:"event_count"`
	ToolNames       []string       `json:"tool_names,omitempty"`
	ToolCallsByName map[string]int `json:"tool_calls_by_name,omitempty"`
	ErrorCount      int            `json:"error_count"`
	LLMCallCount    *int           `json:"llm_call_count,omitempty"`
	TokenUsage      *TokenUsage    `json:"token_usage,omitempty"`
	CostUsd         *float64       `json:"cost_usd,omitempty"`
	DurationMs      int64          `json:"duration_ms"`
}

// SummarizeTrace builds a TraceSummary from the authoritative output message
// sequence plus whatever a provider separately reported for usage/cost/
// duration/errors. eventCount and errorCount come from the provider's raw
// event stream (opaque to this package) since outputMessages alone do not
// carry a generic "event" notion.
func SummarizeTrace(outputMessages []Message, eventCount, errorCount int, resp ProviderResponse) TraceSummary {
	calls := ToolCallsFromMessages(outputMessages)

	byName := make(map[string]int, len(calls))
	for _, c := range calls {
		byName[c.Tool]++
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	summary := TraceSummary{
		EventCount:      eventCount,
		ToolNames:       names,
		ToolCallsByName: byName,
		ErrorCount:      errorCount,
		TokenUsage:      resp.TokenUsage,
		CostUsd:         resp.CostUsd,
	}

	if resp.DurationMs != nil {
		summary.DurationMs = *resp.DurationMs
	} else if !resp.StartTime.IsZero() && !resp.EndTime.IsZero() {
		summary.DurationMs = resp.EndTime.Sub(resp.StartTime).Milliseconds()
	}

	return summary
}
