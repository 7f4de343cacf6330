package agentv

import (
	"context"
	"time"
)

// ProviderRequest is the uniform request a Provider.Invoke call receives.
type ProviderRequest struct {
	EvalCaseID      string
	Attempt         int
	Question        string
	SystemPrompt    string
	InputFiles      []string
	PriorMessages   []Message
	MaxOutputTokens int
	Temperature     float64
	// Cancel, when non-nil, is closed to signal the provider should abandon
	// the in-flight call. Providers that cannot cancel mid-flight may ignore
	// it, but should still honor ctx.Done().
	Cancel <-chan struct{}
}

// ProviderResponse is what a Provider returns for one invocation.
// OutputMessages is the authoritative, ordered tool-call record; token/cost
// fields stay nil when the backend does not report them, so "unknown" is
// distinguishable from "free".
type ProviderResponse struct {
	OutputMessages []Message
	TokenUsage     *TokenUsage
	CostUsd        *float64
	DurationMs     *int64
	StartTime      time.Time
	EndTime        time.Time
	Raw            any
	LogFile        string
}

// LanguageModel is the streaming/structured-output handle a Provider may
// expose via AsLanguageModel, letting LLM-judge and agent-judge evaluators
// drive it directly instead of going through the generic Invoke contract.
type LanguageModel interface {
	// Complete sends a single-turn prompt with an optional system prompt and
	// returns the raw assistant text plus whatever usage the backend reports.
	Complete(ctx context.Context, systemPrompt, prompt string, maxTokens int) (text string, usage *TokenUsage, costUsd *float64, err error)
}

// Provider is the adapter between the dispatcher's uniform contract and one
// concrete backend (LLM endpoint, CLI agent, headless editor session, static
// trace). Concrete implementations are external collaborators; this package
// only defines the contract they must satisfy.
type Provider interface {
	Invoke(ctx context.Context, req ProviderRequest) (ProviderResponse, error)

	// RetrySafe reports whether the dispatcher may retry a Timeout or
	// BackendUnavailable error from this provider. Most providers are not
	// retry-safe by default (side effects on the backend); embed
	// NotRetrySafe to get that default without writing the method.
	RetrySafe() bool
}

// BatchProvider is implemented by providers that can answer several requests
// in one round trip. The dispatcher uses it only when the resolved target
// opts into batching (target.Config.ProviderBatching).
type BatchProvider interface {
	Provider
	InvokeBatch(ctx context.Context, reqs []ProviderRequest) ([]ProviderResponse, error)
}

// LanguageModelProvider is implemented by providers that can hand judge
// evaluators a direct model handle, bypassing Invoke.
type LanguageModelProvider interface {
	Provider
	AsLanguageModel() (LanguageModel, bool)
}

// NotRetrySafe embeds into a concrete Provider to declare "retrying this
// backend on Timeout/BackendUnavailable is not safe" (the common case: the
// call may have had side effects). Providers that know otherwise implement
// RetrySafe themselves instead of embedding this.
type NotRetrySafe struct{}

func (NotRetrySafe) RetrySafe() bool { return false }

// InteractiveProvider is implemented by providers that require a focused,
// single window (e.g. a headless editor session) and therefore force the
// dispatcher to run with workers=1 regardless of target configuration.
type InteractiveProvider interface {
	Provider
	RequiresSingleWindow() bool
}
