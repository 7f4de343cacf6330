package agentv

import "time"

// TrialRef identifies a retry's sibling attempts: the (test_id, attempt=0)
// coordinate of the first attempt a retried run belongs to. Only set on
// EvaluationResult when Attempt > 0.
type TrialRef struct {
	TestID  string `json:"test_id"`
	Attempt int    `json:"attempt"`
}

// EvaluationResult is the record the dispatcher emits per (EvalCase, attempt)
// after every configured evaluator has scored the candidate reply. Field
// names are snake_case on the wire to match the writer formats (§6).
type EvaluationResult struct {
	Timestamp       time.Time      `json:"timestamp"`
	TraceID         string         `json:"trace_id,omitempty"`
	TestID          string         `json:"test_id"`
	Dataset         string         `json:"dataset,omitempty"`
	Score           float64        `json:"score"`
	Verdict         Verdict        `json:"verdict"`
	Hits            []string       `json:"hits,omitempty"`
	Misses          []string       `json:"misses,omitempty"`
	Reasoning       string         `json:"reasoning,omitempty"`
	CandidateAnswer any            `json:"candidate_answer,omitempty"`
	Target          string         `json:"target"`
	Attempt         int            `json:"attempt"`
	TrialOf         *TrialRef      `json:"trial_of,omitempty"`
	EvaluatorScores []NamedScore   `json:"evaluator_scores,omitempty"`
	Error           string         `json:"error,omitempty"`
	TraceSummary    *TraceSummary  `json:"trace_summary,omitempty"`
	OutputMessages  []Message      `json:"output_messages,omitempty"`
}

// TargetResolver resolves a target name to the Provider that should handle
// it, letting judge/agent-judge evaluators reach a different target (e.g.
// the judge model) than the one under test.
type TargetResolver interface {
	Resolve(name string) (Provider, bool)
}

// EvaluationContext is what the dispatcher hands each Evaluator.Evaluate
// call: everything needed to score one candidate reply, plus the hooks an
// evaluator needs to reach other targets or the filesystem workspace.
type EvaluationContext struct {
	Case      EvalCase
	Candidate ProviderResponse
	Target    string
	Attempt   int

	Provider       Provider
	JudgeProvider  Provider
	OutputMessages []Message
	TraceSummary   *TraceSummary
	WorkspacePath  string
	FileChanges    []string

	TargetResolver   TargetResolver
	AvailableTargets []string

	// Evaluator names the EvaluatorConfig.Name currently being scored, so a
	// composite member or rubric item can reference the calling evaluator
	// in its reasoning output.
	Evaluator string
}
