package agentv

// EvaluatorConfig is a tagged union: exactly one evaluator kind per entry in
// EvalCase.EvaluatorConfigs. Type selects which of the Config* fields is
// populated; the suite parser (external to this module) is responsible for
// only setting the one matching field.
type EvaluatorConfig struct {
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Type   string `json:"type" yaml:"type"`
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`

	ToolTrajectory   *ToolTrajectoryConfig   `json:"tool_trajectory,omitempty" yaml:"tool_trajectory,omitempty"`
	FieldAccuracy    *FieldAccuracyConfig    `json:"field_accuracy,omitempty" yaml:"field_accuracy,omitempty"`
	LLMJudge         *LLMJudgeConfig         `json:"llm_judge,omitempty" yaml:"llm_judge,omitempty"`
	CodeJudge        *CodeJudgeConfig        `json:"code_judge,omitempty" yaml:"code_judge,omitempty"`
	Composite        *CompositeConfig        `json:"composite,omitempty" yaml:"composite,omitempty"`
	Latency          *LatencyConfig          `json:"latency,omitempty" yaml:"latency,omitempty"`
	Cost             *CostConfig             `json:"cost,omitempty" yaml:"cost,omitempty"`
	TokenUsageGate   *TokenUsageConfig       `json:"token_usage,omitempty" yaml:"token_usage,omitempty"`
	ExecutionMetrics *ExecutionMetricsConfig `json:"execution_metrics,omitempty" yaml:"execution_metrics,omitempty"`
	Rubric           *RubricConfig           `json:"rubric,omitempty" yaml:"rubric,omitempty"`
	AgentJudge       *AgentJudgeConfig       `json:"agent_judge,omitempty" yaml:"agent_judge,omitempty"`
}

// Evaluator type tags, matched against EvaluatorConfig.Type by the registry
// in internal/evaluator.
const (
	EvaluatorToolTrajectory   = "tool_trajectory"
	EvaluatorFieldAccuracy    = "field_accuracy"
	EvaluatorLLMJudge         = "llm_judge"
	EvaluatorCodeJudge        = "code_judge"
	EvaluatorComposite        = "composite"
	EvaluatorLatency          = "latency"
	EvaluatorCost             = "cost"
	EvaluatorTokenUsage       = "token_usage"
	EvaluatorExecutionMetrics = "execution_metrics"
	EvaluatorRubric           = "rubric"
	EvaluatorAgentJudge       = "agent_judge"
)

// ArgMatchMode selects how an expected tool call's arguments are compared
// against the candidate's.
type ArgMatchMode string

const (
	ArgMatchExact     ArgMatchMode = "exact"
	ArgMatchSuperset  ArgMatchMode = "superset"
	ArgMatchSubset    ArgMatchMode = "subset"
	ArgMatchIgnore    ArgMatchMode = "ignore"
	ArgMatchFieldList ArgMatchMode = "field_list"
)

// SequenceMode selects how the expected tool-call sequence is compared
// against the candidate's observed sequence.
type SequenceMode string

const (
	SequenceAnyOrder SequenceMode = "any_order"
	SequenceInOrder  SequenceMode = "in_order"
	SequenceExact    SequenceMode = "exact"
	SequenceSuperset SequenceMode = "superset"
	SequenceSubset   SequenceMode = "subset"
)

// ExpectedToolCall is one entry in a ToolTrajectoryConfig's expected
// sequence. Args of nil or the literal string "any" skips arg matching
// regardless of ArgMatch.
type ExpectedToolCall struct {
	Tool          string       `json:"tool" yaml:"tool"`
	ArgsMatch     ArgMatchMode `json:"args_match,omitempty" yaml:"args_match,omitempty"`
	Args          any          `json:"args,omitempty" yaml:"args,omitempty"`
	FieldList     []string     `json:"field_list,omitempty" yaml:"field_list,omitempty"`
	MaxDurationMs *int64       `json:"max_duration_ms,omitempty" yaml:"max_duration_ms,omitempty"`
}

// ToolTrajectoryConfig configures the tool-call trajectory matcher: Expected
// drives the sequence modes, Minimums drives any_order's per-tool count
// check. DefaultArgsMatch is the fallback when an ExpectedToolCall doesn't
// set ArgsMatch; it in turn defaults to exact.
type ToolTrajectoryConfig struct {
	Expected         []ExpectedToolCall `json:"expected,omitempty" yaml:"expected,omitempty"`
	Minimums         map[string]int     `json:"minimums,omitempty" yaml:"minimums,omitempty"`
	Mode             SequenceMode       `json:"mode,omitempty" yaml:"mode,omitempty"`
	DefaultArgsMatch ArgMatchMode       `json:"default_args_match,omitempty" yaml:"default_args_match,omitempty"`
}

// FieldMatchKind selects how one field comparison is performed.
type FieldMatchKind string

const (
	FieldMatchExact            FieldMatchKind = "exact"
	FieldMatchNumericTolerance FieldMatchKind = "numeric_tolerance"
	FieldMatchDate             FieldMatchKind = "date"
)

// FieldSpec is one expected field inside a FieldAccuracyConfig. Formats, when
// set, are tried (in order, as time.Parse layouts) before the date
// evaluator's default layouts for FieldMatchDate fields; a field that sets
// Formats does not get the evaluator's slash-date ambiguity heuristic.
type FieldSpec struct {
	Path      string         `json:"path" yaml:"path"`
	Expected  any            `json:"expected" yaml:"expected"`
	Kind      FieldMatchKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Tolerance float64        `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	Weight    float64        `json:"weight,omitempty" yaml:"weight,omitempty"`
	Required  bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Formats   []string       `json:"formats,omitempty" yaml:"formats,omitempty"`
}

// FieldAccuracyConfig configures dot-bracket path field comparison against
// the candidate's structured output.
type FieldAccuracyConfig struct {
	Fields      []FieldSpec `json:"fields" yaml:"fields"`
	Aggregation string      `json:"aggregation,omitempty" yaml:"aggregation,omitempty"` // weighted_average | all_or_nothing
}

// RubricMode selects how an LLMJudgeConfig's rubric is interpreted.
type RubricMode string

const (
	RubricFreeform    RubricMode = "freeform"
	RubricChecklist   RubricMode = "checklist"
	RubricScoreRange  RubricMode = "score_range"
)

// ScoreRange is one banded description inside a score-range rubric item,
// e.g. {score_range:[8,10], description:"excellent"}.
type ScoreRange struct {
	ScoreRange  [2]int `json:"score_range" yaml:"score_range"`
	Description string `json:"description" yaml:"description"`
}

// RubricItem is one checklist or score-range entry. Checklist mode uses
// Description/Required/Weight; score-range mode additionally carries
// ScoreRanges and, optionally, RequiredMinScore.
type RubricItem struct {
	ID               string       `json:"id,omitempty" yaml:"id,omitempty"`
	Description      string       `json:"description" yaml:"description"`
	Required         bool         `json:"required,omitempty" yaml:"required,omitempty"`
	Weight           float64      `json:"weight,omitempty" yaml:"weight,omitempty"`
	ScoreRanges      []ScoreRange `json:"score_ranges,omitempty" yaml:"score_ranges,omitempty"`
	RequiredMinScore *int         `json:"required_min_score,omitempty" yaml:"required_min_score,omitempty"`
}

// LLMJudgeConfig configures an LLM-as-judge evaluator.
type LLMJudgeConfig struct {
	Mode         RubricMode   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Criteria     string       `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	RubricItems  []RubricItem `json:"rubric_items,omitempty" yaml:"rubric_items,omitempty"`
	Model        string       `json:"model,omitempty" yaml:"model,omitempty"`
	MaxRetries   int          `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	SystemPrompt string       `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// CodeJudgeConfig configures a subprocess-backed judge. GuidelineFiles and
// InputFiles are paths surfaced to the child process (as payload fields, not
// read by this package) for rubric documents and case-specific inputs it
// needs beyond the transcript. MaxCalls bounds the judge proxy's call budget
// when UseJudgeProxy is set; zero means the proxy's own default.
type CodeJudgeConfig struct {
	Command        []string `json:"command" yaml:"command"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	WorkingDir     string   `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	UseJudgeProxy  bool     `json:"use_judge_proxy,omitempty" yaml:"use_judge_proxy,omitempty"`
	MaxCalls       int      `json:"max_calls,omitempty" yaml:"max_calls,omitempty"`
	GuidelineFiles []string `json:"guideline_files,omitempty" yaml:"guideline_files,omitempty"`
	InputFiles     []string `json:"input_files,omitempty" yaml:"input_files,omitempty"`
}

// CompositeAggregation selects how a composite evaluator combines its
// members' scores.
type CompositeAggregation string

const (
	CompositeWeightedAverage CompositeAggregation = "weighted_average"
	CompositeCodeJudge       CompositeAggregation = "code_judge"
	CompositeLLMJudge        CompositeAggregation = "llm_judge"
)

// CompositeConfig configures a composite evaluator over a set of member
// evaluator configs.
type CompositeConfig struct {
	Members     []EvaluatorConfig     `json:"members" yaml:"members"`
	Aggregation CompositeAggregation  `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	Aggregator  *EvaluatorConfig      `json:"aggregator,omitempty" yaml:"aggregator,omitempty"`
}

// LatencyConfig gates on the total provider duration.
type LatencyConfig struct {
	MaxMs int64 `json:"max_ms" yaml:"max_ms"`
}

// CostConfig gates on the provider-reported cost.
type CostConfig struct {
	MaxUsd float64 `json:"max_usd" yaml:"max_usd"`
}

// TokenUsageConfig gates on provider-reported token counts.
type TokenUsageConfig struct {
	MaxInput  int `json:"max_input,omitempty" yaml:"max_input,omitempty"`
	MaxOutput int `json:"max_output,omitempty" yaml:"max_output,omitempty"`
	MaxTotal  int `json:"max_total,omitempty" yaml:"max_total,omitempty"`
}

// ExecutionMetricsConfig gates on trace-derived counters.
type ExecutionMetricsConfig struct {
	MaxToolCalls int `json:"max_tool_calls,omitempty" yaml:"max_tool_calls,omitempty"`
	MaxErrors    int `json:"max_errors,omitempty" yaml:"max_errors,omitempty"`
	MaxLLMCalls  int `json:"max_llm_calls,omitempty" yaml:"max_llm_calls,omitempty"`
}

// RubricConfig is a standalone checklist/score-range rubric scored without
// an LLM, e.g. against structured metadata a prior evaluator attached.
type RubricConfig struct {
	Items []RubricItem `json:"items" yaml:"items"`
}

// AgentJudgeConfig configures a judge that itself drives a provider
// (optionally through the judge proxy) rather than scoring a static
// transcript, e.g. to ask follow-up questions of the target.
type AgentJudgeConfig struct {
	Criteria      string `json:"criteria" yaml:"criteria"`
	Target        string `json:"target,omitempty" yaml:"target,omitempty"`
	MaxTurns      int    `json:"max_turns,omitempty" yaml:"max_turns,omitempty"`
	UseJudgeProxy bool   `json:"use_judge_proxy,omitempty" yaml:"use_judge_proxy,omitempty"`
	MaxCalls      int    `json:"max_calls,omitempty" yaml:"max_calls,omitempty"`
}
