// Package codejudge implements the code-judge evaluator: it streams a
// snake_case JSON payload to an external script's stdin and parses a
// {score, hits, misses, reasoning, verdict, details} reply from its stdout.
package codejudge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
	"mvdan.cc/sh/v3/shell"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/evaluator"
	"github.com/agentv/agentv/internal/judgeproxy"
)

func init() {
	evaluator.Register(agentv.EvaluatorCodeJudge, build)
}

func build(cfg agentv.EvaluatorConfig, deps evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.CodeJudge == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "codejudge.build",
			fmt.Errorf("evaluator %q missing code_judge config", cfg.Name))
	}
	return &Evaluator{cfg: *cfg.CodeJudge, deps: deps}, nil
}

// Evaluator is the code-judge evaluator.
type Evaluator struct {
	cfg  agentv.CodeJudgeConfig
	deps evaluator.Deps
}

const maxOutputMessagesBytes = 50_000
const stderrTailBytes = 2000

// payload is the snake_case JSON this evaluator streams to the child's stdin.
type payload struct {
	Question         string               `json:"question"`
	ExpectedOutcome  string               `json:"expected_outcome"`
	ExpectedMessages []agentv.Message     `json:"expected_messages,omitempty"`
	ReferenceAnswer  any                  `json:"reference_answer,omitempty"`
	CandidateAnswer  any                  `json:"candidate_answer,omitempty"`
	OutputMessages   []agentv.Message     `json:"output_messages,omitempty"`
	OutputPath       string               `json:"output_path,omitempty"`
	TraceSummary     *agentv.TraceSummary `json:"trace_summary,omitempty"`
	InputMessages    []agentv.Message     `json:"input_messages,omitempty"`
	GuidelineFiles   []string             `json:"guideline_files,omitempty"`
	InputFiles       []string             `json:"input_files,omitempty"`
	WorkspacePath    string               `json:"workspace_path,omitempty"`
}

// childReply is what the child process writes to stdout.
type childReply struct {
	Score     float64  `json:"score"`
	Hits      []string `json:"hits,omitempty"`
	Misses    []string `json:"misses,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
	Verdict   string   `json:"verdict,omitempty"`
	Details   any      `json:"details,omitempty"`
}

// Evaluate implements evaluator.Evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	argv, err := e.argv(ctx)
	if err != nil {
		return agentv.NewScore(0, 1, false, nil, []string{err.Error()}, ""), nil
	}

	body, cleanup, err := e.buildPayload(ec)
	if err != nil {
		return agentv.NewScore(0, 1, false, nil, []string{err.Error()}, ""), nil
	}
	defer cleanup()

	var proxy *judgeproxy.Server
	var proxyEnv []string
	if e.cfg.UseJudgeProxy && e.deps.JudgeProvider != nil {
		proxy, err = judgeproxy.New(e.deps.JudgeProvider, e.deps.TargetResolver, judgeproxy.Options{MaxCalls: e.cfg.MaxCalls})
		if err != nil {
			return agentv.NewScore(0, 1, false, nil, []string{fmt.Sprintf("judge proxy start failed: %v", err)}, ""), nil
		}
		defer proxy.Shutdown(context.Background())
		proxyEnv = []string{
			"AGENTV_TARGET_PROXY_URL=" + proxy.URL(),
			"AGENTV_TARGET_PROXY_TOKEN=" + proxy.Token(),
		}
	}
	if ec.WorkspacePath != "" {
		proxyEnv = append(proxyEnv, "AGENTV_WORKSPACE_PATH="+ec.WorkspacePath)
	}

	sc, err := e.runScript(ctx, argv, body, proxyEnv)
	if err != nil {
		return sc, err
	}
	if proxy != nil {
		if rr, ok := sc.EvaluatorRawRequest.(map[string]any); ok {
			rr["target_proxy"] = map[string]any{"call_count": proxy.CallCount()}
		}
	}
	return sc, nil
}

// AggregateResults implements composite's resultsAggregator: instead of
// the usual question/criteria/output_messages payload, the script receives
// {"results": {memberId: Score}} as the entirety of its stdin.
func (e *Evaluator) AggregateResults(ctx context.Context, _ agentv.EvaluationContext, results map[string]agentv.Score) (agentv.Score, error) {
	argv, err := e.argv(ctx)
	if err != nil {
		return agentv.NewScore(0, 1, false, nil, []string{err.Error()}, ""), nil
	}
	body, err := json.Marshal(map[string]any{"results": results})
	if err != nil {
		return agentv.NewScore(0, 1, false, nil, []string{fmt.Sprintf("could not serialize member results: %v", err)}, ""), nil
	}
	return e.runScript(ctx, argv, body, nil)
}

// runScript execs argv with body on stdin and parses a childReply from its
// stdout, turning any script-level failure into a zero Score rather than a
// Go error.
func (e *Evaluator) runScript(ctx context.Context, argv []string, body []byte, extraEnv []string) (agentv.Score, error) {
	timeout := time.Duration(e.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	if e.cfg.WorkingDir != "" {
		cmd.Dir = e.cfg.WorkingDir
	}
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdin = bytes.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	rawRequest := map[string]any{"command": argv}

	if runCtx.Err() == context.DeadlineExceeded {
		return agentv.NewScore(0, 1, false, nil, []string{"code judge timed out"}, ""), nil
	}
	if runErr != nil {
		tail := tailString(stderr.String(), stderrTailBytes)
		log.Warn().Err(runErr).Str("stderr_tail", tail).Msg("code judge exited non-zero")
		sc := agentv.NewScore(0, 1, false, nil, []string{fmt.Sprintf("script exited with error: %v: %s", runErr, tail)}, "")
		sc.EvaluatorRawRequest = rawRequest
		return sc, nil
	}

	var reply childReply
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &reply); err != nil {
		sc := agentv.NewScore(0, 1, false, nil, []string{"script produced non-JSON output"}, "")
		sc.EvaluatorRawRequest = rawRequest
		return sc, nil
	}

	hits, misses := agentv.CapHitsMisses(reply.Hits, reply.Misses, 4)
	forceFail := reply.Verdict == string(agentv.VerdictFail)
	sc := agentv.NewScore(reply.Score, 1, forceFail, hits, misses, reply.Reasoning)
	sc.Details = reply.Details
	sc.EvaluatorRawRequest = rawRequest
	return sc, nil
}

func (e *Evaluator) argv(ctx context.Context) ([]string, error) {
	if len(e.cfg.Command) == 0 {
		return nil, fmt.Errorf("code_judge evaluator has no command configured")
	}
	if len(e.cfg.Command) > 1 {
		return e.cfg.Command, nil
	}
	fields, err := shell.Fields(e.cfg.Command[0], nil)
	if err != nil {
		return nil, fmt.Errorf("could not parse command string: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("command string expanded to nothing")
	}
	return fields, nil
}

func (e *Evaluator) buildPayload(ec agentv.EvaluationContext) ([]byte, func(), error) {
	p := payload{
		Question:         lastInputText(ec.Case.InputMessages),
		ExpectedOutcome:  ec.Case.Criteria,
		ExpectedMessages: ec.Case.ExpectedMessages,
		ReferenceAnswer:  ec.Case.ReferenceAnswer(),
		CandidateAnswer:  lastAssistantContent(ec.OutputMessages),
		OutputMessages:   ec.OutputMessages,
		TraceSummary:     ec.TraceSummary,
		InputMessages:    ec.Case.InputMessages,
		GuidelineFiles:   e.cfg.GuidelineFiles,
		InputFiles:       e.cfg.InputFiles,
		WorkspacePath:    ec.WorkspacePath,
	}

	noop := func() {}

	msgBytes, err := json.Marshal(p.OutputMessages)
	if err != nil {
		return nil, noop, err
	}
	cleanup := noop
	if len(msgBytes) > maxOutputMessagesBytes {
		f, err := os.CreateTemp("", "agentv-output-messages-*.json")
		if err != nil {
			return nil, noop, err
		}
		if _, err := f.Write(msgBytes); err != nil {
			f.Close()
			return nil, noop, err
		}
		f.Close()
		p.OutputMessages = nil
		p.OutputPath = f.Name()
		cleanup = func() { os.Remove(f.Name()) }
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, cleanup, err
	}
	return body, cleanup, nil
}

func tailString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func lastInputText(messages []agentv.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if text, ok := messages[i].TextContent(); ok {
			return text
		}
	}
	return ""
}

func lastAssistantContent(messages []agentv.Message) any {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != agentv.RoleAssistant {
			continue
		}
		if messages[i].Content != nil {
			return messages[i].Content
		}
		if len(messages[i].ToolCalls) > 0 {
			return messages[i].ToolCalls
		}
	}
	return nil
}
