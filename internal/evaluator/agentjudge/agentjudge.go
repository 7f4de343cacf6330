// Package agentjudge implements the agent-judge evaluator: unlike
// llm-judge, which scores a static transcript, an agent judge drives a
// provider directly to ask follow-up questions before rendering a verdict
// against the criteria.
package agentjudge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/evaluator"
	"github.com/agentv/agentv/internal/judgeproxy"
)

func init() {
	evaluator.Register(agentv.EvaluatorAgentJudge, build)
}

func build(cfg agentv.EvaluatorConfig, deps evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.AgentJudge == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "agentjudge.build",
			fmt.Errorf("evaluator %q missing agent_judge config", cfg.Name))
	}
	return &Evaluator{cfg: *cfg.AgentJudge, deps: deps}, nil
}

// Evaluator is the agent-judge evaluator.
type Evaluator struct {
	cfg  agentv.AgentJudgeConfig
	deps evaluator.Deps
}

const defaultMaxTurns = 1

// Evaluate drives the configured target provider for up to MaxTurns turns,
// then asks the judge provider to score the resulting transcript against
// Criteria. When UseJudgeProxy is set, a judge proxy runs for the duration
// of the call, but its URL and token are not passed to the target in the
// ProviderRequest, so the target has no way to reach it.
func (e *Evaluator) Evaluate(ctx context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	target := ec.Provider
	if e.cfg.Target != "" {
		if ec.TargetResolver == nil {
			return agentv.NewScore(0, 1, false, nil,
				[]string{fmt.Sprintf("agent_judge target %q requested but no target resolver available", e.cfg.Target)}, ""), nil
		}
		p, ok := ec.TargetResolver.Resolve(e.cfg.Target)
		if !ok {
			return agentv.NewScore(0, 1, false, nil,
				[]string{fmt.Sprintf("agent_judge target %q not found", e.cfg.Target)}, ""), nil
		}
		target = p
	}
	if target == nil {
		return agentv.NewScore(0, 1, false, nil, []string{"agent_judge has no provider to drive"}, ""), nil
	}

	var proxy *judgeproxy.Server
	if e.cfg.UseJudgeProxy && ec.JudgeProvider != nil {
		p, err := judgeproxy.New(ec.JudgeProvider, ec.TargetResolver, judgeproxy.Options{MaxCalls: e.cfg.MaxCalls})
		if err != nil {
			return agentv.NewScore(0, 1, false, nil, []string{fmt.Sprintf("judge proxy start failed: %v", err)}, ""), nil
		}
		proxy = p
		defer proxy.Shutdown(context.Background())
	}

	maxTurns := e.cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	transcript := append([]agentv.Message{}, ec.OutputMessages...)
	question := fmt.Sprintf("Given the transcript so far, does the agent satisfy: %s? Respond and, if not yet resolved, continue investigating.", e.cfg.Criteria)

	for turn := 0; turn < maxTurns; turn++ {
		resp, err := target.Invoke(ctx, agentv.ProviderRequest{
			Question:      question,
			PriorMessages: transcript,
		})
		if err != nil {
			return agentv.NewScore(0, 1, false, nil, []string{fmt.Sprintf("agent_judge turn %d failed: %v", turn, err)}, ""), nil
		}
		transcript = append(transcript, resp.OutputMessages...)
	}

	if ec.JudgeProvider == nil {
		return agentv.NewScore(0, 1, false, nil, []string{"no judge provider configured to render a verdict"}, ""), nil
	}

	verdictReq := agentv.ProviderRequest{
		SystemPrompt: "You are judging whether an agent's actions satisfy stated criteria. Respond with a single sentence verdict starting with PASS or FAIL.",
		Question:     fmt.Sprintf("Criteria: %s\n\nTranscript:\n%s", e.cfg.Criteria, renderTranscript(transcript)),
	}
	resp, err := ec.JudgeProvider.Invoke(ctx, verdictReq)
	if err != nil {
		return agentv.NewScore(0, 1, false, nil, []string{fmt.Sprintf("judge verdict call failed: %v", err)}, ""), nil
	}

	verdictText := ""
	for i := len(resp.OutputMessages) - 1; i >= 0; i-- {
		if text, ok := resp.OutputMessages[i].TextContent(); ok {
			verdictText = text
			break
		}
	}

	pass := len(verdictText) >= 4 && verdictText[:4] == "PASS"
	if pass {
		return agentv.NewScore(1, 1, false, []string{verdictText}, nil, verdictText), nil
	}
	return agentv.NewScore(0, 1, false, nil, []string{verdictText}, verdictText), nil
}

// renderTranscript renders a transcript into role-prefixed text (message
// content plus tool call name/input/output) so the judge sees what actually
// happened instead of a bare message count.
func renderTranscript(messages []agentv.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if text, ok := m.TextContent(); ok && text != "" {
			fmt.Fprintf(&b, "[%s] %s\n", m.Role, text)
		} else if m.Content != nil {
			blob, _ := json.Marshal(m.Content)
			fmt.Fprintf(&b, "[%s] %s\n", m.Role, blob)
		}
		for _, tc := range m.ToolCalls {
			inBlob, _ := json.Marshal(tc.Input)
			outBlob, _ := json.Marshal(tc.Output)
			fmt.Fprintf(&b, "[%s tool_call] %s(%s) -> %s\n", m.Role, tc.Tool, inBlob, outBlob)
		}
	}
	if b.Len() == 0 {
		return "(empty transcript)"
	}
	return b.String()
}
