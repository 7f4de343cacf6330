// Package gates implements the simple pass/fail gate evaluators: latency,
// cost, token_usage, and execution_metrics. Each compares one or more
// trace-derived numbers against configured ceilings.
package gates

import (
	"context"
	"fmt"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/evaluator"
)

func init() {
	evaluator.Register(agentv.EvaluatorLatency, buildLatency)
	evaluator.Register(agentv.EvaluatorCost, buildCost)
	evaluator.Register(agentv.EvaluatorTokenUsage, buildTokenUsage)
	evaluator.Register(agentv.EvaluatorExecutionMetrics, buildExecutionMetrics)
}

func buildLatency(cfg agentv.EvaluatorConfig, _ evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.Latency == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "gates.buildLatency",
			fmt.Errorf("evaluator %q missing latency config", cfg.Name))
	}
	return latencyGate{cfg: *cfg.Latency}, nil
}

func buildCost(cfg agentv.EvaluatorConfig, _ evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.Cost == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "gates.buildCost",
			fmt.Errorf("evaluator %q missing cost config", cfg.Name))
	}
	return costGate{cfg: *cfg.Cost}, nil
}

func buildTokenUsage(cfg agentv.EvaluatorConfig, _ evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.TokenUsageGate == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "gates.buildTokenUsage",
			fmt.Errorf("evaluator %q missing token_usage config", cfg.Name))
	}
	return tokenUsageGate{cfg: *cfg.TokenUsageGate}, nil
}

func buildExecutionMetrics(cfg agentv.EvaluatorConfig, _ evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.ExecutionMetrics == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "gates.buildExecutionMetrics",
			fmt.Errorf("evaluator %q missing execution_metrics config", cfg.Name))
	}
	return executionMetricsGate{cfg: *cfg.ExecutionMetrics}, nil
}

func passFail(pass bool, passMsg, failMsg string) agentv.Score {
	if pass {
		return agentv.NewScore(1, 1, false, []string{passMsg}, nil, "")
	}
	return agentv.NewScore(0, 1, true, nil, []string{failMsg}, "")
}

type latencyGate struct{ cfg agentv.LatencyConfig }

func (g latencyGate) Evaluate(_ context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	if ec.TraceSummary == nil {
		return passFail(false, "", "no trace summary available"), nil
	}
	ms := ec.TraceSummary.DurationMs
	pass := ms <= g.cfg.MaxMs
	return passFail(pass,
		fmt.Sprintf("duration %dms within budget %dms", ms, g.cfg.MaxMs),
		fmt.Sprintf("duration %dms exceeds budget %dms", ms, g.cfg.MaxMs)), nil
}

type costGate struct{ cfg agentv.CostConfig }

func (g costGate) Evaluate(_ context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	if ec.TraceSummary == nil || ec.TraceSummary.CostUsd == nil {
		return passFail(false, "", "no cost reported"), nil
	}
	cost := *ec.TraceSummary.CostUsd
	pass := cost <= g.cfg.MaxUsd
	return passFail(pass,
		fmt.Sprintf("cost $%.4f within budget $%.4f", cost, g.cfg.MaxUsd),
		fmt.Sprintf("cost $%.4f exceeds budget $%.4f", cost, g.cfg.MaxUsd)), nil
}

type tokenUsageGate struct{ cfg agentv.TokenUsageConfig }

func (g tokenUsageGate) Evaluate(_ context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	if ec.TraceSummary == nil || ec.TraceSummary.TokenUsage == nil {
		return passFail(false, "", "no token usage reported"), nil
	}
	u := ec.TraceSummary.TokenUsage
	var misses []string
	if g.cfg.MaxInput > 0 && u.Input > g.cfg.MaxInput {
		misses = append(misses, fmt.Sprintf("input tokens %d exceed budget %d", u.Input, g.cfg.MaxInput))
	}
	if g.cfg.MaxOutput > 0 && u.Output > g.cfg.MaxOutput {
		misses = append(misses, fmt.Sprintf("output tokens %d exceed budget %d", u.Output, g.cfg.MaxOutput))
	}
	total := u.Input + u.Output
	if g.cfg.MaxTotal > 0 && total > g.cfg.MaxTotal {
		misses = append(misses, fmt.Sprintf("total tokens %d exceed budget %d", total, g.cfg.MaxTotal))
	}
	if len(misses) > 0 {
		return agentv.NewScore(0, 1, true, nil, misses, ""), nil
	}
	return agentv.NewScore(1, 1, false, []string{"token usage within budget"}, nil, ""), nil
}

type executionMetricsGate struct{ cfg agentv.ExecutionMetricsConfig }

func (g executionMetricsGate) Evaluate(_ context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	if ec.TraceSummary == nil {
		return passFail(false, "", "no trace summary available"), nil
	}
	ts := ec.TraceSummary
	var misses []string

	toolCalls := 0
	for _, n := range ts.ToolCallsByName {
		toolCalls += n
	}
	if g.cfg.MaxToolCalls > 0 && toolCalls > g.cfg.MaxToolCalls {
		misses = append(misses, fmt.Sprintf("tool calls %d exceed budget %d", toolCalls, g.cfg.MaxToolCalls))
	}
	if g.cfg.MaxErrors > 0 && ts.ErrorCount > g.cfg.MaxErrors {
		misses = append(misses, fmt.Sprintf("errors %d exceed budget %d", ts.ErrorCount, g.cfg.MaxErrors))
	}
	if g.cfg.MaxLLMCalls > 0 && ts.LLMCallCount != nil && *ts.LLMCallCount > g.cfg.MaxLLMCalls {
		misses = append(misses, fmt.Sprintf("LLM calls %d exceed budget %d", *ts.LLMCallCount, g.cfg.MaxLLMCalls))
	}

	if len(misses) > 0 {
		return agentv.NewScore(0, 1, true, nil, misses, ""), nil
	}
	return agentv.NewScore(1, 1, false, []string{"execution metrics within budget"}, nil, ""), nil
}
