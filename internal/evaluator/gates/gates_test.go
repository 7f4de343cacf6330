package gates

import (
	"context"
	"testing"

	"github.com/agentv/agentv"
)

func TestLatencyGate(t *testing.T) {
	g := latencyGate{cfg: agentv.LatencyConfig{MaxMs: 1000}}

	under, err := g.Evaluate(context.Background(), agentv.EvaluationContext{TraceSummary: &agentv.TraceSummary{DurationMs: 500}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if under.Verdict != agentv.VerdictPass {
		t.Errorf("verdict = %v, want pass for duration under budget", under.Verdict)
	}

	over, err := g.Evaluate(context.Background(), agentv.EvaluationContext{TraceSummary: &agentv.TraceSummary{DurationMs: 1500}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if over.Verdict != agentv.VerdictFail {
		t.Errorf("verdict = %v, want fail for duration over budget", over.Verdict)
	}
}

func TestLatencyGate_NoTraceSummaryFails(t *testing.T) {
	g := latencyGate{cfg: agentv.LatencyConfig{MaxMs: 1000}}
	sc, err := g.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Verdict != agentv.VerdictFail {
		t.Errorf("verdict = %v, want fail when no trace summary is available", sc.Verdict)
	}
}

func TestCostGate(t *testing.T) {
	g := costGate{cfg: agentv.CostConfig{MaxUsd: 0.10}}
	cost := 0.25
	sc, err := g.Evaluate(context.Background(), agentv.EvaluationContext{TraceSummary: &agentv.TraceSummary{CostUsd: &cost}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Verdict != agentv.VerdictFail {
		t.Errorf("verdict = %v, want fail, cost $0.25 exceeds budget $0.10", sc.Verdict)
	}
}

func TestTokenUsageGate(t *testing.T) {
	g := tokenUsageGate{cfg: agentv.TokenUsageConfig{MaxInput: 100, MaxOutput: 50}}

	sc, err := g.Evaluate(context.Background(), agentv.EvaluationContext{
		TraceSummary: &agentv.TraceSummary{TokenUsage: &agentv.TokenUsage{Input: 200, Output: 10}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Verdict != agentv.VerdictFail {
		t.Errorf("verdict = %v, want fail, input tokens exceed budget", sc.Verdict)
	}
	if len(sc.Misses) != 1 {
		t.Errorf("misses = %v, want exactly one (only input exceeded)", sc.Misses)
	}
}

func TestExecutionMetricsGate(t *testing.T) {
	g := executionMetricsGate{cfg: agentv.ExecutionMetricsConfig{MaxToolCalls: 2}}

	sc, err := g.Evaluate(context.Background(), agentv.EvaluationContext{
		TraceSummary: &agentv.TraceSummary{ToolCallsByName: map[string]int{"search": 2, "fetch": 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Verdict != agentv.VerdictFail {
		t.Errorf("verdict = %v, want fail, 3 tool calls exceed budget of 2", sc.Verdict)
	}
}
