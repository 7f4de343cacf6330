package rubric

import (
	"context"
	"testing"

	"github.com/agentv/agentv"
)

func TestEvaluate_RequiredItemUnsatisfiedForcesFail(t *testing.T) {
	ev := &Evaluator{cfg: agentv.RubricConfig{Items: []agentv.RubricItem{
		{ID: "a", Description: "first", Weight: 1},
		{ID: "b", Description: "second", Weight: 1, Required: true},
	}}}

	ec := agentv.EvaluationContext{Case: agentv.EvalCase{Metadata: map[string]any{"a": true, "b": false}}}
	sc, err := ev.Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Verdict != agentv.VerdictFail {
		t.Errorf("verdict = %v, want fail", sc.Verdict)
	}
	if sc.Score != 0.5 {
		t.Errorf("score = %v, want 0.5", sc.Score)
	}
}

func TestEvaluate_MissingMetadataCountsAsUnsatisfied(t *testing.T) {
	ev := &Evaluator{cfg: agentv.RubricConfig{Items: []agentv.RubricItem{
		{ID: "a", Description: "first", Weight: 1},
	}}}

	sc, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Score != 0 {
		t.Errorf("score = %v, want 0", sc.Score)
	}
	if len(sc.Misses) != 1 {
		t.Errorf("misses = %v, want exactly one", sc.Misses)
	}
}

func TestEvaluate_DescriptionFallbackKey(t *testing.T) {
	ev := &Evaluator{cfg: agentv.RubricConfig{Items: []agentv.RubricItem{
		{Description: "no explicit id", Weight: 1},
	}}}

	ec := agentv.EvaluationContext{Case: agentv.EvalCase{Metadata: map[string]any{"no explicit id": true}}}
	sc, err := ev.Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Score != 1 {
		t.Errorf("score = %v, want 1 (should key on Description when ID is empty)", sc.Score)
	}
}
