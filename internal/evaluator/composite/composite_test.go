package composite

import (
	"context"
	"testing"

	"github.com/agentv/agentv"
)

type stubEvaluator struct {
	score agentv.Score
	err   error
}

func (s stubEvaluator) Evaluate(_ context.Context, _ agentv.EvaluationContext) (agentv.Score, error) {
	return s.score, s.err
}

func TestEvaluate_WeightedAverage(t *testing.T) {
	ev := &Evaluator{
		cfg: agentv.CompositeConfig{Aggregation: agentv.CompositeWeightedAverage},
		members: []memberEvaluator{
			{name: "a", typ: "field_accuracy", weight: 1, eval: stubEvaluator{score: agentv.NewScore(1, 1, false, []string{"a-hit"}, nil, "")}},
			{name: "b", typ: "field_accuracy", weight: 1, eval: stubEvaluator{score: agentv.NewScore(0, 1, false, nil, []string{"b-miss"}, "")}},
		},
	}

	sc, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Score != 0.5 {
		t.Errorf("score = %v, want 0.5", sc.Score)
	}
	if len(sc.ChildScores) != 2 {
		t.Errorf("child scores = %d, want 2", len(sc.ChildScores))
	}
}

func TestEvaluate_WeightedAverage_MemberErrorScoresZero(t *testing.T) {
	ev := &Evaluator{
		cfg: agentv.CompositeConfig{Aggregation: agentv.CompositeWeightedAverage},
		members: []memberEvaluator{
			{name: "a", typ: "field_accuracy", weight: 1, eval: stubEvaluator{err: context.DeadlineExceeded}},
		},
	}

	sc, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Score != 0 {
		t.Errorf("score = %v, want 0 (a member error should not fail the whole composite)", sc.Score)
	}
}

type resultsAggregatorStub struct {
	gotResults map[string]agentv.Score
}

func (r *resultsAggregatorStub) Evaluate(_ context.Context, _ agentv.EvaluationContext) (agentv.Score, error) {
	return agentv.NewScore(0, 1, false, nil, []string{"Evaluate should not be called on a results aggregator"}, ""), nil
}

func (r *resultsAggregatorStub) AggregateResults(_ context.Context, _ agentv.EvaluationContext, results map[string]agentv.Score) (agentv.Score, error) {
	r.gotResults = results
	return agentv.NewScore(0.9, 1, false, []string{"aggregated"}, nil, ""), nil
}

func TestEvaluate_CodeJudgeAggregation(t *testing.T) {
	agg := &resultsAggregatorStub{}
	ev := &Evaluator{
		cfg: agentv.CompositeConfig{Aggregation: agentv.CompositeCodeJudge},
		members: []memberEvaluator{
			{name: "m1", typ: "field_accuracy", weight: 1, eval: stubEvaluator{score: agentv.NewScore(1, 1, false, nil, nil, "")}},
		},
		aggregator: agg,
	}

	sc, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Score != 0.9 {
		t.Errorf("score = %v, want 0.9", sc.Score)
	}
	if _, ok := agg.gotResults["m1"]; !ok {
		t.Errorf("aggregator did not receive member m1's result: %v", agg.gotResults)
	}
	if len(sc.ChildScores) != 1 {
		t.Errorf("child scores = %d, want 1", len(sc.ChildScores))
	}
}

func TestEvaluate_AggregatorWithoutResultsSupportFails(t *testing.T) {
	ev := &Evaluator{
		cfg: agentv.CompositeConfig{Aggregation: agentv.CompositeLLMJudge},
		members: []memberEvaluator{
			{name: "m1", typ: "field_accuracy", weight: 1, eval: stubEvaluator{score: agentv.NewScore(1, 1, false, nil, nil, "")}},
		},
		aggregator: stubEvaluator{},
	}

	sc, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Verdict != agentv.VerdictFail {
		t.Errorf("verdict = %v, want fail (aggregator type doesn't implement results aggregation)", sc.Verdict)
	}
}
