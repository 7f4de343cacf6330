package llmjudge

import (
	"context"
	"strings"
	"testing"

	"github.com/agentv/agentv"
)

type fakeJudge struct {
	response string
	agentv.NotRetrySafe
}

func (f *fakeJudge) Invoke(_ context.Context, _ agentv.ProviderRequest) (agentv.ProviderResponse, error) {
	return agentv.ProviderResponse{
		OutputMessages: []agentv.Message{{Role: agentv.RoleAssistant, Content: f.response}},
	}, nil
}

func TestEvaluate_ChecklistRequiredFails(t *testing.T) {
	judge := &fakeJudge{response: `[{"id":"a","satisfied":true},{"id":"b","satisfied":true},{"id":"c","satisfied":false}]`}
	ev := &Evaluator{
		cfg: agentv.LLMJudgeConfig{
			Mode: agentv.RubricChecklist,
			RubricItems: []agentv.RubricItem{
				{ID: "a", Description: "first", Weight: 1},
				{ID: "b", Description: "second", Weight: 1},
				{ID: "c", Description: "third", Weight: 1, Required: true},
			},
		},
		judge: judge,
	}

	score, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Verdict != agentv.VerdictFail {
		t.Errorf("verdict = %v, want fail (required item unsatisfied)", score.Verdict)
	}
	want := 2.0 / 3.0
	if diff := score.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %v, want %v", score.Score, want)
	}
}

func TestEvaluate_FreeformMarkdownFencedResponse(t *testing.T) {
	judge := &fakeJudge{response: "```json\n{\"score\":0.9,\"hits\":[\"good\"],\"misses\":[],\"reasoning\":\"ok\"}\n```"}
	ev := &Evaluator{cfg: agentv.LLMJudgeConfig{Mode: agentv.RubricFreeform}, judge: judge}

	score, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Score != 0.9 {
		t.Errorf("score = %v, want 0.9", score.Score)
	}
}

type capturingJudge struct {
	lastPrompt string
	response   string
	agentv.NotRetrySafe
}

func (c *capturingJudge) Invoke(_ context.Context, req agentv.ProviderRequest) (agentv.ProviderResponse, error) {
	c.lastPrompt = req.Question
	return agentv.ProviderResponse{
		OutputMessages: []agentv.Message{{Role: agentv.RoleAssistant, Content: c.response}},
	}, nil
}

func TestAggregateResults_SubstitutesPlaceholder(t *testing.T) {
	judge := &capturingJudge{response: `{"score":0.6,"hits":[],"misses":[],"reasoning":"aggregated"}`}
	ev := &Evaluator{
		cfg:   agentv.LLMJudgeConfig{Criteria: "Combine these: " + resultsPlaceholder},
		judge: judge,
	}

	results := map[string]agentv.Score{"member_a": agentv.NewScore(0.8, 1, false, nil, nil, "")}
	score, err := ev.AggregateResults(context.Background(), agentv.EvaluationContext{}, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Score != 0.6 {
		t.Errorf("score = %v, want 0.6", score.Score)
	}
	if strings.Contains(judge.lastPrompt, resultsPlaceholder) {
		t.Errorf("prompt still contains the unsubstituted placeholder: %q", judge.lastPrompt)
	}
	if !strings.Contains(judge.lastPrompt, "member_a") {
		t.Errorf("prompt did not carry the member results: %q", judge.lastPrompt)
	}
}

func TestAggregateResults_AppendsResultsWhenNoPlaceholder(t *testing.T) {
	judge := &capturingJudge{response: `{"score":1,"hits":[],"misses":[],"reasoning":""}`}
	ev := &Evaluator{cfg: agentv.LLMJudgeConfig{Criteria: "Score the aggregate."}, judge: judge}

	results := map[string]agentv.Score{"member_a": agentv.NewScore(1, 1, false, nil, nil, "")}
	if _, err := ev.AggregateResults(context.Background(), agentv.EvaluationContext{}, results); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(judge.lastPrompt, "member_a") {
		t.Errorf("prompt did not carry the member results when no placeholder was present: %q", judge.lastPrompt)
	}
}
