package codejudge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentv/agentv"
)

func TestEvaluate_ParsesChildReply(t *testing.T) {
	ev := &Evaluator{cfg: agentv.CodeJudgeConfig{
		Command: []string{"sh", "-c", `cat >/dev/null; echo '{"score":0.75,"hits":["h1"],"misses":["m1"],"reasoning":"why"}'`},
	}}

	sc, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Score != 0.75 {
		t.Errorf("score = %v, want 0.75", sc.Score)
	}
	if len(sc.Hits) != 1 || sc.Hits[0] != "h1" {
		t.Errorf("hits = %v, want [h1]", sc.Hits)
	}
	if sc.Reasoning != "why" {
		t.Errorf("reasoning = %q, want %q", sc.Reasoning, "why")
	}
}

func TestEvaluate_NonZeroExitYieldsZeroScore(t *testing.T) {
	ev := &Evaluator{cfg: agentv.CodeJudgeConfig{Command: []string{"sh", "-c", "cat >/dev/null; exit 1"}}}

	sc, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Score != 0 {
		t.Errorf("score = %v, want 0", sc.Score)
	}
	if len(sc.Misses) == 0 {
		t.Errorf("expected a miss describing the script failure")
	}
}

func TestEvaluate_ChildVerdictForcesFail(t *testing.T) {
	ev := &Evaluator{cfg: agentv.CodeJudgeConfig{
		Command: []string{"sh", "-c", `cat >/dev/null; echo '{"score":1,"verdict":"fail"}'`},
	}}

	sc, err := ev.Evaluate(context.Background(), agentv.EvaluationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Verdict != agentv.VerdictFail {
		t.Errorf("verdict = %v, want fail (a high score shouldn't override an explicit fail verdict)", sc.Verdict)
	}
}

func TestAggregateResults_PayloadCarriesOnlyResults(t *testing.T) {
	ev := &Evaluator{cfg: agentv.CodeJudgeConfig{
		Command: []string{"sh", "-c", `
input=$(cat)
case "$input" in
  *'"question"'*) echo '{"score":0}' ;;
  *'"results"'*) echo '{"score":1}' ;;
  *) echo '{"score":0}' ;;
esac`},
	}}

	results := map[string]agentv.Score{
		"member_a": agentv.NewScore(0.8, 1, false, nil, nil, ""),
	}
	sc, err := ev.AggregateResults(context.Background(), agentv.EvaluationContext{}, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Score != 1 {
		t.Errorf("score = %v, want 1 (aggregator payload should carry a results key and no question field)", sc.Score)
	}
}

func TestBuildPayload_IncludesGuidelineAndInputFiles(t *testing.T) {
	ev := &Evaluator{cfg: agentv.CodeJudgeConfig{
		GuidelineFiles: []string{"guidelines.md"},
		InputFiles:     []string{"input.json"},
	}}

	body, cleanup, err := ev.buildPayload(agentv.EvaluationContext{})
	defer cleanup()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("could not unmarshal payload: %v", err)
	}
	if len(p.GuidelineFiles) != 1 || p.GuidelineFiles[0] != "guidelines.md" {
		t.Errorf("guideline_files = %v, want [guidelines.md]", p.GuidelineFiles)
	}
	if len(p.InputFiles) != 1 || p.InputFiles[0] != "input.json" {
		t.Errorf("input_files = %v, want [input.json]", p.InputFiles)
	}
}

func TestArgv_SingleStringCommandExpandsViaShellFields(t *testing.T) {
	ev := &Evaluator{cfg: agentv.CodeJudgeConfig{Command: []string{"python3 -u script.py --flag"}}}

	argv, err := ev.argv(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"python3", "-u", "script.py", "--flag"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestArgv_NoCommandConfigured(t *testing.T) {
	ev := &Evaluator{}
	if _, err := ev.argv(context.Background()); err == nil {
		t.Error("expected an error for a missing command")
	}
}
