package fieldaccuracy

import (
	"context"
	"testing"

	"github.com/agentv/agentv"
)

func TestEvaluate_MixedKinds(t *testing.T) {
	ev := &Evaluator{cfg: agentv.FieldAccuracyConfig{
		Fields: []agentv.FieldSpec{
			{Path: "invoice_number", Expected: "INV-1", Kind: agentv.FieldMatchExact, Required: true, Weight: 2},
			{Path: "net_total", Expected: float64(1889), Kind: agentv.FieldMatchNumericTolerance, Tolerance: 1},
			{Path: "invoice_date", Expected: "15-JAN-2025", Kind: agentv.FieldMatchDate},
		},
	}}

	ec := agentv.EvaluationContext{
		OutputMessages: []agentv.Message{
			{Role: agentv.RoleAssistant, Content: `{"invoice_number":"INV-1","net_total":1889.5,"invoice_date":"2025-01-15"}`},
		},
	}

	score, err := ev.Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Score != 1.0 {
		t.Errorf("score = %v, want 1.0; misses=%v", score.Score, score.Misses)
	}
}

func TestMatchDate_FormatsFieldTakesPrecedence(t *testing.T) {
	ok, detail := matchDate([]string{"02/01/2006"}, "03/04/2025", "2025-04-03")
	if !ok {
		t.Fatalf("expected match using the supplied format, got: %s", detail)
	}
}

func TestMatchDate_AmbiguousSlashDateUsesMagnitudeHeuristic(t *testing.T) {
	// 13 can't be a month, so the first component must be the day: 13 Feb 2025.
	ok, detail := matchDate(nil, "13/02/2025", "2025-02-13")
	if !ok {
		t.Fatalf("expected the >12 heuristic to resolve day-first, got: %s", detail)
	}
}

func TestMatchDate_UnresolvableAmbiguityMismatches(t *testing.T) {
	// Both components are <= 12, so the heuristic assumes month-first (US
	// convention): 03/04/2025 is March 4th, which does not match April 3rd.
	ok, _ := matchDate(nil, "03/04/2025", "2025-04-03")
	if ok {
		t.Errorf("expected no match: month-first assumption should read 03/04 as March 4")
	}
}

func TestEvaluate_NumericToleranceDivisionByZero(t *testing.T) {
	ev := &Evaluator{cfg: agentv.FieldAccuracyConfig{
		Fields: []agentv.FieldSpec{
			{Path: "delta", Expected: float64(0), Kind: agentv.FieldMatchNumericTolerance, Tolerance: 0.5},
		},
	}}

	ec := agentv.EvaluationContext{
		OutputMessages: []agentv.Message{
			{Role: agentv.RoleAssistant, Content: `{"delta":0.2}`},
		},
	}

	score, err := ev.Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Score != 1.0 {
		t.Errorf("score = %v, want 1.0 (absolute fallback on zero expected)", score.Score)
	}
}
