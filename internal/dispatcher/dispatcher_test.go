package dispatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/writer"

	_ "github.com/agentv/agentv/internal/evaluator/gates"
)

type fakeProvider struct {
	agentv.NotRetrySafe
	delay   time.Duration
	invoked int32
}

func (p *fakeProvider) Invoke(ctx context.Context, req agentv.ProviderRequest) (agentv.ProviderResponse, error) {
	atomic.AddInt32(&p.invoked, 1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return agentv.ProviderResponse{}, ctx.Err()
		}
	}
	return agentv.ProviderResponse{
		OutputMessages: []agentv.Message{{Role: agentv.RoleAssistant, Content: "ok"}},
	}, nil
}

func caseWithLatencyGate(id string, maxMs int64) agentv.EvalCase {
	limit := maxMs
	return agentv.EvalCase{
		ID: id,
		InputMessages: []agentv.Message{
			{Role: agentv.RoleUser, Content: "hello"},
		},
		EvaluatorConfigs: []agentv.EvaluatorConfig{
			{
				Name: "latency",
				Type: agentv.EvaluatorLatency,
				Latency: &agentv.LatencyConfig{MaxMs: limit},
			},
		},
	}
}

func newOut(t *testing.T) *writer.Multi {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := writer.NewMulti([]string{path})
	if err != nil {
		t.Fatalf("NewMulti: %v", err)
	}
	return out
}

func TestRun_EmitsOneResultPerCaseAttempt(t *testing.T) {
	provider := &fakeProvider{}
	out := newOut(t)
	defer out.Close()

	d := New("demo", provider, nil, nil, out, Options{Workers: 2, Trials: 2})
	cases := []agentv.EvalCase{
		caseWithLatencyGate("a", 10_000),
		caseWithLatencyGate("b", 10_000),
	}

	if err := d.Run(context.Background(), cases); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt32(&provider.invoked); got != 4 {
		t.Errorf("provider invoked %d times, want 4 (2 cases x 2 trials)", got)
	}
}

func TestRun_FailFastStopsAfterFirstFailure(t *testing.T) {
	provider := &fakeProvider{}
	out := newOut(t)
	defer out.Close()

	d := New("demo", provider, nil, nil, out, Options{Workers: 1, FailFast: true})
	cases := []agentv.EvalCase{
		caseWithLatencyGate("a", -1),
		caseWithLatencyGate("b", 10_000),
		caseWithLatencyGate("c", 10_000),
	}

	if err := d.Run(context.Background(), cases); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt32(&provider.invoked); got > 2 {
		t.Errorf("provider invoked %d times after a forced failure, want failFast to stop the run early", got)
	}
}

func TestRun_CancellationStopsNewWorkWithinGrace(t *testing.T) {
	provider := &fakeProvider{delay: 50 * time.Millisecond}
	out := newOut(t)
	defer out.Close()

	cases := make([]agentv.EvalCase, 0, 100)
	for i := 0; i < 100; i++ {
		cases = append(cases, caseWithLatencyGate(fmt.Sprintf("case-%d", i), 10_000))
	}

	d := New("demo", provider, nil, nil, out, Options{Workers: 4, CancelGrace: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := d.Run(ctx, cases); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("Run took %v after cancellation, want it to unwind within the grace period", elapsed)
	}
	if got := atomic.LoadInt32(&provider.invoked); got >= int32(len(cases)) {
		t.Errorf("provider invoked all %d items, want cancellation to have cut the run short", got)
	}
}
