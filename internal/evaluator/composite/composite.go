// Package composite implements the composite evaluator: it runs member
// evaluators concurrently and aggregates their scores by weighted average,
// a code-judge subprocess, or a delegated LLM judge.
package composite

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/evaluator"
)

// resultsAggregator is implemented by evaluator kinds that can score a
// composite's member results directly (code_judge, llm_judge), bypassing
// their normal transcript-shaped Evaluate entry point.
type resultsAggregator interface {
	AggregateResults(ctx context.Context, ec agentv.EvaluationContext, results map[string]agentv.Score) (agentv.Score, error)
}

func init() {
	evaluator.Register(agentv.EvaluatorComposite, build)
}

func build(cfg agentv.EvaluatorConfig, deps evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.Composite == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "composite.build",
			fmt.Errorf("evaluator %q missing composite config", cfg.Name))
	}

	members := make([]memberEvaluator, 0, len(cfg.Composite.Members))
	for _, m := range cfg.Composite.Members {
		ev, err := deps.Build(m, deps)
		if err != nil {
			return nil, err
		}
		name := m.Name
		if name == "" {
			name = m.Type
		}
		members = append(members, memberEvaluator{name: name, typ: m.Type, weight: weightOf(m), eval: ev})
	}

	var aggregator evaluator.Evaluator
	if cfg.Composite.Aggregation == agentv.CompositeCodeJudge || cfg.Composite.Aggregation == agentv.CompositeLLMJudge {
		if cfg.Composite.Aggregator == nil {
			return nil, agentv.NewError(agentv.KindInvalidConfig, "composite.build",
				fmt.Errorf("evaluator %q: aggregation %q requires an aggregator config", cfg.Name, cfg.Composite.Aggregation))
		}
		ev, err := deps.Build(*cfg.Composite.Aggregator, deps)
		if err != nil {
			return nil, err
		}
		aggregator = ev
	}

	return &Evaluator{cfg: *cfg.Composite, members: members, aggregator: aggregator}, nil
}

func weightOf(cfg agentv.EvaluatorConfig) float64 {
	if cfg.Weight > 0 {
		return cfg.Weight
	}
	return 1
}

type memberEvaluator struct {
	name   string
	typ    string
	weight float64
	eval   evaluator.Evaluator
}

// Evaluator is the composite evaluator.
type Evaluator struct {
	cfg        agentv.CompositeConfig
	members    []memberEvaluator
	aggregator evaluator.Evaluator
}

// Evaluate implements evaluator.Evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	scores := make([]agentv.NamedScore, len(e.members))

	var wg sync.WaitGroup
	for i, m := range e.members {
		wg.Add(1)
		go func(i int, m memberEvaluator) {
			defer wg.Done()
			memberEC := ec
			memberEC.Evaluator = m.name
			sc, err := m.eval.Evaluate(ctx, memberEC)
			if err != nil {
				sc = agentv.NewScore(0, 1, false, nil, []string{err.Error()}, "")
			}
			scores[i] = agentv.NamedScore{Name: m.name, Type: m.typ, Score: sc, Weight: m.weight}
		}(i, m)
	}
	wg.Wait()

	switch e.cfg.Aggregation {
	case agentv.CompositeCodeJudge, agentv.CompositeLLMJudge:
		return e.aggregate(ctx, ec, scores)
	default:
		return e.weightedAverage(scores), nil
	}
}

func (e *Evaluator) weightedAverage(scores []agentv.NamedScore) agentv.Score {
	var weightSum, weighted float64
	var hits, misses []string
	aspectCount := 0
	forceFail := false

	for _, ns := range scores {
		weightSum += ns.Weight
		weighted += ns.Weight * ns.Score.Score
		aspectCount += ns.Score.ExpectedAspectCount
		if ns.Score.Verdict == agentv.VerdictFail {
			switch ns.Type {
			case agentv.EvaluatorLatency, agentv.EvaluatorCost, agentv.EvaluatorTokenUsage, agentv.EvaluatorExecutionMetrics:
				forceFail = true
			}
		}
		for _, h := range ns.Score.Hits {
			hits = append(hits, ns.Name+": "+h)
		}
		for _, m := range ns.Score.Misses {
			misses = append(misses, ns.Name+": "+m)
		}
	}

	score := 0.0
	if weightSum > 0 {
		score = weighted / weightSum
	}
	hits, misses = agentv.CapHitsMisses(hits, misses, 4)
	out := agentv.NewScore(score, max(aspectCount, 1), forceFail, hits, misses, "")
	out.ChildScores = scores
	return out
}

func (e *Evaluator) aggregate(ctx context.Context, ec agentv.EvaluationContext, scores []agentv.NamedScore) (agentv.Score, error) {
	resultsByMember := map[string]agentv.Score{}
	for _, ns := range scores {
		resultsByMember[ns.Name] = ns.Score
	}

	ra, ok := e.aggregator.(resultsAggregator)
	if !ok {
		out := agentv.NewScore(0, 1, false, nil,
			[]string{fmt.Sprintf("aggregator %T does not support results aggregation", e.aggregator)}, "")
		out.ChildScores = scores
		return out, nil
	}

	aggCtx := ec
	aggCtx.Evaluator = "composite_aggregator"

	sc, err := ra.AggregateResults(ctx, aggCtx, resultsByMember)
	if err != nil {
		out := agentv.NewScore(0, 1, false, nil, []string{fmt.Sprintf("aggregator failed: %v", err)}, "")
		out.ChildScores = scores
		return out, nil
	}
	sc.ChildScores = scores
	return sc, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
