// Package rubric implements the standalone rubric evaluator: a checklist
// scored without an LLM, against boolean satisfaction flags a prior
// evaluator or the suite author already attached to the case's metadata.
package rubric

import (
	"context"
	"fmt"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/evaluator"
)

func init() {
	evaluator.Register(agentv.EvaluatorRubric, build)
}

func build(cfg agentv.EvaluatorConfig, _ evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.Rubric == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "rubric.build",
			fmt.Errorf("evaluator %q missing rubric config", cfg.Name))
	}
	return &Evaluator{cfg: *cfg.Rubric}, nil
}

// Evaluator is the standalone rubric evaluator.
type Evaluator struct {
	cfg agentv.RubricConfig
}

// Evaluate reads each item's satisfaction from ec.Case.Metadata, keyed by
// the item's ID (falling back to its Description), as a bool. An item
// absent from metadata counts as unsatisfied.
func (e *Evaluator) Evaluate(_ context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	var weightSum, weighted float64
	forceFail := false
	var hits, misses []string

	for _, item := range e.cfg.Items {
		key := item.ID
		if key == "" {
			key = item.Description
		}
		weight := item.Weight
		if weight <= 0 {
			weight = 1
		}
		weightSum += weight

		satisfied, _ := ec.Case.Metadata[key].(bool)
		if satisfied {
			weighted += weight
			hits = append(hits, item.Description)
		} else {
			misses = append(misses, item.Description)
			if item.Required {
				forceFail = true
			}
		}
	}

	hits, misses = agentv.CapHitsMisses(hits, misses, 4)
	score := 0.0
	if weightSum > 0 {
		score = weighted / weightSum
	}
	return agentv.NewScore(score, max(len(e.cfg.Items), 1), forceFail, hits, misses, ""), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
