// Package trajectory implements the tool-trajectory evaluator: it compares
// an agent's actual tool-call sequence against an expected sequence under
// five ordering modes with partial-argument matching and per-call latency
// assertions.
package trajectory

import (
	"context"
	"fmt"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/evaluator"
	"github.com/agentv/agentv/internal/evaluator/evalutil"
)

func init() {
	evaluator.Register(agentv.EvaluatorToolTrajectory, build)
}

func build(cfg agentv.EvaluatorConfig, _ evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.ToolTrajectory == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "trajectory.build",
			fmt.Errorf("evaluator %q missing tool_trajectory config", cfg.Name))
	}
	return &Evaluator{cfg: *cfg.ToolTrajectory}, nil
}

// Evaluator is the tool-trajectory matcher.
type Evaluator struct {
	cfg agentv.ToolTrajectoryConfig
}

// Evaluate implements evaluator.Evaluator.
func (e *Evaluator) Evaluate(_ context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	actual := agentv.ToolCallsFromMessages(ec.OutputMessages)

	defaultMode := e.cfg.Mode
	if defaultMode == "" {
		defaultMode = agentv.SequenceAnyOrder
	}

	var hits, misses []string
	var score float64

	switch defaultMode {
	case agentv.SequenceInOrder:
		score, hits, misses = matchInOrder(e.cfg, actual)
	case agentv.SequenceExact:
		score, hits, misses = matchExact(e.cfg, actual)
	case agentv.SequenceSuperset:
		score, hits, misses = matchSuperset(e.cfg, actual)
	case agentv.SequenceSubset:
		score, hits, misses = matchSubset(e.cfg, actual)
	default:
		score, hits, misses = matchAnyOrder(e.cfg, actual)
	}

	hits, misses = agentv.CapHitsMisses(hits, misses, 4)
	return agentv.NewScore(score, max(len(e.cfg.Expected), 1), false, hits, misses, ""), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func defaultArgsMatch(e agentv.ExpectedToolCall, cfgDefault agentv.ArgMatchMode) agentv.ArgMatchMode {
	if e.ArgsMatch != "" {
		return e.ArgsMatch
	}
	if cfgDefault != "" {
		return cfgDefault
	}
	return agentv.ArgMatchExact
}

func argsMatch(e agentv.ExpectedToolCall, actual agentv.ToolCall, cfgDefault agentv.ArgMatchMode) bool {
	return evalutil.MatchArgs(defaultArgsMatch(e, cfgDefault), e.Args, actual.Input, e.FieldList)
}

// latencyAssertion returns (hit, miss, skipped) for one matched pair.
func latencyAssertion(e agentv.ExpectedToolCall, actual agentv.ToolCall) (hit bool, miss bool, skipped bool) {
	if e.MaxDurationMs == nil {
		return false, false, true
	}
	if actual.DurationMs == nil {
		return false, false, true
	}
	if *actual.DurationMs <= *e.MaxDurationMs {
		return true, false, false
	}
	return false, true, false
}

func matchAnyOrder(cfg agentv.ToolTrajectoryConfig, actual []agentv.ToolCall) (float64, []string, []string) {
	minimums := cfg.Minimums
	if len(minimums) == 0 {
		for _, e := range cfg.Expected {
			if minimums == nil {
				minimums = map[string]int{}
			}
			minimums[e.Tool]++
		}
	}
	if len(minimums) == 0 {
		return 1, nil, nil
	}

	counts := map[string]int{}
	for _, c := range actual {
		counts[c.Tool]++
	}

	var hits, misses []string
	passes := 0
	for tool, required := range minimums {
		if counts[tool] >= required {
			passes++
			hits = append(hits, fmt.Sprintf("%s called >= %d times", tool, required))
		} else {
			misses = append(misses, fmt.Sprintf("%s called %d times, expected >= %d", tool, counts[tool], required))
		}
	}
	return float64(passes) / float64(len(minimums)), hits, misses
}

func matchInOrder(cfg agentv.ToolTrajectoryConfig, actual []agentv.ToolCall) (float64, []string, []string) {
	if len(cfg.Expected) == 0 {
		return 1, nil, nil
	}

	var hits, misses []string
	sequenceHits := 0
	latencyHits := 0
	latencyTotal := 0
	cursor := 0

	for i, e := range cfg.Expected {
		found := -1
		for j := cursor; j < len(actual); j++ {
			if actual[j].Tool == e.Tool {
				found = j
				break
			}
		}
		if found == -1 {
			misses = append(misses, fmt.Sprintf("position %d: expected %s, got nothing", i, e.Tool))
			continue
		}
		cursor = found + 1
		if argsMatch(e, actual[found], cfg.DefaultArgsMatch) {
			sequenceHits++
			hits = append(hits, fmt.Sprintf("position %d: %s matched", i, e.Tool))
		} else {
			misses = append(misses, fmt.Sprintf("position %d: %s args mismatch", i, e.Tool))
		}
		if h, m, skipped := latencyAssertion(e, actual[found]); !skipped {
			latencyTotal++
			if h {
				latencyHits++
				hits = append(hits, fmt.Sprintf("position %d: %s within latency budget", i, e.Tool))
			} else if m {
				misses = append(misses, fmt.Sprintf("position %d: %s exceeded latency budget", i, e.Tool))
			}
		}
	}

	denom := len(cfg.Expected) + latencyTotal
	if denom == 0 {
		return 1, hits, misses
	}
	return float64(sequenceHits+latencyHits) / float64(denom), hits, misses
}

func matchExact(cfg agentv.ToolTrajectoryConfig, actual []agentv.ToolCall) (float64, []string, []string) {
	if len(cfg.Expected) == 0 {
		return 1, nil, nil
	}
	if len(cfg.Expected) != len(actual) {
		return float64(min(len(cfg.Expected), len(actual))) / float64(len(cfg.Expected)),
			nil,
			[]string{fmt.Sprintf("length mismatch: expected %d calls, got %d", len(cfg.Expected), len(actual))}
	}

	var hits, misses []string
	sequenceHits := 0
	latencyHits := 0
	latencyTotal := 0

	for i, e := range cfg.Expected {
		a := actual[i]
		if a.Tool != e.Tool {
			misses = append(misses, fmt.Sprintf("position %d: expected %s, got %s", i, e.Tool, a.Tool))
			continue
		}
		if argsMatch(e, a, cfg.DefaultArgsMatch) {
			sequenceHits++
			hits = append(hits, fmt.Sprintf("position %d: %s matched", i, e.Tool))
		} else {
			misses = append(misses, fmt.Sprintf("position %d: %s args mismatch", i, e.Tool))
		}
		if h, m, skipped := latencyAssertion(e, a); !skipped {
			latencyTotal++
			if h {
				latencyHits++
			} else if m {
				misses = append(misses, fmt.Sprintf("position %d: %s exceeded latency budget", i, e.Tool))
			}
		}
	}

	denom := len(cfg.Expected) + latencyTotal
	return float64(sequenceHits+latencyHits) / float64(denom), hits, misses
}

func matchSuperset(cfg agentv.ToolTrajectoryConfig, actual []agentv.ToolCall) (float64, []string, []string) {
	if len(cfg.Expected) == 0 {
		return 1, nil, nil
	}

	consumed := make([]bool, len(actual))
	var hits, misses []string
	sequenceHits := 0
	latencyHits := 0
	latencyTotal := 0

	for i, e := range cfg.Expected {
		found := -1
		for j, a := range actual {
			if consumed[j] || a.Tool != e.Tool {
				continue
			}
			if argsMatch(e, a, cfg.DefaultArgsMatch) {
				found = j
				break
			}
		}
		if found == -1 {
			misses = append(misses, fmt.Sprintf("expected %s not found", e.Tool))
			continue
		}
		consumed[found] = true
		sequenceHits++
		hits = append(hits, fmt.Sprintf("%s matched", e.Tool))
		if h, m, skipped := latencyAssertion(e, actual[found]); !skipped {
			latencyTotal++
			if h {
				latencyHits++
			} else if m {
				misses = append(misses, fmt.Sprintf("%s exceeded latency budget", e.Tool))
			}
		}
	}

	denom := len(cfg.Expected) + latencyTotal
	return float64(sequenceHits+latencyHits) / float64(denom), hits, misses
}

func matchSubset(cfg agentv.ToolTrajectoryConfig, actual []agentv.ToolCall) (float64, []string, []string) {
	if len(actual) == 0 {
		return 1, nil, nil
	}
	if len(cfg.Expected) == 0 {
		return 0, nil, []string{"no actual calls allowed against an empty expected set"}
	}

	var hits, misses []string
	allowedHits := 0
	for _, a := range actual {
		ok := false
		for _, e := range cfg.Expected {
			if e.Tool == a.Tool && argsMatch(e, a, cfg.DefaultArgsMatch) {
				ok = true
				break
			}
		}
		if ok {
			allowedHits++
			hits = append(hits, fmt.Sprintf("%s is an allowed call", a.Tool))
		} else {
			misses = append(misses, fmt.Sprintf("%s is not in the allowed set", a.Tool))
		}
	}
	return float64(allowedHits) / float64(len(actual)), hits, misses
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
