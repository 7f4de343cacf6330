// Package evaluator defines the Evaluator contract and the factory that
// builds concrete evaluators from an agentv.EvaluatorConfig tagged union.
package evaluator

import (
	"context"
	"fmt"

	"github.com/agentv/agentv"
)

// Evaluator scores one EvaluationContext. Implementations may open
// subprocesses or HTTP connections but must release them on every exit
// path, including ctx cancellation.
type Evaluator interface {
	Evaluate(ctx context.Context, ec agentv.EvaluationContext) (agentv.Score, error)
}

// Builder constructs an Evaluator from its config. Registered per tag in
// the package-level registry by each evaluator sub-package's init.
type Builder func(cfg agentv.EvaluatorConfig, deps Deps) (Evaluator, error)

// Deps carries the collaborators an evaluator may need beyond its own
// config: a judge provider, the target resolver, and a factory hook so
// composite members can recursively build sub-evaluators.
type Deps struct {
	JudgeProvider  agentv.Provider
	TargetResolver agentv.TargetResolver
	Build          func(cfg agentv.EvaluatorConfig, deps Deps) (Evaluator, error)
}

var registry = map[string]Builder{}

// Register associates a tag (one of the agentv.Evaluator* constants) with
// a Builder. Called from each evaluator sub-package's init function.
func Register(tag string, b Builder) {
	registry[tag] = b
}

// Build dispatches cfg.Type to the registered Builder. Unknown tags fail
// with agentv.KindUnknownEvaluator.
func Build(cfg agentv.EvaluatorConfig, deps Deps) (Evaluator, error) {
	if deps.Build == nil {
		deps.Build = Build
	}
	b, ok := registry[cfg.Type]
	if !ok {
		return nil, agentv.NewError(agentv.KindUnknownEvaluator, "evaluator.Build",
			fmt.Errorf("unknown evaluator kind %q", cfg.Type))
	}
	return b(cfg, deps)
}
