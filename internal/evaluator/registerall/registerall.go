// Package registerall blank-imports every concrete evaluator package so
// their init functions register with the evaluator factory. Importers that
// need the full set (the dispatcher's default wiring, cmd/agentv) import
// this package for its side effects; packages that only need a subset
// (e.g. a test exercising one evaluator kind) import that kind directly.
package registerall

import (
	_ "github.com/agentv/agentv/internal/evaluator/agentjudge"
	_ "github.com/agentv/agentv/internal/evaluator/codejudge"
	_ "github.com/agentv/agentv/internal/evaluator/composite"
	_ "github.com/agentv/agentv/internal/evaluator/fieldaccuracy"
	_ "github.com/agentv/agentv/internal/evaluator/gates"
	_ "github.com/agentv/agentv/internal/evaluator/llmjudge"
	_ "github.com/agentv/agentv/internal/evaluator/rubric"
	_ "github.com/agentv/agentv/internal/evaluator/trajectory"
)
