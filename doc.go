// Package agentv evaluates AI-agent outputs against declarative test suites.
//
// A suite of EvalCase records is dispatched to a configured target (an LLM
// endpoint, a CLI agent, a headless editor session, or a static trace). Each
// target reply is collected as a ProviderResponse and scored by one or more
// Evaluators into a Score, which the dispatcher merges into an
// EvaluationResult and streams to output writers.
//
// This package holds the data model and the Provider/Evaluator contracts.
// The scheduler lives in internal/dispatcher, concrete evaluators in
// internal/evaluator/*, output formats in internal/writer, and target
// resolution in internal/target.
package agentv
