// Package dispatcher implements the evaluation dispatcher: a
// bounded-concurrency scheduler that drives (case, attempt) work items
// across a resolved target, runs each case's evaluator chain, and streams
// results to writers as they complete.
package dispatcher

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/evaluator"
	"github.com/agentv/agentv/internal/writer"
)

// Options configures one dispatcher run.
type Options struct {
	Workers          int
	Trials           int
	FailFast         bool
	Verbose          bool
	AttemptTimeout   time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	CancelGrace      time.Duration
	// ProviderBatchSize, when > 0 and the resolved provider implements
	// agentv.BatchProvider, batches up to this many ready work items per
	// InvokeBatch call instead of invoking them one at a time.
	ProviderBatchSize int
}

func (o *Options) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Trials <= 0 {
		o.Trials = 1
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 5 * time.Minute
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 500 * time.Millisecond
	}
	if o.CancelGrace <= 0 {
		o.CancelGrace = 5 * time.Second
	}
}

const maxRetryBackoff = 30 * time.Second

// Dispatcher drives a suite of EvalCase records against one resolved
// provider and emits an EvaluationResult per (case, attempt).
type Dispatcher struct {
	provider       agentv.Provider
	targetName     string
	judgeProvider  agentv.Provider
	targetResolver agentv.TargetResolver
	opts           Options
	out            *writer.Multi
}

// New builds a Dispatcher. provider is the resolved target under test;
// judgeProvider (may be nil) backs llm_judge/agent_judge/code_judge
// evaluators unless overridden per evaluator config.
func New(targetName string, provider, judgeProvider agentv.Provider, resolver agentv.TargetResolver, out *writer.Multi, opts Options) *Dispatcher {
	opts.setDefaults()
	if interactive, ok := provider.(agentv.InteractiveProvider); ok && interactive.RequiresSingleWindow() {
		opts.Workers = 1
	}
	return &Dispatcher{
		provider:       provider,
		targetName:     targetName,
		judgeProvider:  judgeProvider,
		targetResolver: resolver,
		opts:           opts,
		out:            out,
	}
}

type workItem struct {
	Case    agentv.EvalCase
	Attempt int
}

// Run schedules cases × Trials work items across Options.Workers workers,
// streaming each completed EvaluationResult to the dispatcher's writers.
// Cancelling ctx stops new work items from starting; in-flight items get
// Options.CancelGrace to unwind before Run returns.
func (d *Dispatcher) Run(ctx context.Context, cases []agentv.EvalCase) error {
	items := make([]workItem, 0, len(cases)*d.opts.Trials)
	for _, c := range cases {
		for attempt := 0; attempt < d.opts.Trials; attempt++ {
			items = append(items, workItem{Case: c, Attempt: attempt})
		}
	}

	queue := make(chan workItem, len(items))
	for _, it := range items {
		queue <- it
	}
	close(queue)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	batchProvider, batching := d.provider.(agentv.BatchProvider)
	batching = batching && d.opts.ProviderBatchSize > 0

	var failFastTripped int32
	emit := func(result agentv.EvaluationResult) bool {
		if runCtx.Err() != nil {
			return false
		}
		if err := d.out.Append(result); err != nil {
			log.Error().Err(err).Msg("writer append failed, retrying once")
			if err := d.out.Append(result); err != nil {
				log.Error().Err(err).Msg("writer append failed twice, aborting run")
				cancel()
				return false
			}
		}
		if d.opts.FailFast && result.Verdict == agentv.VerdictFail {
			if atomic.CompareAndSwapInt32(&failFastTripped, 0, 1) {
				cancel()
			}
		}
		return true
	}

	var wg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if runCtx.Err() != nil {
					return
				}
				if d.opts.FailFast && atomic.LoadInt32(&failFastTripped) == 1 {
					return
				}

				var batch []workItem
				if batching {
					batch = drain(queue, d.opts.ProviderBatchSize)
				} else if item, ok := <-queue; ok {
					batch = []workItem{item}
				}
				if len(batch) == 0 {
					return
				}

				var results []agentv.EvaluationResult
				if len(batch) > 1 {
					results = d.runBatch(runCtx, batchProvider, batch)
				} else {
					results = []agentv.EvaluationResult{d.runOne(runCtx, batch[0])}
				}

				for _, result := range results {
					if !emit(result) {
						return
					}
				}
			}
		}()
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-ctx.Done():
		select {
		case <-waitDone:
		case <-time.After(d.opts.CancelGrace):
			log.Warn().Msg("dispatcher: workers did not unwind within the cancellation grace period")
		}
	}

	return nil
}

// drain pulls up to n items already queued on ch without blocking past the
// first receive, so a batch never waits indefinitely for stragglers.
func drain(ch <-chan workItem, n int) []workItem {
	first, ok := <-ch
	if !ok {
		return nil
	}
	batch := []workItem{first}
	for len(batch) < n {
		select {
		case item, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, item)
		default:
			return batch
		}
	}
	return batch
}

// runBatch invokes batchProvider.InvokeBatch for every item whose workspace
// setup succeeds, aligns the reply slice positionally against the requests
// it sent, and fails just the items past the end of a short reply with
// KindProviderProtocol — per-id failure granularity rather than failing the
// whole batch when the provider comes back short.
func (d *Dispatcher) runBatch(ctx context.Context, batchProvider agentv.BatchProvider, batch []workItem) []agentv.EvaluationResult {
	results := make([]agentv.EvaluationResult, len(batch))
	reqs := make([]agentv.ProviderRequest, len(batch))
	workspaces := make([]string, len(batch))
	teardowns := make([]func(), len(batch))
	ready := make([]bool, len(batch))

	for i, item := range batch {
		results[i] = agentv.EvaluationResult{
			Timestamp: time.Now().UTC(),
			TraceID:   uuid.NewString(),
			TestID:    item.Case.ID,
			Dataset:   item.Case.Dataset,
			Target:    d.targetName,
			Attempt:   item.Attempt,
		}
		if item.Attempt > 0 {
			results[i].TrialOf = &agentv.TrialRef{TestID: item.Case.ID, Attempt: 0}
		}
		ws, teardown, err := setupWorkspace(ctx, item.Case.Workspace)
		if err != nil {
			results[i].Error = err.Error()
			results[i].Verdict = agentv.VerdictFail
			continue
		}
		workspaces[i], teardowns[i] = ws, teardown
		reqs[i] = agentv.ProviderRequest{
			EvalCaseID:      item.Case.ID,
			Attempt:         item.Attempt,
			Question:        firstUserText(item.Case.InputMessages),
			PriorMessages:   item.Case.InputMessages,
			MaxOutputTokens: 4096,
		}
		ready[i] = true
	}
	defer func() {
		for _, t := range teardowns {
			if t != nil {
				t()
			}
		}
	}()

	readyReqs := make([]agentv.ProviderRequest, 0, len(reqs))
	for i, r := range ready {
		if r {
			readyReqs = append(readyReqs, reqs[i])
		}
	}

	resps, err := batchProvider.InvokeBatch(ctx, readyReqs)
	if err != nil {
		for i, r := range ready {
			if r {
				results[i].Error = err.Error()
				results[i].Verdict = agentv.VerdictFail
			}
		}
		return results
	}

	// InvokeBatch must return one response per request, in request order
	// (the order readyReqs was built in, i.e. batch order skipping
	// workspace-setup failures); a short reply fails only the ids past the
	// end rather than the whole batch.
	idx := 0
	for i, item := range batch {
		if !ready[i] {
			continue
		}
		if idx >= len(resps) {
			results[i].Error = agentv.NewError(agentv.KindProviderProtocol, "dispatcher.runBatch",
				fmt.Errorf("batch response missing eval case %q", item.Case.ID)).Error()
			results[i].Verdict = agentv.VerdictFail
			idx++
			continue
		}
		results[i] = d.finishResult(ctx, item, results[i], workspaces[i], resps[idx])
		idx++
	}
	return results
}

func (d *Dispatcher) runOne(ctx context.Context, item workItem) agentv.EvaluationResult {
	result := agentv.EvaluationResult{
		Timestamp: time.Now().UTC(),
		TraceID:   uuid.NewString(),
		TestID:    item.Case.ID,
		Dataset:   item.Case.Dataset,
		Target:    d.targetName,
		Attempt:   item.Attempt,
	}
	if item.Attempt > 0 {
		result.TrialOf = &agentv.TrialRef{TestID: item.Case.ID, Attempt: 0}
	}

	workspacePath, teardown, err := setupWorkspace(ctx, item.Case.Workspace)
	if err != nil {
		result.Error = err.Error()
		result.Verdict = agentv.VerdictFail
		return result
	}
	defer teardown()

	resp, err := d.invokeWithRetry(ctx, item)
	if err != nil {
		result.Error = err.Error()
		result.Verdict = agentv.VerdictFail
		return result
	}

	return d.finishResult(ctx, item, result, workspacePath, resp)
}

// finishResult runs the evaluator chain against resp and merges the scores
// into result, the shared tail of both the single-item and batched paths.
func (d *Dispatcher) finishResult(ctx context.Context, item workItem, result agentv.EvaluationResult, workspacePath string, resp agentv.ProviderResponse) agentv.EvaluationResult {
	traceSummary := agentv.SummarizeTrace(resp.OutputMessages, 0, 0, resp)

	ec := agentv.EvaluationContext{
		Case:           item.Case,
		Candidate:      resp,
		Target:         d.targetName,
		Attempt:        item.Attempt,
		Provider:       d.provider,
		JudgeProvider:  d.judgeProvider,
		OutputMessages: resp.OutputMessages,
		TraceSummary:   &traceSummary,
		WorkspacePath:  workspacePath,
		TargetResolver: d.targetResolver,
	}

	scores, mergeErr := d.runEvaluators(ctx, item.Case.EvaluatorConfigs, ec)
	if mergeErr != nil {
		result.Error = mergeErr.Error()
		result.Verdict = agentv.VerdictFail
		return result
	}

	merged := mergeScores(scores)
	result.Score = merged.Score
	result.Verdict = merged.Verdict
	result.Hits = merged.Hits
	result.Misses = merged.Misses
	result.Reasoning = merged.Reasoning
	result.EvaluatorScores = scores
	result.TraceSummary = &traceSummary
	result.OutputMessages = resp.OutputMessages
	result.CandidateAnswer = lastAssistantContent(resp.OutputMessages)

	return result
}

func (d *Dispatcher) runEvaluators(ctx context.Context, configs []agentv.EvaluatorConfig, ec agentv.EvaluationContext) ([]agentv.NamedScore, error) {
	scores := make([]agentv.NamedScore, 0, len(configs))
	deps := evaluator.Deps{JudgeProvider: d.judgeProvider, TargetResolver: d.targetResolver}

	for _, cfg := range configs {
		ev, err := evaluator.Build(cfg, deps)
		if err != nil {
			return nil, err
		}
		name := cfg.Name
		if name == "" {
			name = cfg.Type
		}
		ec.Evaluator = name

		sc, err := ev.Evaluate(ctx, ec)
		if err != nil {
			sc = agentv.NewScore(0, 1, false, nil, []string{err.Error()}, "")
		}
		weight := cfg.Weight
		if weight <= 0 {
			weight = float64(sc.ExpectedAspectCount)
		}
		scores = append(scores, agentv.NamedScore{Name: name, Type: cfg.Type, Score: sc, Weight: weight})
	}

	return scores, nil
}

func mergeScores(scores []agentv.NamedScore) agentv.Score {
	if len(scores) == 0 {
		return agentv.NewScore(1, 1, false, nil, nil, "")
	}

	var weightSum, weighted float64
	var hits, misses []string
	forceFail := false
	for _, ns := range scores {
		w := ns.Weight
		if w <= 0 {
			w = 1
		}
		weightSum += w
		weighted += w * ns.Score.Score
		if ns.Score.Verdict == agentv.VerdictFail {
			forceFail = forceFail || isGateForcedFail(ns)
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
	return agentv.NewScore(score, 1, forceFail, hits, misses, "")
}

// isGateForcedFail reports whether a member's fail verdict was forced
// (required-rubric or gate) rather than merely a low score, so the merge
// only propagates an explicit gate failure, not every low-scoring member.
// A gate evaluator's fail is recognised by its type; any other member's
// fail counts as forced only when its score alone would not have failed.
func isGateForcedFail(ns agentv.NamedScore) bool {
	if ns.Score.Verdict != agentv.VerdictFail {
		return false
	}
	switch ns.Type {
	case agentv.EvaluatorLatency, agentv.EvaluatorCost, agentv.EvaluatorTokenUsage, agentv.EvaluatorExecutionMetrics:
		return true
	}
	return ns.Score.Score >= agentv.BorderlineThreshold
}

func lastAssistantContent(messages []agentv.Message) any {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != agentv.RoleAssistant {
			continue
		}
		if messages[i].Content != nil {
			return messages[i].Content
		}
		if len(messages[i].ToolCalls) > 0 {
			return messages[i].ToolCalls
		}
	}
	return nil
}

func (d *Dispatcher) invokeWithRetry(ctx context.Context, item workItem) (agentv.ProviderResponse, error) {
	req := agentv.ProviderRequest{
		EvalCaseID:      item.Case.ID,
		Attempt:         item.Attempt,
		Question:        firstUserText(item.Case.InputMessages),
		PriorMessages:    item.Case.InputMessages,
		MaxOutputTokens: 4096,
	}

	maxRetries := d.opts.MaxRetries
	if !d.provider.RetrySafe() {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
		resp, err := d.provider.Invoke(attemptCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == maxRetries {
			return agentv.ProviderResponse{}, err
		}

		backoff := time.Duration(math.Min(
			float64(d.opts.RetryBaseDelay)*math.Pow(2, float64(attempt)),
			float64(maxRetryBackoff),
		))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return agentv.ProviderResponse{}, ctx.Err()
		}
	}
	return agentv.ProviderResponse{}, lastErr
}

func isRetryable(err error) bool {
	return agentv.IsKind(err, agentv.KindProviderTimeout) || agentv.IsKind(err, agentv.KindBackendUnavailable)
}

func firstUserText(messages []agentv.Message) string {
	for _, m := range messages {
		if m.Role != agentv.RoleUser {
			continue
		}
		if text, ok := m.TextContent(); ok {
			return text
		}
	}
	return ""
}

func setupWorkspace(ctx context.Context, spec *agentv.WorkspaceSpec) (path string, teardown func(), err error) {
	if spec == nil {
		return "", func() {}, nil
	}
	dir, err := materializeWorkspace(ctx, *spec)
	if err != nil {
		return "", func() {}, agentv.NewError(agentv.KindWorkspace, "dispatcher.setupWorkspace", err)
	}
	return dir, func() { teardownWorkspace(ctx, *spec, dir) }, nil
}

func materializeWorkspace(ctx context.Context, spec agentv.WorkspaceSpec) (string, error) {
	dir, err := newWorkspaceDir()
	if err != nil {
		return "", err
	}
	if spec.TemplatePath != "" {
		if err := copyTemplate(spec.TemplatePath, dir); err != nil {
			return "", err
		}
	}
	if spec.SetupScript != "" {
		if err := runScript(ctx, spec.SetupScript, dir, spec.EnvOverrides); err != nil {
			return "", fmt.Errorf("setup_script: %w", err)
		}
	}
	return dir, nil
}

func teardownWorkspace(ctx context.Context, spec agentv.WorkspaceSpec, dir string) {
	if spec.TeardownScript != "" {
		if err := runScript(ctx, spec.TeardownScript, dir, spec.EnvOverrides); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("workspace teardown script failed")
		}
	}
	if err := removeWorkspaceDir(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("workspace cleanup failed")
	}
}
