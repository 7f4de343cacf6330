// Package llmjudge implements the LLM-judge evaluator: freeform, checklist
// rubric, and score-range rubric modes, each rendering a prompt, invoking a
// judge provider, and parsing a structured JSON verdict back.
package llmjudge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/evaluator"
)

func init() {
	evaluator.Register(agentv.EvaluatorLLMJudge, build)
}

func build(cfg agentv.EvaluatorConfig, deps evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.LLMJudge == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "llmjudge.build",
			fmt.Errorf("evaluator %q missing llm_judge config", cfg.Name))
	}
	if cfg.LLMJudge.Mode == agentv.RubricScoreRange {
		for _, item := range cfg.LLMJudge.RubricItems {
			if item.Required && item.RequiredMinScore == nil {
				log.Warn().Str("evaluator", cfg.Name).Str("rubric", item.ID).
					Msg("llm_judge: required on a score-range rubric item is treated as required_min_score 10; set required_min_score instead")
			}
		}
	}
	return &Evaluator{cfg: *cfg.LLMJudge, judge: deps.JudgeProvider}, nil
}

// Evaluator is the LLM-judge evaluator.
type Evaluator struct {
	cfg   agentv.LLMJudgeConfig
	judge agentv.Provider
}

const maxParseRetries = 3

// Evaluate implements evaluator.Evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	judge := e.judge
	if judge == nil {
		judge = ec.JudgeProvider
	}
	if judge == nil {
		return agentv.NewScore(0, 1, false, nil, []string{"no judge provider configured"}, ""), nil
	}

	switch e.cfg.Mode {
	case agentv.RubricChecklist:
		return e.evaluateChecklist(ctx, ec, judge)
	case agentv.RubricScoreRange:
		return e.evaluateScoreRange(ctx, ec, judge)
	default:
		return e.evaluateFreeform(ctx, ec, judge)
	}
}

// resultsPlaceholder is substituted with the marshaled member-results map
// when this evaluator is used as a composite's llm_judge aggregator.
const resultsPlaceholder = "{{EVALUATOR_RESULTS_JSON}}"

// AggregateResults implements composite's resultsAggregator: the prompt is
// built from the aggregator config's own Criteria with resultsPlaceholder
// substituted, rather than from a transcript.
func (e *Evaluator) AggregateResults(ctx context.Context, _ agentv.EvaluationContext, results map[string]agentv.Score) (agentv.Score, error) {
	judge := e.judge
	if judge == nil {
		return agentv.NewScore(0, 1, false, nil, []string{"no judge provider configured"}, ""), nil
	}

	blob, err := json.Marshal(results)
	if err != nil {
		return agentv.NewScore(0, 1, false, nil, []string{fmt.Sprintf("could not serialize member results: %v", err)}, ""), nil
	}
	prompt := renderAggregatePrompt(e.cfg, string(blob))
	system := e.systemPrompt("Respond with strict JSON: {\"score\": number 0-1, \"hits\": string[], \"misses\": string[], \"reasoning\": string}.")

	var lastErr error
	for attempt := 0; attempt < maxParseRetries; attempt++ {
		raw, err := invokeJudge(ctx, judge, system, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		var parsed struct {
			Score     float64  `json:"score"`
			Hits      []string `json:"hits"`
			Misses    []string `json:"misses"`
			Reasoning string   `json:"reasoning"`
		}
		if err := parseJudgeJSON(raw, &parsed); err != nil {
			lastErr = err
			continue
		}
		hits, misses := agentv.CapHitsMisses(parsed.Hits, parsed.Misses, 4)
		return agentv.NewScore(parsed.Score, 1, false, hits, misses, parsed.Reasoning), nil
	}
	return agentv.NewScore(0, 1, false, nil,
		[]string{fmt.Sprintf("aggregator judge response did not parse after %d attempts: %v", maxParseRetries, lastErr)}, ""), nil
}

// renderAggregatePrompt substitutes resultsJSON for resultsPlaceholder in
// the aggregator's Criteria. If the placeholder is absent the results are
// appended so they're always surfaced to the judge.
func renderAggregatePrompt(cfg agentv.LLMJudgeConfig, resultsJSON string) string {
	template := cfg.Criteria
	if template == "" {
		template = "Aggregate the member evaluator results below into one overall score.\n\n" + resultsPlaceholder
	}
	if strings.Contains(template, resultsPlaceholder) {
		return strings.ReplaceAll(template, resultsPlaceholder, resultsJSON)
	}
	return template + "\n\nMember results:\n" + resultsJSON
}

func (e *Evaluator) evaluateFreeform(ctx context.Context, ec agentv.EvaluationContext, judge agentv.Provider) (agentv.Score, error) {
	prompt := renderFreeformPrompt(e.cfg, ec)
	system := e.systemPrompt("Respond with strict JSON: {\"score\": number 0-1, \"hits\": string[], \"misses\": string[], \"reasoning\": string}.")

	var lastErr error
	for attempt := 0; attempt < maxParseRetries; attempt++ {
		raw, err := invokeJudge(ctx, judge, system, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		var parsed struct {
			Score     float64  `json:"score"`
			Hits      []string `json:"hits"`
			Misses    []string `json:"misses"`
			Reasoning string   `json:"reasoning"`
		}
		if err := parseJudgeJSON(raw, &parsed); err != nil {
			lastErr = err
			continue
		}
		hits, misses := agentv.CapHitsMisses(parsed.Hits, parsed.Misses, 4)
		return agentv.NewScore(parsed.Score, 1, false, hits, misses, parsed.Reasoning), nil
	}
	return agentv.NewScore(0, 1, false, nil,
		[]string{fmt.Sprintf("judge response did not parse after %d attempts: %v", maxParseRetries, lastErr)}, ""), nil
}

func (e *Evaluator) evaluateChecklist(ctx context.Context, ec agentv.EvaluationContext, judge agentv.Provider) (agentv.Score, error) {
	prompt := renderChecklistPrompt(e.cfg, ec)
	system := e.systemPrompt("Respond with a strict JSON array, one entry per rubric item in order: [{\"id\": string, \"satisfied\": bool, \"reasoning\": string}].")

	var results []struct {
		ID        string `json:"id"`
		Satisfied bool   `json:"satisfied"`
		Reasoning string `json:"reasoning"`
	}
	var lastErr error
	for attempt := 0; attempt < maxParseRetries; attempt++ {
		raw, err := invokeJudge(ctx, judge, system, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		if err := parseJudgeJSON(raw, &results); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return agentv.NewScore(0, 1, false, nil,
			[]string{fmt.Sprintf("judge checklist response did not parse: %v", lastErr)}, ""), nil
	}

	var weightSum, weightedScore float64
	forceFail := false
	var hits, misses []string
	for i, item := range e.cfg.RubricItems {
		weight := item.Weight
		if weight <= 0 {
			weight = 1
		}
		weightSum += weight

		satisfied := false
		reasoning := ""
		if i < len(results) {
			satisfied = results[i].Satisfied
			reasoning = results[i].Reasoning
		}
		if satisfied {
			weightedScore += weight
			hits = append(hits, describeRubric(item, reasoning))
		} else {
			misses = append(misses, describeRubric(item, reasoning))
			if item.Required {
				forceFail = true
			}
		}
	}

	hits, misses = agentv.CapHitsMisses(hits, misses, 4)
	score := 0.0
	if weightSum > 0 {
		score = weightedScore / weightSum
	}
	return agentv.NewScore(score, max(len(e.cfg.RubricItems), 1), forceFail, hits, misses, ""), nil
}

func (e *Evaluator) evaluateScoreRange(ctx context.Context, ec agentv.EvaluationContext, judge agentv.Provider) (agentv.Score, error) {
	prompt := renderScoreRangePrompt(e.cfg, ec)
	system := e.systemPrompt("Respond with a strict JSON array, one entry per rubric item in order: [{\"id\": string, \"score\": integer 0-10, \"reasoning\": string}].")

	var results []struct {
		ID        string `json:"id"`
		Score     int    `json:"score"`
		Reasoning string `json:"reasoning"`
	}
	var lastErr error
	for attempt := 0; attempt < maxParseRetries; attempt++ {
		raw, err := invokeJudge(ctx, judge, system, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		if err := parseJudgeJSON(raw, &results); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return agentv.NewScore(0, 1, false, nil,
			[]string{fmt.Sprintf("judge score-range response did not parse: %v", lastErr)}, ""), nil
	}

	var weightSum, weightedScore float64
	forceFail := false
	var hits, misses []string
	for i, item := range e.cfg.RubricItems {
		weight := item.Weight
		if weight <= 0 {
			weight = 1
		}
		weightSum += weight

		raw := 0
		reasoning := ""
		if i < len(results) {
			raw = results[i].Score
			reasoning = results[i].Reasoning
		}
		normalized := float64(raw) / 10
		weightedScore += weight * normalized

		minScore := 10
		if item.RequiredMinScore != nil {
			minScore = *item.RequiredMinScore
		} else if item.Required {
			minScore = 10
		}
		unmet := (item.RequiredMinScore != nil || item.Required) && raw < minScore

		desc := rangeDescription(item, raw)
		label := describeRubric(item, reasoning)
		if desc != "" {
			label = fmt.Sprintf("%s (%s)", label, desc)
		}
		if unmet {
			forceFail = true
			misses = append(misses, label)
		} else {
			hits = append(hits, label)
		}
	}

	hits, misses = agentv.CapHitsMisses(hits, misses, 4)
	score := 0.0
	if weightSum > 0 {
		score = weightedScore / weightSum
	}
	return agentv.NewScore(score, max(len(e.cfg.RubricItems), 1), forceFail, hits, misses, ""), nil
}

func rangeDescription(item agentv.RubricItem, score int) string {
	for _, r := range item.ScoreRanges {
		if score >= r.ScoreRange[0] && score <= r.ScoreRange[1] {
			return r.Description
		}
	}
	return ""
}

func describeRubric(item agentv.RubricItem, reasoning string) string {
	id := item.ID
	if id == "" {
		id = item.Description
	}
	if reasoning == "" {
		return id
	}
	return fmt.Sprintf("%s: %s", id, reasoning)
}

func (e *Evaluator) systemPrompt(schemaNote string) string {
	if e.cfg.SystemPrompt != "" {
		return e.cfg.SystemPrompt + "\n\n" + schemaNote
	}
	return "You are an exacting evaluator judging an AI agent's response against stated criteria. " + schemaNote
}

func parseJudgeJSON(raw string, out any) error {
	extracted, err := extractJSON(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(extracted), out)
}

func invokeJudge(ctx context.Context, judge agentv.Provider, systemPrompt, prompt string) (string, error) {
	if lmp, ok := judge.(agentv.LanguageModelProvider); ok {
		if lm, ok := lmp.AsLanguageModel(); ok {
			text, _, _, err := lm.Complete(ctx, systemPrompt, prompt, 2048)
			return text, err
		}
	}
	resp, err := judge.Invoke(ctx, agentv.ProviderRequest{
		SystemPrompt:    systemPrompt,
		Question:        prompt,
		MaxOutputTokens: 2048,
	})
	if err != nil {
		return "", err
	}
	for i := len(resp.OutputMessages) - 1; i >= 0; i-- {
		if resp.OutputMessages[i].Role != agentv.RoleAssistant {
			continue
		}
		if text, ok := resp.OutputMessages[i].TextContent(); ok {
			return text, nil
		}
	}
	return "", fmt.Errorf("judge provider returned no assistant text")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func lastAssistantText(messages []agentv.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != agentv.RoleAssistant {
			continue
		}
		if text, ok := messages[i].TextContent(); ok {
			return text
		}
	}
	return ""
}

func renderContext(ec agentv.EvaluationContext) map[string]string {
	refBytes, _ := json.Marshal(ec.Case.ReferenceAnswer())
	inputBytes, _ := json.Marshal(ec.Case.InputMessages)
	expectedBytes, _ := json.Marshal(ec.Case.ExpectedMessages)
	outputBytes, _ := json.Marshal(ec.OutputMessages)

	return map[string]string{
		"question":          lastInputText(ec.Case.InputMessages),
		"criteria":           ec.Case.Criteria,
		"candidate_answer":  lastAssistantText(ec.OutputMessages),
		"reference_answer":  string(refBytes),
		"input_messages":    string(inputBytes),
		"expected_messages": string(expectedBytes),
		"output_messages":   string(outputBytes),
		"file_changes":      strings.Join(ec.FileChanges, "\n"),
	}
}

func lastInputText(messages []agentv.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if text, ok := messages[i].TextContent(); ok {
			return text
		}
	}
	return ""
}

func renderFreeformPrompt(cfg agentv.LLMJudgeConfig, ec agentv.EvaluationContext) string {
	vars := renderContext(ec)
	criteria := cfg.Criteria
	if criteria == "" {
		criteria = vars["criteria"]
	}
	return fmt.Sprintf(
		"Question:\n%s\n\nCriteria:\n%s\n\nReference answer:\n%s\n\nCandidate answer:\n%s\n\nEvaluate whether the candidate answer satisfies the criteria.",
		vars["question"], criteria, vars["reference_answer"], vars["candidate_answer"])
}

func renderChecklistPrompt(cfg agentv.LLMJudgeConfig, ec agentv.EvaluationContext) string {
	vars := renderContext(ec)
	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\nCandidate answer:\n%s\n\nRubric:\n", vars["question"], vars["candidate_answer"])
	for _, item := range cfg.RubricItems {
		id := item.ID
		if id == "" {
			id = item.Description
		}
		req := ""
		if item.Required {
			req = ", REQUIRED"
		}
		fmt.Fprintf(&b, "[%s] %s (weight=%.2g%s)\n", id, item.Description, item.Weight, req)
	}
	return b.String()
}

func renderScoreRangePrompt(cfg agentv.LLMJudgeConfig, ec agentv.EvaluationContext) string {
	vars := renderContext(ec)
	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\nCandidate answer:\n%s\n\nRubric (score each 0-10):\n", vars["question"], vars["candidate_answer"])
	for _, item := range cfg.RubricItems {
		id := item.ID
		if id == "" {
			id = item.Description
		}
		fmt.Fprintf(&b, "[%s] %s\n", id, item.Description)
		for _, r := range item.ScoreRanges {
			fmt.Fprintf(&b, "  %d-%d: %s\n", r.ScoreRange[0], r.ScoreRange[1], r.Description)
		}
	}
	return b.String()
}
