// Package fieldaccuracy implements the field-accuracy evaluator: it
// compares extracted fields of a candidate's structured output against
// expected values by exact, numeric-tolerance, or date match kinds.
package fieldaccuracy

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/evaluator"
	"github.com/agentv/agentv/internal/evaluator/evalutil"
)

func init() {
	evaluator.Register(agentv.EvaluatorFieldAccuracy, build)
}

func build(cfg agentv.EvaluatorConfig, _ evaluator.Deps) (evaluator.Evaluator, error) {
	if cfg.FieldAccuracy == nil {
		return nil, agentv.NewError(agentv.KindInvalidConfig, "fieldaccuracy.build",
			fmt.Errorf("evaluator %q missing field_accuracy config", cfg.Name))
	}
	return &Evaluator{cfg: *cfg.FieldAccuracy}, nil
}

// Evaluator is the field-accuracy comparator.
type Evaluator struct {
	cfg agentv.FieldAccuracyConfig
}

// Evaluate implements evaluator.Evaluator.
func (e *Evaluator) Evaluate(_ context.Context, ec agentv.EvaluationContext) (agentv.Score, error) {
	candidate, err := candidateObject(ec)
	if err != nil {
		return agentv.NewScore(0, 1, false, nil, []string{err.Error()}, ""), nil
	}

	var hits, misses []string
	var weightSum, weightedScore float64
	allHit := true

	for _, f := range e.cfg.Fields {
		exp := f.Expected
		if isMissing(exp) {
			continue
		}

		weight := f.Weight
		if weight <= 0 {
			weight = 1
		}

		actual, ok := evalutil.ResolvePath(candidate, f.Path)
		if !ok {
			if f.Required {
				allHit = false
				misses = append(misses, fmt.Sprintf("%s: missing in candidate", f.Path))
				weightSum += weight
			}
			continue
		}

		ok, detail := matchField(f, exp, actual)
		weightSum += weight
		if ok {
			weightedScore += weight
			hits = append(hits, fmt.Sprintf("%s: %s", f.Path, detail))
		} else {
			allHit = false
			misses = append(misses, fmt.Sprintf("%s: %s", f.Path, detail))
		}
	}

	hits, misses = agentv.CapHitsMisses(hits, misses, 4)

	var score float64
	switch e.cfg.Aggregation {
	case "all_or_nothing":
		if allHit {
			score = 1
		}
	default:
		if weightSum > 0 {
			score = weightedScore / weightSum
		} else {
			score = 1
		}
	}

	return agentv.NewScore(score, max(len(e.cfg.Fields), 1), false, hits, misses, ""), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isMissing(v any) bool {
	return v == nil
}

func candidateObject(ec agentv.EvaluationContext) (any, error) {
	for i := len(ec.OutputMessages) - 1; i >= 0; i-- {
		m := ec.OutputMessages[i]
		if m.Role != agentv.RoleAssistant {
			continue
		}
		if text, ok := m.TextContent(); ok {
			var v any
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				return nil, fmt.Errorf("candidate answer is not valid JSON: %w", err)
			}
			return v, nil
		}
		if m.Content != nil {
			return m.Content, nil
		}
	}
	return nil, fmt.Errorf("no assistant output to evaluate")
}

func matchField(f agentv.FieldSpec, expected, actual any) (bool, string) {
	switch f.Kind {
	case agentv.FieldMatchNumericTolerance:
		return matchNumericTolerance(f, expected, actual)
	case agentv.FieldMatchDate:
		return matchDate(f.Formats, expected, actual)
	default:
		return matchExact(expected, actual)
	}
}

func matchExact(expected, actual any) (bool, string) {
	if evalutil.DeepEqual(expected, actual) {
		return true, "exact match"
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func matchNumericTolerance(f agentv.FieldSpec, expected, actual any) (bool, string) {
	ef, eok := toFloat(expected)
	af, aok := toFloat(actual)
	if !eok || !aok {
		return false, fmt.Sprintf("expected numeric %v, got %v", expected, actual)
	}
	diff := math.Abs(ef - af)
	tol := f.Tolerance
	if ef != 0 {
		if diff/math.Abs(ef) <= tol {
			return true, fmt.Sprintf("within relative tolerance %.4g", tol)
		}
	}
	if diff <= tol {
		return true, fmt.Sprintf("within absolute tolerance %.4g", tol)
	}
	return false, fmt.Sprintf("|%.6g - %.6g| = %.6g exceeds tolerance %.4g", ef, af, diff, tol)
}

func toFloat(v any) (float64, bool) {
	if f, ok := evalutil.AsNumber(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// dateLayouts are the unambiguous defaults tried when a field supplies no
// Formats of its own. Slash-separated numeric dates are deliberately
// excluded here since MM/DD and DD/MM can't both be tried in a fixed order
// without silently guessing; those fall to parseSlashDateByMagnitude instead.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02-Jan-2006",
}

var slashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

func matchDate(formats []string, expected, actual any) (bool, string) {
	et, eok := parseDate(formats, expected)
	at, aok := parseDate(formats, actual)
	if !eok || !aok {
		return false, fmt.Sprintf("could not parse date from %v / %v", expected, actual)
	}
	if et.Year() == at.Year() && et.Month() == at.Month() && et.Day() == at.Day() {
		return true, "date match"
	}
	return false, fmt.Sprintf("expected date %s, got %s", et.Format("2006-01-02"), at.Format("2006-01-02"))
}

// parseDate resolves a date string using, in order: the field's own
// Formats (if supplied), the unambiguous default layouts, and finally —
// only when the field supplies no Formats, and only for an
// otherwise-ambiguous slash-separated numeric date — a heuristic that picks
// whichever of the two leading components exceeds 12 as the day.
func parseDate(formats []string, v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if len(formats) == 0 {
		if t, ok := parseSlashDateByMagnitude(s); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseSlashDateByMagnitude resolves "A/B/YYYY" by assuming month-first
// (US convention) unless the first component can't be a month, in which
// case it must be the day.
func parseSlashDateByMagnitude(s string) (time.Time, bool) {
	m := slashDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	a, err1 := strconv.Atoi(m[1])
	b, err2 := strconv.Atoi(m[2])
	year, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}

	month, day := a, b
	if a > 12 {
		month, day = b, a
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}
