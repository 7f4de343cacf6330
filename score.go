package agentv

// Verdict is the categorical outcome derived from a Score.
type Verdict string

const (
	VerdictPass       Verdict = "pass"
	VerdictBorderline Verdict = "borderline"
	VerdictFail       Verdict = "fail"
)

// Default verdict thresholds (§3): score >= 0.8 passes, >= 0.6 is
// borderline, otherwise fail. A gate evaluator may force VerdictFail
// regardless of score (e.g. a failed required rubric item).
const (
	PassThreshold       = 0.8
	BorderlineThreshold = 0.6
)

// Clamp01 clamps a score into [0, 1], the invariant every Score and
// EvaluationResult must satisfy.
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// VerdictFromScore derives the default verdict for a clamped score.
func VerdictFromScore(score float64) Verdict {
	score = Clamp01(score)
	switch {
	case score >= PassThreshold:
		return VerdictPass
	case score >= BorderlineThreshold:
		return VerdictBorderline
	default:
		return VerdictFail
	}
}

// Score is what a single evaluator produces for one EvaluationContext.
type Score struct {
	Score                float64        `json:"score"`
	Verdict              Verdict        `json:"verdict"`
	Hits                 []string       `json:"hits,omitempty"`
	Misses               []string       `json:"misses,omitempty"`
	ExpectedAspectCount  int            `json:"expected_aspect_count"`
	Reasoning            string         `json:"reasoning,omitempty"`
	EvaluatorRawRequest  any            `json:"evaluator_raw_request,omitempty"`
	Details              any            `json:"details,omitempty"`
	ChildScores          []NamedScore   `json:"child_scores,omitempty"`
}

// NamedScore tags a Score with the evaluator (or composite member) that
// produced it, used for EvaluationResult.EvaluatorScores and for a
// composite's ChildScores.
type NamedScore struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Score  Score   `json:"score"`
	Weight float64 `json:"weight,omitempty"`
}

// NewScore builds a Score with the invariants enforced: the raw score is
// clamped to [0,1], expectedAspectCount floors at 1, and the verdict is
// derived unless forceFail is set.
func NewScore(raw float64, expectedAspectCount int, forceFail bool, hits, misses []string, reasoning string) Score {
	clamped := Clamp01(raw)
	if expectedAspectCount < 1 {
		expectedAspectCount = 1
	}
	verdict := VerdictFromScore(clamped)
	if forceFail {
		verdict = VerdictFail
	}
	return Score{
		Score:               clamped,
		Verdict:             verdict,
		Hits:                hits,
		Misses:              misses,
		ExpectedAspectCount: expectedAspectCount,
		Reasoning:           reasoning,
	}
}

// CapHitsMisses truncates hits/misses to at most n entries each, the
// terseness rule evaluators in §4.D/§4.E apply ("capped at four").
func CapHitsMisses(hits, misses []string, n int) ([]string, []string) {
	return capSlice(hits, n), capSlice(misses, n)
}

func capSlice(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
