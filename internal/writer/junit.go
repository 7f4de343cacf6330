package writer

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/agentv/agentv"
)

// junitWriter buffers results grouped by dataset and emits a JUnit XML
// document on Close: one <testsuite> per dataset, one <testcase> per
// result, <failure> for non-pass verdicts, <error> when result.Error is
// set.
type junitWriter struct {
	path    string
	mu      sync.Mutex
	results []agentv.EvaluationResult
	closed  bool
}

func newJUnitWriter(path string) (*junitWriter, error) {
	return &junitWriter{path: path}, nil
}

func (w *junitWriter) Append(result agentv.EvaluationResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer: append after close")
	}
	w.results = append(w.results, result)
	return nil
}

func (w *junitWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	bySuite := map[string][]agentv.EvaluationResult{}
	for _, r := range w.results {
		name := r.Dataset
		if name == "" {
			name = "default"
		}
		bySuite[name] = append(bySuite[name], r)
	}

	suiteNames := make([]string, 0, len(bySuite))
	for name := range bySuite {
		suiteNames = append(suiteNames, name)
	}
	sort.Strings(suiteNames)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<testsuites>\n")
	for _, name := range suiteNames {
		writeSuite(&b, name, bySuite[name])
	}
	b.WriteString("</testsuites>\n")

	return os.WriteFile(w.path, []byte(b.String()), 0o644)
}

func writeSuite(b *strings.Builder, name string, results []agentv.EvaluationResult) {
	failures, errors := 0, 0
	for _, r := range results {
		if r.Error != "" {
			errors++
		} else if r.Verdict != agentv.VerdictPass {
			failures++
		}
	}

	fmt.Fprintf(b, "  <testsuite name=%s tests=\"%d\" failures=\"%d\" errors=\"%d\">\n",
		xmlAttr(name), len(results), failures, errors)
	for _, r := range results {
		writeCase(b, r)
	}
	b.WriteString("  </testsuite>\n")
}

func writeCase(b *strings.Builder, r agentv.EvaluationResult) {
	caseName := r.TestID
	if r.Attempt > 0 {
		caseName = fmt.Sprintf("%s#%d", caseName, r.Attempt)
	}
	fmt.Fprintf(b, "    <testcase name=%s classname=%s time=\"%.3f\">\n",
		xmlAttr(caseName), xmlAttr(r.Dataset), float64(durationMs(r))/1000)

	if r.Error != "" {
		fmt.Fprintf(b, "      <error message=%s></error>\n", xmlAttr(r.Error))
	} else if r.Verdict != agentv.VerdictPass {
		fmt.Fprintf(b, "      <failure message=%s>%s</failure>\n", xmlAttr(r.Reasoning), xmlEscape(strings.Join(r.Misses, "; ")))
	}

	b.WriteString("    </testcase>\n")
}

func durationMs(r agentv.EvaluationResult) int64 {
	if r.TraceSummary == nil {
		return 0
	}
	return r.TraceSummary.DurationMs
}

func xmlAttr(s string) string {
	return `"` + xmlEscape(s) + `"`
}

var xmlReplacer = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`'`, "&apos;",
	`"`, "&quot;",
)

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
