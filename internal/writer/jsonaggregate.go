package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/agentv/agentv"
)

// jsonStats summarizes a run for the JSON aggregate writer's close payload.
type jsonStats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"`
}

type jsonAggregate struct {
	Stats   jsonStats                 `json:"stats"`
	Results []agentv.EvaluationResult `json:"results"`
}

// jsonWriter buffers every result in memory and emits the aggregate object
// only on Close, since the JSON format cannot be streamed incrementally.
type jsonWriter struct {
	path    string
	mu      sync.Mutex
	results []agentv.EvaluationResult
	closed  bool
}

func newJSONWriter(path string) (*jsonWriter, error) {
	return &jsonWriter{path: path}, nil
}

func (w *jsonWriter) Append(result agentv.EvaluationResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer: append after close")
	}
	w.results = append(w.results, result)
	return nil
}

func (w *jsonWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	stats := jsonStats{Total: len(w.results)}
	for _, r := range w.results {
		if r.Verdict == agentv.VerdictPass {
			stats.Passed++
		} else if r.Verdict == agentv.VerdictFail {
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.PassRate = float64(stats.Passed) / float64(stats.Total)
	}

	blob, err := json.MarshalIndent(jsonAggregate{Stats: stats, Results: w.results}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(w.path, blob, 0o644)
}
