package writer

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/agentv/agentv"
)

// yamlWriter buffers results and emits a single YAML sequence document on
// Close, mirroring the JSON aggregate writer's one-shot emission.
type yamlWriter struct {
	path    string
	mu      sync.Mutex
	results []agentv.EvaluationResult
	closed  bool
}

func newYAMLWriter(path string) (*yamlWriter, error) {
	return &yamlWriter{path: path}, nil
}

func (w *yamlWriter) Append(result agentv.EvaluationResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer: append after close")
	}
	w.results = append(w.results, result)
	return nil
}

func (w *yamlWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	blob, err := yaml.Marshal(w.results)
	if err != nil {
		return err
	}
	return os.WriteFile(w.path, blob, 0o644)
}
