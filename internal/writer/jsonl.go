package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/agentv/agentv"
)

// jsonlWriter appends one JSON object per line, matching the shape of the
// teacher's JSONL result logger: opened in append mode, flushed per write,
// safe under concurrent Append calls.
type jsonlWriter struct {
	file   *os.File
	mu     sync.Mutex
	closed bool
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("writer: open %s: %w", path, err)
	}
	return &jsonlWriter{file: f}, nil
}

func (w *jsonlWriter) Append(result agentv.EvaluationResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer: append after close")
	}
	line, err := json.Marshal(result)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = w.file.Write(line)
	return err
}

func (w *jsonlWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
