// Package writer implements the output-writer contract and the concrete
// jsonl/json/yaml/junit writers, plus a multiplexer that fans a single
// result stream across several files picked by extension.
package writer

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/agentv/agentv"
)

// Writer is the append/close contract every output format satisfies.
// Close is idempotent; Append after Close must fail.
type Writer interface {
	Append(result agentv.EvaluationResult) error
	Close() error
}

// New picks a concrete Writer for path by its extension (.jsonl, .json,
// .yaml/.yml, .xml). Unknown extensions fail construction.
func New(path string) (Writer, error) {
	switch filepath.Ext(path) {
	case ".jsonl":
		return newJSONLWriter(path)
	case ".json":
		return newJSONWriter(path)
	case ".yaml", ".yml":
		return newYAMLWriter(path)
	case ".xml":
		return newJUnitWriter(path)
	default:
		return nil, fmt.Errorf("writer: unsupported output extension %q", filepath.Ext(path))
	}
}

// Multi fans Append to every underlying writer and Close to all of them in
// LIFO order (matching the dispatcher's cancellation-path shutdown order).
// An append error in any one writer aborts the multi-append and surfaces
// the first error; the dispatcher funnels all Appends through a single
// goroutine so writers need not be internally thread-safe.
type Multi struct {
	writers []Writer
	mu      sync.Mutex
	closed  bool
}

// NewMulti builds concrete writers for each path via New.
func NewMulti(paths []string) (*Multi, error) {
	m := &Multi{}
	for _, p := range paths {
		w, err := New(p)
		if err != nil {
			m.Close() //nolint:errcheck
			return nil, err
		}
		m.writers = append(m.writers, w)
	}
	return m, nil
}

// Append implements Writer.
func (m *Multi) Append(result agentv.EvaluationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("writer: append after close")
	}
	for _, w := range m.writers {
		if err := w.Append(result); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Writer: closes every writer in LIFO order, idempotent.
func (m *Multi) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	for i := len(m.writers) - 1; i >= 0; i-- {
		if err := m.writers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
