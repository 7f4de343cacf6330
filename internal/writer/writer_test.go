package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentv/agentv"
	"github.com/stretchr/testify/require"
)

func sampleResult(id string, verdict agentv.Verdict) agentv.EvaluationResult {
	return agentv.EvaluationResult{
		TestID:  id,
		Dataset: "smoke",
		Score:   1,
		Verdict: verdict,
	}
}

func TestMulti_UnsupportedExtensionFailsConstruction(t *testing.T) {
	dir := t.TempDir()
	_, err := NewMulti([]string{filepath.Join(dir, "out.txt")})
	require.Error(t, err)
}

func TestMulti_AppendAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMulti([]string{filepath.Join(dir, "out.jsonl")})
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.Error(t, m.Append(sampleResult("a", agentv.VerdictPass)))
	require.NoError(t, m.Close())
}

func TestJSONLWriter_OneLinePerResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := New(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleResult("a", agentv.VerdictPass)))
	require.NoError(t, w.Append(sampleResult("b", agentv.VerdictFail)))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
}

func TestJSONWriter_AggregateStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := New(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleResult("a", agentv.VerdictPass)))
	require.NoError(t, w.Append(sampleResult("b", agentv.VerdictFail)))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"total": 2`)
	require.Contains(t, string(data), `"passed": 1`)
}

func TestJUnitWriter_EscapesAndGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xml")
	w, err := New(path)
	require.NoError(t, err)
	bad := sampleResult("a", agentv.VerdictFail)
	bad.Misses = []string{`<tag> & "quote"`}
	require.NoError(t, w.Append(bad))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "&lt;tag&gt;")
	require.Contains(t, string(data), `tests="1"`)
	require.Contains(t, string(data), `failures="1"`)
}
