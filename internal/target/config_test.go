package target

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFile_YAML(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "targets.yaml")
	assert.NoError(os.WriteFile(path, []byte(`
targets:
  - name: anthropic-sonnet
    kind: anthropic
    config:
      model: "${{ MODEL }}"
  - name: judge
    kind: anthropic
    workers: 4
`), 0o644))

	f, err := LoadFile(path)
	assert.NoError(err)
	assert.Len(f.Targets, 2)
	assert.Equal("anthropic-sonnet", f.Targets[0].Name)
	assert.Equal(4, f.Targets[1].Workers)
}

func TestLoadFile_JSON(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "targets.json")
	assert.NoError(os.WriteFile(path, []byte(`{"targets":[{"name":"local-cli","kind":"cli"}]}`), 0o644))

	f, err := LoadFile(path)
	assert.NoError(err)
	assert.Len(f.Targets, 1)
	assert.Equal("local-cli", f.Targets[0].Name)
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "targets.toml")
	assert.NoError(os.WriteFile(path, []byte("name = 'x'"), 0o644))

	_, err := LoadFile(path)
	assert.Error(err)
}

func TestLoadFile_DuplicateName(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "targets.yaml")
	assert.NoError(os.WriteFile(path, []byte(`
targets:
  - name: dup
    kind: anthropic
  - name: dup
    kind: azure
`), 0o644))

	_, err := LoadFile(path)
	assert.Error(err)
}

func TestLoadFile_MissingName(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "targets.yaml")
	assert.NoError(os.WriteFile(path, []byte(`
targets:
  - kind: anthropic
`), 0o644))

	_, err := LoadFile(path)
	assert.Error(err)
}

func TestLoadFile_Empty(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "targets.yaml")
	assert.NoError(os.WriteFile(path, []byte(`targets: []`), 0o644))

	_, err := LoadFile(path)
	assert.Error(err)
}
