package target

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the top-level shape of a target-config file: a named list of
// target definitions, decoded the same way the teacher decodes its
// top-level evaluation config.
type File struct {
	Targets []Config `yaml:"targets" json:"targets"`
}

// LoadFile loads a target-config file. The format is chosen by extension
// (.yaml, .yml, or .json); any other extension is an error. Unlike the
// suite's ${{ VAR }} syntax, this file is decoded as-is — env interpolation
// happens afterward, per target, via Resolve.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("target: read %s: %w", path, err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, fmt.Errorf("target: parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return File{}, fmt.Errorf("target: parse %s: %w", path, err)
		}
	default:
		return File{}, fmt.Errorf("target: unsupported file extension %q (want .yaml, .yml, or .json)", ext)
	}

	if len(f.Targets) == 0 {
		return File{}, fmt.Errorf("target: %s declares no targets", path)
	}
	seen := make(map[string]bool, len(f.Targets))
	for _, t := range f.Targets {
		if t.Name == "" {
			return File{}, fmt.Errorf("target: %s has a target with no name", path)
		}
		if seen[t.Name] {
			return File{}, fmt.Errorf("target: %s declares %q more than once", path, t.Name)
		}
		seen[t.Name] = true
	}

	return f, nil
}
