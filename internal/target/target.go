// Package target resolves a target name to its configured provider kind
// and options: environment-variable interpolation, worker/batching
// overrides, and the workspaceTemplate/cwd exclusivity rule for CLI-style
// provider kinds.
package target

import (
	"fmt"

	"github.com/agentv/agentv"
)

// interactiveKinds require the workspaceTemplate/cwd choice be statically
// exclusive, since they launch a single external process or session rooted
// at one directory.
var interactiveKinds = map[string]bool{
	"cli":               true,
	"claude-code":       true,
	"codex":             true,
	"copilot-cli":       true,
	"pi-coding-agent":   true,
}

// Config is a single resolved target definition.
type Config struct {
	Name              string            `yaml:"name" json:"name" jsonschema:"Unique name this target is referenced by"`
	Kind              string            `yaml:"kind" json:"kind" jsonschema:"Provider kind, e.g. anthropic, azure, cli, claude-code, mcp"`
	Options           map[string]string `yaml:"config,omitempty" json:"config,omitempty" jsonschema:"Provider-specific options; values may reference \\${{ VAR }}"`
	Workers           int               `yaml:"workers,omitempty" json:"workers,omitempty" jsonschema:"Worker pool size override for this target"`
	ProviderBatching  int               `yaml:"provider_batching,omitempty" json:"provider_batching,omitempty" jsonschema:"Batch size when the resolved provider supports InvokeBatch"`
	JudgeTarget       string            `yaml:"judge_target,omitempty" json:"judge_target,omitempty" jsonschema:"Name of the target judge/code_judge evaluators should use instead of this one"`
	WorkspaceTemplate string            `yaml:"workspace_template,omitempty" json:"workspace_template,omitempty" jsonschema:"Directory copied into each case's scratch workspace; exclusive with cwd for interactive kinds"`
	Cwd               string            `yaml:"cwd,omitempty" json:"cwd,omitempty" jsonschema:"Fixed working directory; exclusive with workspace_template for interactive kinds"`
}

// Resolve interpolates every ${{ VAR }} reference in cfg.Options against
// env, validates the workspaceTemplate/cwd exclusivity rule for
// interactive kinds, and normalizes an Azure-style api-version string.
// Returns a new Config; cfg is not mutated.
func Resolve(cfg Config, env map[string]string) (Config, error) {
	out := cfg
	if len(cfg.Options) > 0 {
		resolved := make(map[string]string, len(cfg.Options))
		for k, v := range cfg.Options {
			r, err := Interpolate(v, env)
			if err != nil {
				return Config{}, fmt.Errorf("target %q: option %q: %w", cfg.Name, k, err)
			}
			resolved[k] = r
		}
		out.Options = resolved
	}

	if interactiveKinds[cfg.Kind] && cfg.WorkspaceTemplate != "" && cfg.Cwd != "" {
		return Config{}, fmt.Errorf("target %q: kind %q accepts workspaceTemplate or cwd, not both", cfg.Name, cfg.Kind)
	}

	if cfg.Kind == "azure" {
		if v, ok := out.Options["api_version"]; ok {
			out.Options["api_version"] = normalizeAzureVersion(v)
		}
	}

	return out, nil
}

func normalizeAzureVersion(v string) string {
	const prefix = "api-version="
	if len(v) > len(prefix) && v[:len(prefix)] == prefix {
		return v[len(prefix):]
	}
	return v
}

// Resolver implements agentv.TargetResolver over a static set of resolved
// providers, keyed by target name.
type Resolver struct {
	providers map[string]agentv.Provider
}

// NewResolver builds a Resolver from a name->Provider map. Concrete
// provider construction (turning a resolved Config into a live Provider)
// is an external collaborator's responsibility; this package only resolves
// the declarative shape.
func NewResolver(providers map[string]agentv.Provider) *Resolver {
	return &Resolver{providers: providers}
}

// Resolve implements agentv.TargetResolver.
func (r *Resolver) Resolve(name string) (agentv.Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
