package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/dispatcher"
	"github.com/agentv/agentv/internal/help"
	"github.com/agentv/agentv/internal/providers/mcpagent"
	"github.com/agentv/agentv/internal/reporting"
	"github.com/agentv/agentv/internal/target"
	"github.com/agentv/agentv/internal/writer"
)

// RunCmd handles the run command.
type RunCmd struct {
	Quiet   bool   `help:"Suppress progress output, only show the summary." short:"q"`
	Suite   string `help:"Suite file (YAML/JSON, a top-level 'cases' list of EvalCase records)." required:"" type:"path"`
	Targets string `help:"Target-config file (YAML/JSON)." required:"" type:"path"`
	Target  string `help:"Name of the target under test, from Targets." required:""`
	Judge   string `help:"Name of the target to use as judge provider, from Targets."`
	Filter  string `help:"Regex pattern to filter which cases to run (matches against case id)." short:"f"`

	Out               []string      `help:"Output file(s); format is chosen by extension (.jsonl/.json/.yaml/.xml)."`
	Workers           int           `help:"Worker pool size (overridden by the target's own 'workers' option when set)."`
	Trials            int           `help:"Attempts per case." default:"1"`
	FailFast          bool          `help:"Cancel the run after the first failing result."`
	AttemptTimeout    time.Duration `help:"Per-attempt timeout." default:"5m"`
	MaxRetries        int           `help:"Max retries for a retry-safe provider's timeout/backend-unavailable errors."`
	CancelGrace       time.Duration `help:"Grace period for in-flight work to unwind after cancellation." default:"5s"`
	ProviderBatchSize int           `help:"Batch size when the resolved provider supports InvokeBatch."`
	Verbose           bool          `help:"Show the detailed per-case breakdown." short:"V"`
}

// Run executes the run command.
func (r *RunCmd) Run(globals *Globals) error {
	cases, err := loadSuite(r.Suite)
	if err != nil {
		return fmt.Errorf("failed to load suite: %w", err)
	}

	if r.Filter != "" {
		filtered, err := filterCases(cases, r.Filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
		if len(filtered) == 0 {
			return fmt.Errorf("no cases matched filter pattern: %s", r.Filter)
		}
		if !r.Quiet {
			fmt.Printf("Filter %q matched %d of %d case(s)\n", r.Filter, len(filtered), len(cases))
		}
		cases = filtered
	}

	targetFile, err := target.LoadFile(r.Targets)
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}
	resolver, cfgByName, err := buildResolver(targetFile)
	if err != nil {
		return err
	}

	provider, ok := resolver.Resolve(r.Target)
	if !ok {
		return fmt.Errorf("target %q not found in %s", r.Target, r.Targets)
	}
	var judgeProvider agentv.Provider
	if r.Judge != "" {
		judgeProvider, ok = resolver.Resolve(r.Judge)
		if !ok {
			return fmt.Errorf("judge target %q not found in %s", r.Judge, r.Targets)
		}
	}

	workers, batchSize := r.Workers, r.ProviderBatchSize
	if cfg, ok := cfgByName[r.Target]; ok {
		if cfg.Workers > 0 {
			workers = cfg.Workers
		}
		if cfg.ProviderBatching > 0 {
			batchSize = cfg.ProviderBatching
		}
	}

	out := r.Out
	if len(out) == 0 {
		out = []string{"results.jsonl"}
	}
	outWriters, err := writer.NewMulti(out)
	if err != nil {
		return fmt.Errorf("failed to open output writer(s): %w", err)
	}
	defer outWriters.Close() //nolint:errcheck

	d := dispatcher.New(r.Target, provider, judgeProvider, resolver, outWriters, dispatcher.Options{
		Workers:           workers,
		Trials:            r.Trials,
		FailFast:          r.FailFast,
		Verbose:           globals.Verbose,
		AttemptTimeout:    r.AttemptTimeout,
		MaxRetries:        r.MaxRetries,
		CancelGrace:       r.CancelGrace,
		ProviderBatchSize: batchSize,
	})

	if !r.Quiet {
		fmt.Printf("Running %d case(s) against %q...\n\n", len(cases), r.Target)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Run(ctx, cases); err != nil {
		log.Error().Err(err).Msg("agentv: run failed")
		return fmt.Errorf("run failed: %w", err)
	}

	for _, path := range out {
		if filepath.Ext(path) != ".jsonl" {
			continue
		}
		results, err := reporting.LoadResultsFile(path)
		if err != nil {
			return fmt.Errorf("failed to load results for report: %w", err)
		}
		return reporting.PrintStyledReport(results, r.Verbose)
	}
	return nil
}

// loadSuite reads a suite file's top-level 'cases' list. The suite's
// ${{ VAR }} expression language and richer authoring formats belong to a
// suite-authoring front end this command does not implement; it accepts
// EvalCase records already in their wire shape.
func loadSuite(path string) ([]agentv.EvalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Cases []agentv.EvalCase `yaml:"cases" json:"cases"`
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported suite extension %q", ext)
	}
	if len(doc.Cases) == 0 {
		return nil, fmt.Errorf("suite %s declares no cases", path)
	}
	return doc.Cases, nil
}

// filterCases filters cases by regex pattern matching against case id.
func filterCases(cases []agentv.EvalCase, pattern string) ([]agentv.EvalCase, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var filtered []agentv.EvalCase
	for _, c := range cases {
		if regex.MatchString(c.ID) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// buildResolver turns every resolved target.Config into a concrete
// agentv.Provider. Only the "mcp" kind (an Anthropic model driven through
// an MCP server subprocess, internal/providers/mcpagent) is wired up here;
// other kinds are an external collaborator's responsibility per
// target.Config's own doc comment.
func buildResolver(f target.File) (*target.Resolver, map[string]target.Config, error) {
	env := envMap()
	providers := make(map[string]agentv.Provider, len(f.Targets))
	cfgByName := make(map[string]target.Config, len(f.Targets))

	for _, raw := range f.Targets {
		cfg, err := target.Resolve(raw, env)
		if err != nil {
			return nil, nil, err
		}
		p, err := buildProvider(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("target %q: %w", cfg.Name, err)
		}
		providers[cfg.Name] = p
		cfgByName[cfg.Name] = cfg
	}
	return target.NewResolver(providers), cfgByName, nil
}

func buildProvider(cfg target.Config) (agentv.Provider, error) {
	switch cfg.Kind {
	case "mcp":
		var env []string
		if e := cfg.Options["env"]; e != "" {
			env = strings.Split(e, ",")
		}
		return mcpagent.New(mcpagent.Config{
			APIKey:              cfg.Options["api_key"],
			BaseURL:             cfg.Options["base_url"],
			Command:             cfg.Options["command"],
			Args:                strings.Fields(cfg.Options["args"]),
			Env:                 env,
			Model:               cfg.Options["model"],
			EnablePromptCaching: cfg.Options["enable_prompt_caching"] != "false",
			StderrCallback: func(line string) {
				styles := help.DefaultStyles()
				fmt.Fprintln(os.Stderr, styles.Muted.Render(line))
			},
		}), nil
	default:
		return nil, fmt.Errorf("unsupported target kind %q (agentv wires up %q only)", cfg.Kind, "mcp")
	}
}

func envMap() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}
