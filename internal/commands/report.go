package commands

import (
	"fmt"

	"github.com/agentv/agentv/internal/reporting"
)

// ReportCmd handles the report command.
type ReportCmd struct {
	ResultsFile string `help:"Path to a jsonl results file, as produced by 'run'." required:"" type:"existingfile"`
	Verbose     bool   `help:"Show the detailed per-case breakdown." short:"v"`
}

// Run executes the report command.
func (r *ReportCmd) Run(globals *Globals) error {
	results, err := reporting.LoadResultsFile(r.ResultsFile)
	if err != nil {
		return fmt.Errorf("failed to load results file: %w", err)
	}
	return reporting.PrintStyledReport(results, r.Verbose)
}
