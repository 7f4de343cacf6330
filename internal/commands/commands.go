// Package commands implements agentv's kong subcommands: run, validate,
// schema, and report.
package commands

// Globals contains flags shared across all commands.
type Globals struct {
	Verbose bool `help:"Enable debug-level logging." short:"v"`
}
