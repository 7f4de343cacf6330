// Command agentv is the evaluation framework's CLI: run, validate, schema,
// and report subcommands over internal/commands.
package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/agentv/agentv/internal/commands"
	_ "github.com/agentv/agentv/internal/evaluator/registerall"
	"github.com/agentv/agentv/internal/help"
)

var cli struct {
	commands.Globals

	Run      commands.RunCmd      `cmd:"" help:"Run a suite against a resolved target."`
	Validate commands.ValidateCmd `cmd:"" help:"Validate a target-config file against its JSON Schema."`
	Schema   commands.SchemaCmd   `cmd:"" help:"Print the target-config JSON Schema."`
	Report   commands.ReportCmd   `cmd:"" help:"Render a styled report from a jsonl results file."`
}

func main() {
	styles := help.DefaultStyles()

	ctx := kong.Parse(&cli,
		kong.Name("agentv"),
		kong.Description("Evaluate AI-agent outputs against declarative test suites."),
		kong.UsageOnError(),
		kong.HelpOptions{Compact: true},
		kong.Help(help.Printer(styles)),
	)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cli.Globals.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := ctx.Run(&cli.Globals); err != nil {
		os.Stderr.WriteString(styles.Error.Render("error: "+err.Error()) + "\n")
		os.Exit(1)
	}
}
