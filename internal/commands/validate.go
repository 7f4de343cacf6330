package commands

import (
	"fmt"

	"github.com/agentv/agentv/internal/target"
)

// ValidateCmd handles the validate command.
type ValidateCmd struct {
	Targets string `help:"Target-config file to validate." required:"" type:"path"`
}

// Run executes the validate command.
func (v *ValidateCmd) Run(globals *Globals) error {
	f, err := target.LoadFile(v.Targets)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if err := target.Validate(f); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	fmt.Printf("✓ %s is valid (%d target(s))\n", v.Targets, len(f.Targets))
	return nil
}
