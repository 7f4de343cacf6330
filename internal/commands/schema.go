package commands

import (
	"fmt"

	"github.com/agentv/agentv/internal/target"
)

// SchemaCmd handles the schema command.
type SchemaCmd struct{}

// Run executes the schema command.
func (s *SchemaCmd) Run(globals *Globals) error {
	schema, err := target.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}
	fmt.Println(schema)
	return nil
}
