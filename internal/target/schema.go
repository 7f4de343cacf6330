package target

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// generateSchema builds the JSON Schema for a target-config File.
func generateSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[File](nil)
	if err != nil {
		return nil, fmt.Errorf("target: generate schema: %w", err)
	}
	schema.Title = "AgentV Target Configuration"
	schema.Description = "Declares the providers a suite run can dispatch against, by name."
	schema.Schema = "https://json-schema.org/draft/2020-12/schema"
	return schema, nil
}

// SchemaJSON returns the target-config JSON Schema, indented, for the CLI's
// schema subcommand.
func SchemaJSON() (string, error) {
	schema, err := generateSchema()
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("target: marshal schema: %w", err)
	}
	return string(out), nil
}

// Validate checks a decoded target-config File against the JSON Schema,
// catching shape errors (unknown fields, wrong types) LoadFile's plain
// yaml/json unmarshal would silently ignore or panic on.
func Validate(f File) error {
	schema, err := generateSchema()
	if err != nil {
		return err
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("target: resolve schema: %w", err)
	}

	asJSON, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("target: marshal config for validation: %w", err)
	}
	var data any
	if err := json.Unmarshal(asJSON, &data); err != nil {
		return fmt.Errorf("target: decode config for validation: %w", err)
	}

	if err := resolved.Validate(data); err != nil {
		return fmt.Errorf("target: config does not match schema: %w", err)
	}
	return nil
}
