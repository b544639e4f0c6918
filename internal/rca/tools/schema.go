package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles a tool's input schema once and validates invocation
// payloads against it before dispatch (spec.md §4.3 "input schema; validated
// before dispatch").
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles rawSchema (a JSON Schema document) for repeated use.
func NewValidator(name Ident, rawSchema []byte) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(rawSchema))
	if err != nil {
		return nil, fmt.Errorf("tool %s: parse input schema: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	resource := string(name) + ".schema.json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("tool %s: add schema resource: %w", name, err)
	}
	sch, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("tool %s: compile input schema: %w", name, err)
	}
	return &Validator{schema: sch}, nil
}

// Validate checks input (raw JSON) against the compiled schema.
func (v *Validator) Validate(input []byte) error {
	var inst any
	if err := json.Unmarshal(input, &inst); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
