package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var embeddedSchema string

const schemaURL = "https://github.com/umputun/appcast/pkg/config/manifest"

// VerifyAgainstEmbeddedSchema validates the manifest against the embedded JSON schema
func VerifyAgainstEmbeddedSchema(m *Manifest) error {
	return verify(m, embeddedSchema)
}

func verify(m *Manifest, schemaText string) error {
	// parse and compile schema
	schemaDoc, err := validator.UnmarshalJSON(strings.NewReader(schemaText))
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}
	compiler := validator.NewCompiler()
	if err := compiler.AddResource(schemaURL, schemaDoc); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	// convert manifest to JSON for validation
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	inst, err := validator.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unmarshal manifest: %w", err)
	}

	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// GenerateSchema generates a JSON schema for the Manifest struct
func GenerateSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Manifest{})
	schema.ID = schemaURL
	return schema
}
