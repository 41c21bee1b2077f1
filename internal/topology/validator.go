package topology

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/uiconfig-v2.json
var uiConfigSchemaJSON string

// Validator checks the shape of a UI configuration document before indexing.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("uiconfig-v2.json",
		strings.NewReader(uiConfigSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("uiconfig-v2.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDocument validates a decoded document.
func (v *Validator) ValidateDocument(doc types.TopologyDocument) error {
	// the schema library switches on map[string]interface{}, not named map types
	if err := v.schema.Validate(map[string]any(doc)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
