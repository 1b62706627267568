package ai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// summarySchema constrains the summarizer response. Overview variants are
// checked by the layout package once content_type is known.
func summarySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sections": map[string]any{
				"type":        "array",
				"description": "An ordered list of sections on the page, from top to bottom.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content_type": map[string]any{"type": "string", "minLength": 1},
						"overview":     map[string]any{"type": "object"},
						"y_min":        percentProp("The y position of the top of the section as a percentage of the page height"),
						"y_max":        percentProp("The y position of the bottom of the section as a percentage of the page height"),
					},
					"required": []string{"content_type", "overview", "y_min", "y_max"},
				},
			},
		},
		"required": []string{"sections"},
	}
}

func judgmentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_accurate":            map[string]any{"type": "boolean"},
			"suggested_bounding_box": boxSchema(),
			"reason":                 map[string]any{"type": "string"},
		},
		"required": []string{"is_accurate", "suggested_bounding_box"},
	}
}

func boxSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x_min": percentProp("Left edge as a percentage of the page width"),
			"y_min": percentProp("Top edge as a percentage of the page height"),
			"x_max": percentProp("Right edge as a percentage of the page width"),
			"y_max": percentProp("Bottom edge as a percentage of the page height"),
		},
		"required": []string{"x_min", "y_min", "x_max", "y_max"},
	}
}

func percentProp(desc string) map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "maximum": 100, "description": desc}
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func mustCompile(name string, schemaMap map[string]any) *jsonschema.Schema {
	s, err := compileSchema(name, schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

// validateJSON checks data against schema.
func validateJSON(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
