package policy

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/hrm8/assistant/internal/actor"
)

// overlaySchema is the JSON Schema for assistant.policy.yaml.
var overlaySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "assistant.policy.yaml",
  "type": "object",
  "required": ["version"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+(\\.[0-9]+)?$"},
    "tools": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "disabled": {"type": "array", "items": {"type": "string", "minLength": 1}, "uniqueItems": true},
        "restrict": {
          "type": "object",
          "additionalProperties": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "enum": ` + levelEnum() + `}
          }
        }
      }
    }
  }
}`

func levelEnum() string {
	names := make([]string, 0, len(actor.AllLevels))
	for _, l := range actor.AllLevels {
		names = append(names, l.String())
	}
	b, _ := json.Marshal(names)
	return string(b)
}

// ValidateSchema validates raw YAML against the overlay schema.
func ValidateSchema(yamlBytes []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(yamlBytes, &doc); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	jsonBytes, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return fmt.Errorf("converting to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(overlaySchema),
		gojsonschema.NewBytesLoader(jsonBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var msg string
		for _, e := range result.Errors() {
			msg += fmt.Sprintf("\n  - %s", e.String())
		}
		return fmt.Errorf("policy validation failed:%s", msg)
	}
	return nil
}

// normalizeYAML converts map[interface{}]interface{} to map[string]interface{}
// so that json.Marshal can handle it.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[k] = normalizeYAML(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(v)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}
