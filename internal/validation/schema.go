package validation

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// configEnvelopeSchema catches gross shape errors before field-level
// validation runs: inputs must be an array of objects, dependencies and
// visualization must be objects. Field-level rules (required parameters,
// enums, binding shapes) are enforced separately so their messages can name
// the registry schema they came from.
const configEnvelopeSchema = `{
	"type": "object",
	"properties": {
		"inputs": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"source_id": {"type": "string"},
					"method_id": {"type": "string"},
					"parameters": {"type": "object"}
				}
			}
		},
		"dependencies": {
			"type": "object",
			"properties": {
				"section_ids": {"type": "array"},
				"subsection_ids": {"type": "array"}
			}
		},
		"visualization": {"type": "object"}
	}
}`

var (
	envelopeOnce   sync.Once
	envelopeSchema *gojsonschema.Schema
)

func loadEnvelopeSchema() *gojsonschema.Schema {
	envelopeOnce.Do(func() {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(configEnvelopeSchema))
		if err != nil {
			panic(fmt.Sprintf("invalid config envelope schema: %v", err))
		}
		envelopeSchema = schema
	})
	return envelopeSchema
}

// structuralErrors validates the raw configuration against the envelope
// schema and returns human-readable messages, one per violation.
func structuralErrors(cfg map[string]interface{}) []string {
	result, err := loadEnvelopeSchema().Validate(gojsonschema.NewGoLoader(cfg))
	if err != nil {
		return []string{fmt.Sprintf("Configuration could not be inspected: %v", err)}
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return errs
}
