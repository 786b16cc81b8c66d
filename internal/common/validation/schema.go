// Package validation checks provider payloads against fixed JSON schemas
// before they enter the evidence pipeline.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// recommendationSchema is the contract the AI reasoning provider is prompted
// to fulfil: pros/cons/suggestions plus a recommendation paragraph, with
// optional source URLs.
const recommendationSchema = `{
  "type": "object",
  "properties": {
    "pros":            {"type": "array", "items": {"type": "string"}},
    "cons":            {"type": "array", "items": {"type": "string"}},
    "suggestions":     {"type": "array", "items": {"type": "string"}},
    "recommendation":  {"type": "string", "minLength": 1},
    "sources":         {"type": "array", "items": {"type": "string"}}
  },
  "required": ["pros", "cons", "recommendation"]
}`

var recommendationLoader = gojsonschema.NewStringLoader(recommendationSchema)

// ValidateRecommendation verifies the AI provider's JSON body. A failure
// means the response must be classified PROVIDER_INVALID_RESPONSE by the
// caller.
func ValidateRecommendation(payload []byte) error {
	result, err := gojsonschema.Validate(recommendationLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("recommendation payload is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("recommendation payload failed schema validation: %s", strings.Join(msgs, "; "))
}
