package committee

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// draftSchemaSource is the JSON Schema a live backend's completion is
// validated against before it is trusted as a Draft. A completion that
// fails validation is dropped rather than treated as a fatal error, since
// one malformed element in a batch should not sink the whole firing.
const draftSchemaSource = `{
	"type": "object",
	"required": ["pattern", "sample_log"],
	"properties": {
		"pattern": {"type": "string", "minLength": 1},
		"sample_log": {"type": "string"},
		"semantic_info": {"type": "string"},
		"advise": {"type": "string"}
	}
}`

func compileDraftSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("draft.json", bytes.NewReader([]byte(draftSchemaSource))); err != nil {
		return nil, fmt.Errorf("committee: compiling draft schema: %w", err)
	}
	return compiler.Compile("draft.json")
}

// validateAgainstSchema reports whether d satisfies schema, reserializing
// to the generic interface{} shape jsonschema validates against. An empty
// sample_log is omitted on reserialization, so the schema's required check
// rejects a draft that has none.
func validateAgainstSchema(schema *jsonschema.Schema, d rawDraft) bool {
	b, err := json.Marshal(d)
	if err != nil {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return false
	}
	return schema.Validate(v) == nil
}
