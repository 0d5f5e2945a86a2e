package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const listSchemaURL = "tada://schemas/todos.json"

// ListSchema describes the value stored under the "todos" key.
const ListSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "id":   {"type": "integer", "minimum": 0},
      "text": {"type": "string"},
      "done": {"type": "boolean"}
    },
    "required": ["id", "text", "done"]
  }
}`

var listSchema = jsonschema.MustCompileString(listSchemaURL, ListSchema)

// ValidateList checks raw JSON against ListSchema.
func ValidateList(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	if err := listSchema.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// DecodeList turns a stored value into a list. A missing, malformed or
// schema-invalid value yields an empty list rather than an error.
func DecodeList(raw []byte) List {
	if len(bytes.TrimSpace(raw)) == 0 {
		return List{}
	}
	if err := ValidateList(raw); err != nil {
		return List{}
	}
	var l List
	if err := json.Unmarshal(raw, &l); err != nil || l == nil {
		return List{}
	}
	return l
}
