// SPDX-License-Identifier: Apache-2.0

// Package schema provides JSON-Schema shape validators for capability
// inputs. A Schema both describes the expected structure (for LLM function
// descriptors) and validates raw arguments, reporting per-field diagnostics.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// FieldError describes a single validation failure.
type FieldError struct {
	// Path is the dotted path of the offending field, e.g. "task.id".
	Path string `json:"path"`
	// Expected is the expected type or constraint, when known.
	Expected string `json:"expected,omitempty"`
	// Actual is the observed type or value, when known.
	Actual string `json:"actual,omitempty"`
	// Message is the human-readable diagnostic.
	Message string `json:"message"`
}

func (f FieldError) String() string {
	if f.Expected != "" && f.Actual != "" {
		return fmt.Sprintf("%s: expected %s, got %s", f.Path, f.Expected, f.Actual)
	}
	if f.Path != "" {
		return fmt.Sprintf("%s: %s", f.Path, f.Message)
	}
	return f.Message
}

// ValidationError aggregates the field diagnostics of a failed validation.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from field diagnostics.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Schema is a compiled JSON-Schema shape validator.
type Schema struct {
	doc      map[string]any
	compiled *gojsonschema.Schema
}

// New compiles a JSON-Schema document. The document is used verbatim as the
// parameters block of the capability's LLM function descriptor.
func New(doc map[string]any) (*Schema, error) {
	if doc == nil {
		return nil, fmt.Errorf("schema document is required")
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{doc: doc, compiled: compiled}, nil
}

// MustNew compiles a JSON-Schema document and panics on failure.
// Intended for package-level schema literals.
func MustNew(doc map[string]any) *Schema {
	s, err := New(doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Object builds an object schema from a property map and required names.
func Object(properties map[string]any, required ...string) *Schema {
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	doc["additionalProperties"] = false
	return MustNew(doc)
}

// FromStruct derives a schema from a Go struct using its json and
// jsonschema tags.
func FromStruct(v any) (*Schema, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	reflected := reflector.Reflect(v)
	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("marshal reflected schema: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode reflected schema: %w", err)
	}
	// The $schema marker is noise in a function descriptor.
	delete(doc, "$schema")
	return New(doc)
}

// Definition returns the schema document for function descriptors.
func (s *Schema) Definition() map[string]any {
	return s.doc
}

// Validate checks raw arguments against the schema and returns the
// validated argument map. raw may be a map, a JSON byte payload, or nil
// (treated as an empty object). On failure the returned error is a
// *ValidationError carrying per-field diagnostics.
func (s *Schema) Validate(raw any) (map[string]any, error) {
	args, err := normalizeArgs(raw)
	if err != nil {
		return nil, err
	}

	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return nil, fmt.Errorf("validate arguments: %w", err)
	}
	if result.Valid() {
		return args, nil
	}

	fields := make([]FieldError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		fields = append(fields, toFieldError(re))
	}
	return nil, &ValidationError{Fields: fields}
}

func normalizeArgs(raw any) (map[string]any, error) {
	switch value := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return value, nil
	case json.RawMessage:
		return decodeArgs([]byte(value))
	case []byte:
		return decodeArgs(value)
	case string:
		return decodeArgs([]byte(value))
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("arguments: unsupported type %T", raw)
		}
		return decodeArgs(encoded)
	}
}

func decodeArgs(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments: invalid JSON: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func toFieldError(re gojsonschema.ResultError) FieldError {
	fe := FieldError{
		Path:    re.Field(),
		Message: re.Description(),
	}
	details := re.Details()
	if expected, ok := details["expected"].(string); ok {
		fe.Expected = expected
	}
	if given, ok := details["given"].(string); ok {
		fe.Actual = given
	}
	// Missing-property errors report the parent as the field; point the
	// path at the property itself so callers see "task" not "(root)".
	if re.Type() == "required" {
		if property, ok := details["property"].(string); ok {
			if fe.Path == "" || fe.Path == "(root)" {
				fe.Path = property
			} else {
				fe.Path = fe.Path + "." + property
			}
			fe.Expected = "present"
			fe.Actual = "missing"
		}
	}
	return fe
}
