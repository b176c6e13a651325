package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Violations renders each error as "field: message".
func (r *ValidationResult) Violations() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return out
}

// SchemaValidator holds compiled JSON schemas by name.
type SchemaValidator struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{schemas: make(map[string]*gojsonschema.Schema)}
}

// Register compiles schema under name, replacing any earlier one.
func (v *SchemaValidator) Register(name string, schema []byte) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", name, err)
	}
	v.mu.Lock()
	v.schemas[name] = compiled
	v.mu.Unlock()
	return nil
}

// RegisterEnvelope registers a schema for a full bus envelope whose payload
// must match payloadSchema.
func (v *SchemaValidator) RegisterEnvelope(name string, payloadSchema []byte) error {
	schema, err := EnvelopeSchema(payloadSchema)
	if err != nil {
		return fmt.Errorf("wrap schema %s: %w", name, err)
	}
	return v.Register(name, schema)
}

func (v *SchemaValidator) Has(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.schemas[name]
	return ok
}

// Names lists the registered schemas in order.
func (v *SchemaValidator) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks document against the named schema. An error is returned
// only when the schema is unknown or the document is not JSON.
func (v *SchemaValidator) Validate(name string, document []byte) (*ValidationResult, error) {
	v.mu.RLock()
	schema, ok := v.schemas[name]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("schema %s is not registered", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validate against %s: %w", name, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return out, nil
}

// EnvelopeSchema wraps payloadSchema in the standard message envelope.
func EnvelopeSchema(payloadSchema []byte) ([]byte, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(payloadSchema, &payload); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"required": []string{
			"topic", "originator", "timestamp", "mime-type", "payload",
		},
		"properties": map[string]interface{}{
			"topic":      map[string]interface{}{"type": "string", "minLength": 1},
			"originator": map[string]interface{}{"type": "string", "minLength": 1},
			"timestamp":  map[string]interface{}{"type": "string", "format": "date-time"},
			"mime-type":  map[string]interface{}{"type": "string"},
			"key":        map[string]interface{}{"type": []string{"string", "null"}},
			"payload":    payload,
		},
	})
}
