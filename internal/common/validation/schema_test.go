package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rolePayload = `{
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "string", "format": "uuid"},
    "name": {"type": "string", "minLength": 1},
    "numberOfMembers": {"type": ["number", "null"], "minimum": 1}
  }
}`

func TestSchemaValidator_Envelope(t *testing.T) {
	v := NewSchemaValidator()
	require.NoError(t, v.RegisterEnvelope("role.create", []byte(rolePayload)))
	assert.True(t, v.Has("role.create"))
	assert.Equal(t, []string{"role.create"}, v.Names())

	tests := []struct {
		name   string
		doc    string
		valid  bool
		fields []string
	}{
		{
			name: "valid",
			doc: `{"topic":"taas.role.requested","originator":"taas-api","timestamp":"2021-05-01T10:00:00.000Z",
				"mime-type":"application/json","payload":{"id":"8a2b6c1e-4a6f-4d4e-9a53-0d6e1c1b7a11","name":"Dev"}}`,
			valid: true,
		},
		{
			name: "bad uuid and missing name",
			doc: `{"topic":"taas.role.requested","originator":"taas-api","timestamp":"2021-05-01T10:00:00.000Z",
				"mime-type":"application/json","payload":{"id":"nope"}}`,
			fields: []string{"payload.id", "payload"},
		},
		{
			name:   "missing envelope fields",
			doc:    `{"payload":{"id":"8a2b6c1e-4a6f-4d4e-9a53-0d6e1c1b7a11","name":"Dev"}}`,
			fields: []string{"(root)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Validate("role.create", []byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			for _, f := range tt.fields {
				found := false
				for _, e := range res.Errors {
					if e.Field == f {
						found = true
					}
				}
				assert.True(t, found, "expected an error on %s, got %v", f, res.Violations())
			}
		})
	}
}

func TestSchemaValidator_Errors(t *testing.T) {
	v := NewSchemaValidator()

	_, err := v.Validate("missing", []byte(`{}`))
	assert.Error(t, err)

	assert.Error(t, v.Register("broken", []byte(`{"type": 12}`)))
	assert.Error(t, v.RegisterEnvelope("broken", []byte(`not json`)))

	require.NoError(t, v.Register("any", []byte(`{"type":"object"}`)))
	_, err = v.Validate("any", []byte(`{not json`))
	assert.Error(t, err)
}

func TestValidationResult_Violations(t *testing.T) {
	res := &ValidationResult{Errors: []ValidationError{{Field: "payload.id", Message: "Does not match format 'uuid'"}}}
	assert.Equal(t, []string{"payload.id: Does not match format 'uuid'"}, res.Violations())
}
