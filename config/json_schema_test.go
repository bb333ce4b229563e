package config

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema(t *testing.T) {
	schemaJSON, err := JSONSchema()
	require.NoError(t, err)
	require.NotNil(t, schemaJSON)

	unmarshalledSchema := &jsonschema.Schema{}
	require.NoError(t, unmarshalledSchema.UnmarshalJSON(schemaJSON))
	assert.Equal(t, "analyzer configuration", unmarshalledSchema.Title)

	schema := string(schemaJSON)
	assert.Contains(t, schema, `"server_url"`)
	assert.Contains(t, schema, `"max_request_size"`)
	assert.Contains(t, schema, `"cors_allowed_origins"`)
	assert.Contains(t, schema, "duration, e.g. 500ms or 10s")
	assert.NotContains(t, schema, `"required"`)
}
