package config

import (
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
)

var (
	ErrGeneratedSchemaIsNil = errors.New("generated JSON Schema is nil")
)

// JSONSchema describes config.yaml. Properties use the mapstructure keys viper reads, nothing
// is required since every key has a default, and durations are strings such as "10s".
func JSONSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		FieldNameTag:               "mapstructure",
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		Mapper:                     mapConfigType,
	}
	schema := reflector.Reflect(&Config{})
	if schema == nil {
		return nil, ErrGeneratedSchemaIsNil
	}
	schema.Title = "analyzer configuration"
	schema.Description = "Settings file for the analyzer service. ANALYZER_ environment variables override it."

	return json.MarshalIndent(schema, "", "  ")
}

func mapConfigType(t reflect.Type) *jsonschema.Schema {
	if t == reflect.TypeOf(time.Duration(0)) {
		return &jsonschema.Schema{
			Type:        "string",
			Description: "duration, e.g. 500ms or 10s",
			Examples:    []any{"10s"},
		}
	}
	return nil
}
