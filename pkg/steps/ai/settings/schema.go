package settings

import (
	"encoding/json"
	"io"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const schemaDraft = "http://json-schema.org/draft-07/schema#"

var durationType = reflect.TypeOf(time.Duration(0))

// Schema describes the YAML layout of a pipeline settings file.
// Unknown keys are rejected, no key is required.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference:             true,
		Anonymous:                  true,
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == durationType || (t.Kind() == reflect.Ptr && t.Elem() == durationType) {
				// "2m" for pipeline durations, a number of seconds for client timeouts
				return &jsonschema.Schema{
					OneOf: []*jsonschema.Schema{
						{Type: "string"},
						{Type: "integer"},
					},
				}
			}
			return nil
		},
	}
	schema := reflector.Reflect(&PipelineSettings{})
	schema.Version = schemaDraft
	return schema
}

// ValidateYAML checks a settings document against Schema and returns one line per violation.
func ValidateYAML(r io.Reader) ([]string, error) {
	var doc interface{}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not parse settings")
	}

	schemaJSON, err := json.Marshal(Schema())
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal settings schema")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not validate settings")
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}
