package generate

import "github.com/google/jsonschema-go/jsonschema"

// Field names a property of an object schema.
type Field struct {
	Name     string
	Schema   *jsonschema.Schema
	Optional bool
}

// ObjectSchema builds an object schema; fields are required unless marked
// Optional.
func ObjectSchema(fields ...Field) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(fields)),
	}
	for _, f := range fields {
		s.Properties[f.Name] = f.Schema
		if !f.Optional {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

func String(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func Integer(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

func Boolean(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: description}
}

func Array(items *jsonschema.Schema, description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: items, Description: description}
}

// Enum is a string schema restricted to values.
func Enum(description string, values ...string) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{Type: "string", Enum: enum, Description: description}
}
