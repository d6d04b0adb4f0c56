package eval

import (
	"reflect"
	"strings"

	"google.golang.org/genai"
)

// schemaFor generates a response schema from a result struct type.
// It supports struct tags:
//   - json:"name"        - field name in the response
//   - desc:"description" - field description
//
// Pointer and omitempty fields are optional; everything else is required.
func schemaFor(t reflect.Type) *genai.Schema {
	return schemaFromType(t)
}

func schemaFromType(t reflect.Type) *genai.Schema {
	// Dereference pointer
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		return objectSchema(t)
	case reflect.Slice, reflect.Array:
		return &genai.Schema{
			Type:  genai.TypeArray,
			Items: schemaFromType(t.Elem()),
		}
	case reflect.String:
		return &genai.Schema{Type: genai.TypeString}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &genai.Schema{Type: genai.TypeInteger}
	case reflect.Float32, reflect.Float64:
		return &genai.Schema{Type: genai.TypeNumber}
	case reflect.Bool:
		return &genai.Schema{Type: genai.TypeBoolean}
	default:
		return &genai.Schema{Type: genai.TypeString} // Fallback
	}
}

func objectSchema(t reflect.Type) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		omitempty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, part := range parts[1:] {
				if part == "omitempty" {
					omitempty = true
					break
				}
			}
		}

		fieldSchema := schemaFromType(field.Type)
		if desc := field.Tag.Get("desc"); desc != "" {
			fieldSchema.Description = desc
		}
		schema.Properties[name] = fieldSchema

		required := field.Type.Kind() != reflect.Ptr && !omitempty
		if required {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}
