// Package manifestschema builds a JSON Schema (Draft 7) document describing
// the manifest format of spec.md §4.B: the shape a JSON or YAML manifest
// document must have for package deserialize to accept it. Unlike the
// teacher's YAML-structure inference (magicschema.Generator walking one
// concrete document), this schema is fixed by the specification itself and
// built once from a static description — there is nothing to infer.
package manifestschema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Build returns the JSON Schema for a top-level device manifest document:
// a map from object name to object body, plus an optional "config" entry.
func Build() *jsonschema.Schema {
	return &jsonschema.Schema{
		Schema:      "http://json-schema.org/draft-07/schema#",
		ID:          "https://go.jacobcolvin.com/devicedesc/manifest.schema.json",
		Title:       "Device manifest",
		Description: "A device description in the manifest format accepted by package deserialize.",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"config": configSchema(),
		},
		AdditionalProperties: objectSchema(),
	}
}

// String renders the schema as indented JSON.
func String() (string, error) {
	b, err := json.MarshalIndent(Build(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest schema: %w", err)
	}

	return string(b), nil
}

// configSchema describes the "config" entry: a map of GlobalConfigItem
// name/value pairs, per spec.md §4.C.
func configSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: "Device-wide defaults (DefaultRegisterAccess, DefaultByteOrder, NameWordBoundaries, Version, ...).",
		AdditionalProperties: &jsonschema.Schema{
			Description: "A config value: a string, integer, or boolean depending on the setting.",
		},
	}
}

// objectSchema describes one named entry of the manifest root: a block,
// register, command, buffer, or ref, discriminated by its "type" key.
func objectSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		OneOf:    []*jsonschema.Schema{blockSchema(), registerSchema(), commandSchema(), bufferSchema(), refSchema()},
		Required: []string{"type"},
	}
}

func universalProperties(kindConst string) map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"type":        {Const: ConstValue(kindConst)},
		"description": {Type: "string"},
		"cfg":         {Type: "string", Description: "A conditional-compilation predicate; objects whose predicate does not hold are excluded."},
	}
}

func mergeProperties(dst map[string]*jsonschema.Schema, src map[string]*jsonschema.Schema) map[string]*jsonschema.Schema {
	for k, v := range src {
		dst[k] = v
	}

	return dst
}

func blockSchema() *jsonschema.Schema {
	props := universalProperties("block")
	mergeProperties(props, map[string]*jsonschema.Schema{
		"address_offset": {Type: "integer"},
		"repeat":         repeatSchema(),
		"objects": {
			Type:                 "object",
			AdditionalProperties: objectSchema(),
		},
	})

	return &jsonschema.Schema{Type: "object", Properties: props}
}

func registerSchema() *jsonschema.Schema {
	props := universalProperties("register")
	mergeProperties(props, map[string]*jsonschema.Schema{
		"access":                accessSchema(),
		"byte_order":            byteOrderSchema(),
		"bit_order":             bitOrderSchema(),
		"repeat":                repeatSchema(),
		"address":               {Type: "integer"},
		"size_bits":             {Type: "integer"},
		"reset_value":           resetValueSchema(),
		"allow_bit_overlap":     {Type: "boolean"},
		"allow_address_overlap": {Type: "boolean"},
		"fields": {
			Type:                 "object",
			AdditionalProperties: fieldSchema(),
		},
	})

	return &jsonschema.Schema{Type: "object", Properties: props}
}

func commandSchema() *jsonschema.Schema {
	props := universalProperties("command")
	mergeProperties(props, map[string]*jsonschema.Schema{
		"byte_order":            byteOrderSchema(),
		"bit_order":             bitOrderSchema(),
		"repeat":                repeatSchema(),
		"address":               {Type: "integer"},
		"allow_bit_overlap":     {Type: "boolean"},
		"allow_address_overlap": {Type: "boolean"},
		"size_bits_in":          {Type: "integer"},
		"size_bits_out":         {Type: "integer"},
		"fields_in": {
			Type:                 "object",
			AdditionalProperties: fieldSchema(),
		},
		"fields_out": {
			Type:                 "object",
			AdditionalProperties: fieldSchema(),
		},
	})

	return &jsonschema.Schema{Type: "object", Properties: props}
}

func bufferSchema() *jsonschema.Schema {
	props := universalProperties("buffer")
	mergeProperties(props, map[string]*jsonschema.Schema{
		"access":  accessSchema(),
		"address": {Type: "integer"},
	})

	return &jsonschema.Schema{Type: "object", Properties: props}
}

func refSchema() *jsonschema.Schema {
	props := universalProperties("ref")
	mergeProperties(props, map[string]*jsonschema.Schema{
		"target": {
			Type:        "string",
			Description: "The name of the block/register/command/buffer this ref resolves to.",
		},
		"override": {
			Type:        "object",
			Description: "Non-structural property overrides applied to a copy of the target (spec.md §4.E step 3).",
		},
	})

	return &jsonschema.Schema{Type: "object", Required: []string{"target"}, Properties: props}
}

func fieldSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"description": {Type: "string"},
			"cfg":         {Type: "string"},
			"access":      accessSchema(),
			"base_type":   {Type: "string", Enum: []any{"bool", "uint", "int"}},
			"bits": {
				Description: "A single bit index, or a [start, end) 2-element array.",
				OneOf: []*jsonschema.Schema{
					{Type: "integer"},
					{Type: "array", Items: &jsonschema.Schema{Type: "integer"}},
				},
			},
			"conversion":     conversionSchema(),
			"try_conversion": conversionSchema(),
		},
	}
}

func conversionSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "Either a type path string (external conversion) or an inline enum map of variant name to value/word/map.",
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{
				Type: "object",
				AdditionalProperties: &jsonschema.Schema{
					OneOf: []*jsonschema.Schema{
						{Type: "integer"},
						{Type: "string", Enum: []any{"default", "catch_all"}},
						{Type: "object"},
					},
				},
			},
		},
	}
}

func repeatSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"count", "stride"},
		Properties: map[string]*jsonschema.Schema{
			"count":  {Type: "integer"},
			"stride": {Type: "integer"},
		},
	}
}

func resetValueSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "A single integer, or an explicit byte array.",
		OneOf: []*jsonschema.Schema{
			{Type: "integer"},
			{Type: "array", Items: &jsonschema.Schema{Type: "integer"}},
		},
	}
}

func accessSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{"read_write", "read_only", "write_only", "RW", "RO", "WO"}}
}

func byteOrderSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{"LE", "BE"}}
}

func bitOrderSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{"LSB0", "MSB0"}}
}
