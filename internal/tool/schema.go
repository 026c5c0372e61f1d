//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool generates JSON schemas for function tool arguments.
package tool

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/tool"
)

// GenerateJSONSchema builds a schema from a Go type.
// Struct fields follow their json tags; a jsonschema tag adds
// "description=...", "enum=..." and "required".
func GenerateJSONSchema(t reflect.Type) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	return generate(t, map[reflect.Type]bool{})
}

func generate(t reflect.Type, seen map[reflect.Type]bool) *tool.Schema {
	switch t.Kind() {
	case reflect.Ptr:
		return generate(t.Elem(), seen)
	case reflect.String:
		return &tool.Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number"}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{Type: "array", Items: generate(t.Elem(), seen)}
	case reflect.Map:
		return &tool.Schema{Type: "object", AdditionalProperties: generate(t.Elem(), seen)}
	case reflect.Struct:
		// Recursive types collapse to a plain object.
		if seen[t] {
			return &tool.Schema{Type: "object"}
		}
		seen[t] = true
		defer delete(seen, t)
		return generateStruct(t, seen)
	default:
		return &tool.Schema{Type: "object"}
	}
}

func generateStruct(t reflect.Type, seen map[reflect.Type]bool) *tool.Schema {
	schema := &tool.Schema{Type: "object", Properties: map[string]*tool.Schema{}}
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
		omitEmpty := false
		if jsonTag != "" {
			n, rest, _ := strings.Cut(jsonTag, ",")
			if n != "" {
				name = n
			}
			omitEmpty = strings.Contains(rest, "omitempty")
		}
		fieldSchema := generate(field.Type, seen)
		requiredByTag, err := parseJSONSchemaTag(field.Type, field.Tag, fieldSchema)
		if err != nil {
			log.Errorf("parseJSONSchemaTag error for field %s: %v", name, err)
		}
		if (field.Type.Kind() != reflect.Ptr && !omitEmpty) || requiredByTag {
			schema.Required = append(schema.Required, name)
		}
		schema.Properties[name] = fieldSchema
	}
	return schema
}

// parseJSONSchemaTag applies the jsonschema tag to schema and reports
// whether the field is explicitly required.
func parseJSONSchemaTag(fieldType reflect.Type, tag reflect.StructTag, schema *tool.Schema) (bool, error) {
	raw := tag.Get("jsonschema")
	if raw == "" {
		return false, nil
	}
	for fieldType.Kind() == reflect.Ptr {
		fieldType = fieldType.Elem()
	}
	required := false
	for _, item := range strings.Split(raw, ",") {
		key, value, hasValue := strings.Cut(item, "=")
		if !hasValue {
			if key == "required" {
				required = true
			}
			continue
		}
		switch key {
		case "description":
			schema.Description = value
		case "default":
			schema.Default = value
		case "enum":
			v, err := enumValue(fieldType, value)
			if err != nil {
				return required, err
			}
			schema.Enum = append(schema.Enum, v)
		}
	}
	return required, nil
}

func enumValue(t reflect.Type, value string) (any, error) {
	switch t.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %v to int64 failed: %w", value, err)
		}
		return v, nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %v to float64 failed: %w", value, err)
		}
		return v, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %v to bool failed: %w", value, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("enum tag unsupported for field type: %v", t)
	}
}
