//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool defines the function tools an agent may call and the
// executor that answers a run's requires_action step with their outputs.
package tool

import (
	"context"
	"encoding/json"
)

// Schema is the JSON schema of tool arguments or results.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Default              any                `json:"default,omitempty"`
}

// Map returns the schema as a generic JSON object.
func (s *Schema) Map() map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// Declaration describes a tool to the model.
type Declaration struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	InputSchema  *Schema `json:"inputSchema"`
	OutputSchema *Schema `json:"outputSchema,omitempty"`
}

// Tool is anything the model can be told about.
type Tool interface {
	Declaration() *Declaration
}

// CallableTool can be executed with JSON encoded arguments.
type CallableTool interface {
	Tool
	Call(ctx context.Context, jsonArgs []byte) (any, error)
}
