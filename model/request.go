//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import "trpc.group/trpc-go/trpc-agent-foundry/tool"

// Role is the author of a chat message.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) String() string {
	return string(r)
}

// Message is one chat turn sent to or returned by a chat deployment.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	// ToolID and ToolName are set on tool messages and name the call they
	// answer.
	ToolID   string `json:"tool_id,omitempty"`
	ToolName string `json:"tool_name,omitempty"`
	// ToolCalls are the calls an assistant message asks for.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// NewSystemMessage returns a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage returns a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage returns an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage returns the answer to the tool call toolID.
func NewToolMessage(toolID, toolName, content string) Message {
	return Message{Role: RoleTool, ToolID: toolID, ToolName: toolName, Content: content}
}

// GenerationConfig holds the sampling settings of a request. Nil fields
// keep the deployment defaults.
type GenerationConfig struct {
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	// JSONMode asks for a single JSON object, as the evaluator judges do.
	JSONMode bool `json:"json_mode,omitempty"`
}

// Request is one chat completion request.
type Request struct {
	Messages []Message `json:"messages"`

	GenerationConfig `json:",inline"`

	// Tools are offered to the model as functions, keyed by name.
	Tools map[string]tool.Tool `json:"-"`
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	// Type is always "function".
	Type     string       `json:"type"`
	Function FunctionCall `json:"function,omitempty"`
	ID       string       `json:"id,omitempty"`
}

// FunctionCall names the function of a tool call and carries its JSON
// encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments []byte `json:"arguments,omitempty"`
}
