//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the span naming rules and metric instruments shared
// by the workflow packages. The public telemetry/trace and telemetry/metric
// packages install real providers; until then everything is a no-op.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-agent-foundry/errs"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
)

// Instrumentation constants.
const (
	InstrumentName = "trpc.agent.foundry"

	OperationCreateAgent = "create_agent"
	OperationInvokeAgent = "invoke_agent"
	OperationChat        = "chat"
	OperationExecuteTool = "execute_tool"
	OperationEvaluate    = "evaluate"
	OperationExecuteNode = "execute_node"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// NewCreateAgentSpanName returns e.g. "create_agent city-travel-agent".
func NewCreateAgentSpanName(agentName string) string {
	return spanName(OperationCreateAgent, agentName)
}

// NewInvokeAgentSpanName returns e.g. "invoke_agent asst_123".
func NewInvokeAgentSpanName(agentID string) string {
	return spanName(OperationInvokeAgent, agentID)
}

// NewChatSpanName returns e.g. "chat gpt-4o".
func NewChatSpanName(model string) string {
	return spanName(OperationChat, model)
}

// NewExecuteToolSpanName returns e.g. "execute_tool fetch_weather".
func NewExecuteToolSpanName(toolName string) string {
	return spanName(OperationExecuteTool, toolName)
}

// NewEvaluateSpanName returns e.g. "evaluate intent_resolution".
func NewEvaluateSpanName(evaluator string) string {
	return spanName(OperationEvaluate, evaluator)
}

// NewExecuteNodeSpanName returns e.g. "execute_node chatbot".
func NewExecuteNodeSpanName(nodeID string) string {
	return spanName(OperationExecuteNode, nodeID)
}

func spanName(op, target string) string {
	if target == "" {
		return op
	}
	return fmt.Sprintf("%s %s", op, target)
}

// ErrorType classifies err for the error.type attribute.
func ErrorType(err error) string {
	var (
		remote *errs.RemoteServiceError
		failed *errs.RunFailed
	)
	switch {
	case errors.As(err, &failed):
		if failed.Code != "" {
			return failed.Code
		}
		return "run_failed"
	case errors.As(err, &remote):
		if remote.Code != "" {
			return remote.Code
		}
		return "remote_service_error"
	case errs.IsTimeout(err):
		return "timeout"
	case errs.IsConfiguration(err):
		return "configuration_error"
	}
	return semconv.ValueDefaultErrorType
}

// TraceError marks span as failed with err.
func TraceError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.String(semconv.KeyErrorType, ErrorType(err)),
		attribute.String(semconv.KeyErrorMessage, err.Error()),
	)
}

// MessagePart is one part of a gen_ai message or instruction.
type MessagePart struct {
	Type      string          `json:"type"`
	Content   string          `json:"content,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Part types of MessagePart.
const (
	PartText             = "text"
	PartToolCall         = "tool_call"
	PartToolCallResponse = "tool_call_response"
)

// Message is one entry of gen_ai.input.messages or gen_ai.output.messages.
type Message struct {
	Role  string        `json:"role"`
	Parts []MessagePart `json:"parts"`
}

// TextMessage returns a message holding a single text part.
func TextMessage(role, text string) Message {
	return Message{Role: role, Parts: []MessagePart{{Type: PartText, Content: text}}}
}

// MessagesAttribute encodes msgs as the JSON array stored under key.
func MessagesAttribute(key string, msgs ...Message) attribute.KeyValue {
	if msgs == nil {
		msgs = []Message{}
	}
	return attribute.String(key, encodeJSON(msgs))
}

// InstructionsAttribute encodes the system instructions as text parts.
func InstructionsAttribute(instructions string) attribute.KeyValue {
	return attribute.String(semconv.KeyGenAISystemInstructions,
		encodeJSON([]MessagePart{{Type: PartText, Content: instructions}}))
}

func encodeJSON(v any) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(b.String(), "\n")
}
