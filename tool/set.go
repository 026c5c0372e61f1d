//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
)

// Set is a named collection of callable tools.
// It is not safe for concurrent mutation; build it before use.
type Set struct {
	tools map[string]CallableTool
}

// NewSet returns a Set holding tools. A later tool replaces an earlier
// one with the same name.
func NewSet(tools ...CallableTool) *Set {
	s := &Set{tools: make(map[string]CallableTool, len(tools))}
	for _, t := range tools {
		s.tools[t.Declaration().Name] = t
	}
	return s
}

// Get returns the tool called name.
func (s *Set) Get(name string) (CallableTool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Names returns the tool names in lexical order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.tools))
	for n := range s.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Tools returns the tools in name order.
func (s *Set) Tools() []CallableTool {
	out := make([]CallableTool, 0, len(s.tools))
	for _, n := range s.Names() {
		out = append(out, s.tools[n])
	}
	return out
}

// Filter returns a Set with the tools accepted by keep.
func (s *Set) Filter(keep Filter) *Set {
	out := &Set{tools: map[string]CallableTool{}}
	for n, t := range s.tools {
		if keep == nil || keep(n) {
			out.tools[n] = t
		}
	}
	return out
}

// Definitions returns the declarations attached to an agent.
func (s *Set) Definitions() []agentservice.ToolDefinition {
	defs := make([]agentservice.ToolDefinition, 0, len(s.tools))
	for _, t := range s.Tools() {
		decl := t.Declaration()
		defs = append(defs, agentservice.ToolDefinition{
			Name:        decl.Name,
			Description: decl.Description,
			Parameters:  decl.InputSchema.Map(),
		})
	}
	return defs
}

// HandleToolCalls executes each requested call and returns one output per
// call, in request order. Tool failures become error outputs for the model
// and are not returned as errors.
func (s *Set) HandleToolCalls(ctx context.Context, calls []agentservice.ToolCall) ([]agentservice.ToolOutput, error) {
	outputs := make([]agentservice.ToolOutput, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outputs = append(outputs, agentservice.ToolOutput{
			ToolCallID: call.ID,
			Output:     s.execute(ctx, call),
		})
	}
	return outputs, nil
}

// Execute runs one call and returns its output text.
func (s *Set) Execute(ctx context.Context, call agentservice.ToolCall) string {
	return s.execute(ctx, call)
}

func (s *Set) execute(ctx context.Context, call agentservice.ToolCall) string {
	ctx, span := atrace.Tracer.Start(ctx, itelemetry.NewExecuteToolSpanName(call.Name))
	defer span.End()
	span.SetAttributes(
		attribute.String(semconv.KeyGenAIOperationName, itelemetry.OperationExecuteTool),
		attribute.String(semconv.KeyGenAIToolName, call.Name),
		attribute.String(semconv.KeyGenAIToolCallID, call.ID),
	)
	if atrace.ContentRecordingEnabled() {
		span.SetAttributes(attribute.String(semconv.KeyGenAIToolCallArguments, call.Arguments))
	}

	t, ok := s.tools[call.Name]
	if !ok {
		itelemetry.IncToolCall(ctx, call.Name, semconv.ValueToolOutcomeUnavailable)
		err := fmt.Errorf("tool %s is not available", call.Name)
		itelemetry.TraceError(span, err)
		log.WarnfContext(ctx, "tool: %v", err)
		return errorOutput(err)
	}
	result, err := t.Call(ctx, []byte(call.Arguments))
	if err != nil {
		itelemetry.IncToolCall(ctx, call.Name, semconv.ValueToolOutcomeError)
		itelemetry.TraceError(span, err)
		log.WarnfContext(ctx, "tool: %s failed: %v", call.Name, err)
		return errorOutput(err)
	}
	out, err := encodeResult(result)
	if err != nil {
		itelemetry.IncToolCall(ctx, call.Name, semconv.ValueToolOutcomeError)
		itelemetry.TraceError(span, err)
		return errorOutput(err)
	}
	itelemetry.IncToolCall(ctx, call.Name, semconv.ValueToolOutcomeSuccess)
	if atrace.ContentRecordingEnabled() {
		span.SetAttributes(attribute.String(semconv.KeyGenAIToolCallResult, out))
	}
	return out
}

func encodeResult(v any) (string, error) {
	switch r := v.(type) {
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}

func errorOutput(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

// Filter selects tools by name.
type Filter func(name string) bool

// IncludeNames creates a Filter that includes only the specified tool names.
func IncludeNames(names ...string) Filter {
	allowed := make(map[string]bool)
	for _, name := range names {
		allowed[name] = true
	}
	return func(name string) bool {
		return allowed[name]
	}
}

// ExcludeNames creates a Filter that excludes the specified tool names.
func ExcludeNames(names ...string) Filter {
	excluded := make(map[string]bool)
	for _, name := range names {
		excluded[name] = true
	}
	return func(name string) bool {
		return !excluded[name]
	}
}
