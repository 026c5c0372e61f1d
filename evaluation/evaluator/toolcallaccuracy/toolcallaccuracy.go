//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package toolcallaccuracy judges whether the tool calls of the agent were
// relevant and correctly parameterized.
package toolcallaccuracy

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator/llm"
	"trpc.group/trpc-go/trpc-agent-foundry/model"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

const (
	// Name is the key under which the evaluator reports.
	Name = "tool_call_accuracy"
	// ReasonNoToolCalls is reported for records whose response calls no tool.
	ReasonNoToolCalls = "no tool calls found"
)

var (
	toolCallAccuracyPrompt = `
You are an expert in judging the tool calls made by an AI agent.
Decide whether the calls were needed for the conversation, chose the right tools
and passed arguments grounded in the conversation.

### Input
Conversation:
{{.Query}}

Tool calls made by the agent:
{{.ToolCalls}}

Tool definitions:
{{.ToolDefinitions}}

### Rating scale
1 - Irrelevant calls: the tools do not help with the request.
2 - Relevant tools with wrong or made-up arguments.
3 - Relevant calls with unnecessary or missing calls.
4 - Correct calls with minor inefficiencies.
5 - Optimal calls: every needed tool, correct arguments, nothing superfluous.

### Output
Answer with a single JSON object and nothing else:
{"explanation": "<one or two sentences>", "score": <integer 1 to 5>}
`
	toolCallAccuracyPromptTemplate = template.Must(template.New("toolCallAccuracyPrompt").Parse(toolCallAccuracyPrompt))
)

type promptData struct {
	Query           string
	ToolCalls       string
	ToolDefinitions string
}

type judge struct {
	llm.LikertScorer
}

// New returns the tool call accuracy evaluator backed by judge model m.
func New(m model.Model, opts ...llm.Option) *llm.LLMBaseEvaluator {
	return llm.New(Name, "Judges relevance and parameter correctness of tool calls.", judge{}, m, opts...)
}

// Applicable rejects records without tool calls.
func (judge) Applicable(record *transcript.Record) (bool, string) {
	if len(record.ToolCalls()) == 0 {
		return false, ReasonNoToolCalls
	}
	return true, ""
}

// ConstructMessages builds the judge prompt from the record.
func (judge) ConstructMessages(_ context.Context, record *transcript.Record) ([]model.Message, error) {
	data := promptData{
		Query:           llm.FormatConversation(record.Query, false),
		ToolCalls:       llm.FormatToolCalls(record.ToolCalls()),
		ToolDefinitions: llm.FormatToolDefinitions(record.ToolDefinitions),
	}
	var buf bytes.Buffer
	if err := toolCallAccuracyPromptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute tool call accuracy prompt template: %w", err)
	}
	return []model.Message{model.NewUserMessage(buf.String())}, nil
}
