//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package intentresolution judges whether the agent identified and resolved
// the user intent.
package intentresolution

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator/llm"
	"trpc.group/trpc-go/trpc-agent-foundry/model"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

// Name is the key under which the evaluator reports.
const Name = "intent_resolution"

var (
	intentResolutionPrompt = `
You are an expert in evaluating how well an AI agent understood and resolved the intent of a user.

### Input
System instructions of the agent:
{{.Instructions}}

Conversation so far:
{{.Query}}

Agent response:
{{.Response}}

Tool definitions available to the agent:
{{.ToolDefinitions}}

### Rating scale
1 - Response completely unrelated to the user intent.
2 - Response is minimally relevant; the intent is largely missed.
3 - Response partially resolves the intent; key parts are missing or wrong.
4 - Response resolves the intent with minor omissions or inaccuracies.
5 - Response fully and accurately resolves the intent.

### Output
Answer with a single JSON object and nothing else:
{"explanation": "<one or two sentences>", "score": <integer 1 to 5>}
`
	intentResolutionPromptTemplate = template.Must(template.New("intentResolutionPrompt").Parse(intentResolutionPrompt))
)

type promptData struct {
	Instructions    string
	Query           string
	Response        string
	ToolDefinitions string
}

type judge struct {
	llm.LikertScorer
}

// New returns the intent resolution evaluator backed by judge model m.
func New(m model.Model, opts ...llm.Option) *llm.LLMBaseEvaluator {
	return llm.New(Name, "Judges whether the agent identified and resolved the user intent.", judge{}, m, opts...)
}

// ConstructMessages builds the judge prompt from the record.
func (judge) ConstructMessages(_ context.Context, record *transcript.Record) ([]model.Message, error) {
	data := promptData{
		Instructions:    llm.SystemInstructions(record.Query),
		Query:           llm.FormatConversation(record.Query, false),
		Response:        llm.FormatConversation(record.Response, true),
		ToolDefinitions: llm.FormatToolDefinitions(record.ToolDefinitions),
	}
	var buf bytes.Buffer
	if err := intentResolutionPromptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute intent resolution prompt template: %w", err)
	}
	return []model.Message{model.NewUserMessage(buf.String())}, nil
}
