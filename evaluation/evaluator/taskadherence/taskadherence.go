//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package taskadherence judges how closely the agent response follows the
// assigned task and system instructions.
package taskadherence

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
const Name = "task_adherence"

var (
	taskAdherencePrompt = `
You are an expert evaluator. Rate how well the agent response adheres to the task given by the user
while respecting the system instructions of the agent.

### Input
System instructions:
{{.Instructions}}

Task (conversation up to the request):
{{.Query}}

Agent response, tool usage included:
{{.Response}}

### Rating scale
1 - Fully inadherent: ignores the task or contradicts the instructions.
2 - Barely adherent: addresses the task superficially.
3 - Moderately adherent: the task is addressed but important requirements are missed.
4 - Mostly adherent: the task is completed with small deviations.
5 - Fully adherent: the task is completed exactly as asked.

### Output
Answer with a single JSON object and nothing else:
{"explanation": "<one or two sentences>", "score": <integer 1 to 5>}
`
	taskAdherencePromptTemplate = template.Must(template.New("taskAdherencePrompt").Parse(taskAdherencePrompt))
)

type promptData struct {
	Instructions string
	Query        string
	Response     string
}

type judge struct {
	llm.LikertScorer
}

// New returns the task adherence evaluator backed by judge model m.
func New(m model.Model, opts ...llm.Option) *llm.LLMBaseEvaluator {
	return llm.New(Name, "Judges how closely the response follows the assigned task.", judge{}, m, opts...)
}

// ConstructMessages builds the judge prompt from the record.
func (judge) ConstructMessages(_ context.Context, record *transcript.Record) ([]model.Message, error) {
	instructions := llm.SystemInstructions(record.Query)
	if instructions == "" {
		instructions = "(none)"
	}
	data := promptData{
		Instructions: instructions,
		Query:        llm.FormatConversation(record.Query, false),
		Response:     llm.FormatConversation(record.Response, true),
	}
	var buf bytes.Buffer
	if err := taskAdherencePromptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute task adherence prompt template: %w", err)
	}
	return []model.Message{model.NewUserMessage(buf.String())}, nil
}
