//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package toolcallaccuracy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
	"trpc.group/trpc-go/trpc-agent-foundry/model"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

type stubModel struct {
	answer string
	prompt string
	calls  int
}

func (m *stubModel) Info() model.Info { return model.Info{Name: "judge"} }

func (m *stubModel) GenerateContent(_ context.Context, req *model.Request) (<-chan *model.Response, error) {
	m.calls++
	m.prompt = req.Messages[len(req.Messages)-1].Content
	ch := make(chan *model.Response, 1)
	ch <- &model.Response{Choices: []model.Choice{{Message: model.NewAssistantMessage(m.answer)}}, Done: true}
	close(ch)
	return ch, nil
}

func record(withTool bool) *transcript.Record {
	rec := &transcript.Record{
		ThreadID: "thread_1",
		RunID:    "run_1",
		Query: []transcript.ChatMessage{
			{Role: transcript.RoleSystem, Content: []transcript.Item{{Type: transcript.ItemText, Text: "You are helpful agent"}}},
			{Role: "user", Content: []transcript.Item{{Type: transcript.ItemText, Text: "Tell me about Seattle"}}},
		},
		ToolDefinitions: []agentservice.ToolDefinition{{Name: "fetch_weather", Description: "Fetches the weather for a location."}},
	}
	if withTool {
		rec.Response = append(rec.Response, transcript.ChatMessage{Role: "assistant", Content: []transcript.Item{
			{Type: transcript.ItemToolCall, ToolCallID: "call_1", Name: "fetch_weather", Arguments: map[string]any{"location": "Seattle"}},
		}})
	}
	rec.Response = append(rec.Response, transcript.ChatMessage{Role: "assistant", Content: []transcript.Item{
		{Type: transcript.ItemText, Text: "Seattle is a city in Washington."},
	}})
	return rec
}

func TestToolCallAccuracy(t *testing.T) {
	m := &stubModel{answer: `{"explanation": "Right tool, right city.", "score": 5}`}
	e := New(m)
	assert.Equal(t, Name, e.Name())
	res, err := e.EvaluateRecord(context.Background(), record(true))
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Score)
	assert.Equal(t, status.EvalStatusPassed, res.Status)
	assert.Contains(t, m.prompt, `[TOOL_CALL] fetch_weather({"location":"Seattle"})`)
	assert.Contains(t, m.prompt, "Fetches the weather for a location.")
}

func TestToolCallAccuracyWithoutToolCalls(t *testing.T) {
	m := &stubModel{answer: `{"score": 5}`}
	res, err := New(m).Evaluate(context.Background(), []*transcript.Record{record(false)})
	require.NoError(t, err)
	assert.Zero(t, m.calls)
	assert.Equal(t, status.EvalStatusNotEvaluated, res.OverallStatus)
	require.Len(t, res.PerRecord, 1)
	assert.Equal(t, ReasonNoToolCalls, res.PerRecord[0].Reason)
}
