//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/agentservice/inmemory"
	"trpc.group/trpc-go/trpc-agent-foundry/userfunctions"
)

const prompt = "Tell me about Seattle"

func newThread(t *testing.T, svc *inmemory.Service) (threadID, agentID string) {
	t.Helper()
	ctx := context.Background()
	agent, err := svc.CreateAgent(ctx, agentservice.AgentSpec{
		Name:         "city-travel-agent",
		Model:        "gpt-4o",
		Instructions: "You are helpful agent",
		Tools:        userfunctions.Set().Definitions(),
	})
	require.NoError(t, err)
	th, err := svc.CreateThread(ctx)
	require.NoError(t, err)
	_, err = svc.CreateMessage(ctx, th.ID, agentservice.RoleUser, prompt)
	require.NoError(t, err)
	return th.ID, agent.ID
}

func TestCollectUsesLastTextAndSkipsNonText(t *testing.T) {
	svc := inmemory.New()
	threadID, _ := newThread(t, svc)
	require.NoError(t, svc.AppendMessage(threadID, agentservice.Message{
		Role:    agentservice.RoleAssistant,
		Content: []agentservice.Content{{Type: agentservice.ContentImage}},
	}))
	require.NoError(t, svc.AppendMessage(threadID, agentservice.Message{
		Role: agentservice.RoleAssistant,
		Content: []agentservice.Content{
			{Type: agentservice.ContentText, Text: "draft"},
			{Type: agentservice.ContentImage},
			{Type: agentservice.ContentText, Text: "Seattle is in Washington."},
		},
	}))

	lines, err := NewCollector(svc).Collect(context.Background(), threadID)
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{Role: agentservice.RoleUser, Text: prompt},
		{Role: agentservice.RoleAssistant, Text: "Seattle is in Washington."},
	}, lines)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, lines))
	assert.Equal(t, "user: Tell me about Seattle\nassistant: Seattle is in Washington.\n", buf.String())
}

func TestCollectReportsServiceFailure(t *testing.T) {
	svc := inmemory.New()
	threadID, _ := newThread(t, svc)
	svc.FailOn(inmemory.OpListMessages, assert.AnError)
	_, err := NewCollector(svc).Collect(context.Background(), threadID)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPrepareRecoversToolCalls(t *testing.T) {
	script := inmemory.DefaultScript()
	script.Statuses = []agentservice.RunStatus{
		agentservice.RunStatusQueued,
		agentservice.RunStatusRequiresAction,
		agentservice.RunStatusCompleted,
	}
	script.ToolCalls = []agentservice.ToolCall{{
		ID: "call_1", Name: userfunctions.NameFetchWeather, Arguments: `{"location":"Seattle"}`,
	}}
	svc := inmemory.New(inmemory.WithRunScript(script))
	threadID, agentID := newThread(t, svc)
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, threadID, agentID)
	require.NoError(t, err)
	run, err = svc.GetRun(ctx, threadID, run.ID)
	require.NoError(t, err)
	require.Equal(t, agentservice.RunStatusRequiresAction, run.Status)
	outputs, err := userfunctions.Set().HandleToolCalls(ctx, run.RequiredToolCalls)
	require.NoError(t, err)
	run, err = svc.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
	require.NoError(t, err)
	require.Equal(t, agentservice.RunStatusCompleted, run.Status)

	records, err := NewConverter(svc).Prepare(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, threadID, rec.ThreadID)
	assert.Equal(t, run.ID, rec.RunID)
	assert.Len(t, rec.ToolDefinitions, 4)
	require.Len(t, rec.Query, 2)
	assert.Equal(t, RoleSystem, rec.Query[0].Role)
	assert.Equal(t, "You are helpful agent", rec.Query[0].Content[0].Text)
	assert.Equal(t, prompt, rec.LastUserText())

	require.Len(t, rec.Response, 3)
	assert.Equal(t, "assistant", rec.Response[0].Role)
	assert.Equal(t, ItemToolCall, rec.Response[0].Content[0].Type)
	assert.Equal(t, map[string]any{"location": "Seattle"}, rec.Response[0].Content[0].Arguments)
	assert.Equal(t, RoleTool, rec.Response[1].Role)
	assert.Equal(t, "call_1", rec.Response[1].ToolCallID)
	assert.Equal(t, map[string]any{"weather": "Drizzle, 14°C"}, rec.Response[1].Content[0].ToolResult)
	assert.Equal(t, "You asked: "+prompt, rec.FinalText())
	assert.Len(t, rec.ToolCalls(), 1)
}

func TestPrepareSkipsUnfinishedRuns(t *testing.T) {
	script := inmemory.DefaultScript()
	script.Statuses = []agentservice.RunStatus{agentservice.RunStatusFailed}
	svc := inmemory.New(inmemory.WithRunScript(script))
	threadID, agentID := newThread(t, svc)
	_, err := svc.CreateRun(context.Background(), threadID, agentID)
	require.NoError(t, err)

	records, err := NewConverter(svc).Prepare(context.Background(), threadID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPrepareFollowsConversationOrder(t *testing.T) {
	svc := inmemory.New(inmemory.WithRunScript(func() inmemory.RunScript {
		s := inmemory.DefaultScript()
		s.Statuses = []agentservice.RunStatus{agentservice.RunStatusCompleted}
		return s
	}()))
	threadID, agentID := newThread(t, svc)
	ctx := context.Background()
	first, err := svc.CreateRun(ctx, threadID, agentID)
	require.NoError(t, err)
	_, err = svc.CreateMessage(ctx, threadID, agentservice.RoleUser, "And Tokyo?")
	require.NoError(t, err)
	second, err := svc.CreateRun(ctx, threadID, agentID)
	require.NoError(t, err)

	records, err := NewConverter(svc).Prepare(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].RunID)
	assert.Equal(t, second.ID, records[1].RunID)
	assert.Equal(t, "And Tokyo?", records[1].LastUserText())
	// system, first prompt, first answer, second prompt
	assert.Len(t, records[1].Query, 4)
}

func TestJSONLKeepsOrderAndText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", DefaultFileName)
	records := []Record{
		{RunID: "run_1", Query: []ChatMessage{{Role: "user", Content: []Item{{Type: ItemText, Text: "<b>Zürich</b> & 14°C"}}}}},
		{RunID: "run_2", Query: []ChatMessage{{Role: "user", Content: []Item{{Type: ItemText, Text: "second"}}}}},
	}
	require.NoError(t, WriteJSONL(path, records))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<b>Zürich</b> & 14°C")
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, json.Valid([]byte(l)), l)
	}

	got, err := ReadJSONL(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run_1", got[0].RunID)
	assert.Equal(t, "run_2", got[1].RunID)
	assert.Equal(t, "<b>Zürich</b> & 14°C", got[0].LastUserText())
}

func TestDecodeReportsBadLine(t *testing.T) {
	_, err := Decode(strings.NewReader("{\"run_id\":\"a\"}\n\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}
