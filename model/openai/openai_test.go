//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"trpc.group/trpc-go/trpc-agent-foundry/model"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-foundry/tool"
	"trpc.group/trpc-go/trpc-agent-foundry/userfunctions"
)

type captured struct {
	mu      sync.Mutex
	path    string
	query   string
	headers http.Header
	body    map[string]any
}

func fakeChat(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		c.mu.Lock()
		c.path, c.query, c.headers, c.body = r.URL.Path, r.URL.RawQuery, r.Header.Clone(), body
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

const scoreReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1718000000,
  "model": "gpt-4o",
  "choices": [{"index": 0, "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"score\": 4, \"explanation\": \"ok\"}"}}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
}`

const toolCallReply = `{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "created": 1718000000,
  "model": "gpt-4o",
  "choices": [{"index": 0, "finish_reason": "tool_calls",
    "message": {"role": "assistant", "content": "",
      "tool_calls": [{"id": "call_9", "type": "function",
        "function": {"name": "calculate_sum", "arguments": "{\"a\":1,\"b\":2}"}}]}}]
}`

func TestAzureDeploymentRequest(t *testing.T) {
	srv, c := fakeChat(t, http.StatusOK, scoreReply)
	m := New("judge",
		WithAzureEndpoint(srv.URL, "2025-01-01-preview"),
		WithAPIKey("azure-key"),
		WithHTTPClient(srv.Client()),
		WithMaxRetries(0),
	)
	assert.Equal(t, "judge", m.Info().Name)

	temp := 0.0
	rsp, err := model.Generate(context.Background(), m, &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("You are a judge."),
			model.NewUserMessage("Rate this."),
		},
		GenerationConfig: model.GenerationConfig{Temperature: &temp, JSONMode: true},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score": 4, "explanation": "ok"}`, rsp.Content())
	require.NotNil(t, rsp.Usage)
	assert.Equal(t, 19, rsp.Usage.TotalTokens)
	assert.Equal(t, "stop", *rsp.Choices[0].FinishReason)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Contains(t, c.path, "/deployments/judge/chat/completions")
	assert.Contains(t, c.query, "api-version=2025-01-01-preview")
	assert.Equal(t, "azure-key", c.headers.Get("Api-Key"))
	msgs, ok := c.body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
	format, ok := c.body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestToolCallsRoundTrip(t *testing.T) {
	srv, c := fakeChat(t, http.StatusOK, toolCallReply)
	m := New("gpt-4o", WithBaseURL(srv.URL), WithAPIKey("sk-test"), WithMaxRetries(0))

	tools := map[string]tool.Tool{}
	for _, tl := range userfunctions.Tools() {
		tools[tl.Declaration().Name] = tl
	}
	rsp, err := model.Generate(context.Background(), m, &model.Request{
		Messages: []model.Message{
			model.NewUserMessage("What is 1+2?"),
			{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{
				ID: "call_0", Type: functionToolType,
				Function: model.FunctionCall{Name: "calculate_sum", Arguments: []byte(`{"a":0,"b":0}`)},
			}}},
			model.NewToolMessage("call_0", "calculate_sum", `{"result":0}`),
		},
		Tools: tools,
	})
	require.NoError(t, err)
	require.True(t, rsp.IsToolCallResponse())
	call := rsp.Choices[0].Message.ToolCalls[0]
	assert.Equal(t, "call_9", call.ID)
	assert.Equal(t, "calculate_sum", call.Function.Name)
	assert.JSONEq(t, `{"a":1,"b":2}`, string(call.Function.Arguments))
	assert.Nil(t, rsp.Usage)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.True(t, strings.HasSuffix(c.path, "/chat/completions"))
	assert.Equal(t, "Bearer sk-test", c.headers.Get("Authorization"))
	declared, ok := c.body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, declared, 4)
	first := declared[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, userfunctions.NameCalculateSum, first["name"])
	msgs := c.body["messages"].([]any)
	assert.Equal(t, "tool", msgs[2].(map[string]any)["role"])
	assert.Equal(t, "call_0", msgs[2].(map[string]any)["tool_call_id"])
}

func TestAPIErrorBecomesResponseError(t *testing.T) {
	srv, _ := fakeChat(t, http.StatusForbidden,
		`{"error":{"message":"denied","type":"invalid_request_error","code":"PermissionDenied"}}`)
	m := New("gpt-4o", WithBaseURL(srv.URL), WithAPIKey("sk-test"), WithMaxRetries(0))

	rsp, err := model.Generate(context.Background(), m, &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.Error(t, err)
	require.NotNil(t, rsp)
	require.NotNil(t, rsp.Error)
	assert.Equal(t, model.ErrorTypeAPIError, rsp.Error.Type)
}

func TestNilRequest(t *testing.T) {
	_, err := New("gpt-4o").GenerateContent(context.Background(), nil)
	assert.Error(t, err)
}

func chatSpanAttrs(t *testing.T, content bool, reply string, req *model.Request) map[string]string {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	clean, err := atrace.Start(context.Background(), atrace.WithExporter(exp), atrace.WithContentRecording(content))
	require.NoError(t, err)
	defer func() {
		_ = clean()
		atrace.SetContentRecording(false)
	}()

	srv, _ := fakeChat(t, http.StatusOK, reply)
	m := New("gpt-4o", WithBaseURL(srv.URL), WithAPIKey("sk-test"), WithMaxRetries(0))
	_, err = model.Generate(context.Background(), m, req)
	require.NoError(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "chat gpt-4o", spans[0].Name)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	return attrs
}

func TestChatSpanRecordsMessagesWhenContentEnabled(t *testing.T) {
	attrs := chatSpanAttrs(t, true, toolCallReply, &model.Request{Messages: []model.Message{
		model.NewSystemMessage("You are a calculator."),
		model.NewUserMessage("What is 1+2?"),
		model.NewToolMessage("call_0", "calculate_sum", `{"result":0}`),
	}})
	assert.JSONEq(t, `[
		{"role":"system","parts":[{"type":"text","content":"You are a calculator."}]},
		{"role":"user","parts":[{"type":"text","content":"What is 1+2?"}]},
		{"role":"tool","parts":[{"type":"tool_call_response","id":"call_0","content":"{\"result\":0}"}]}
	]`, attrs[semconv.KeyGenAIInputMessages])
	assert.JSONEq(t, `[{"role":"assistant","parts":[
		{"type":"tool_call","id":"call_9","name":"calculate_sum","arguments":{"a":1,"b":2}}
	]}]`, attrs[semconv.KeyGenAIOutputMessages])
}

func TestChatSpanOmitsMessagesWhenContentDisabled(t *testing.T) {
	attrs := chatSpanAttrs(t, false, scoreReply, &model.Request{Messages: []model.Message{
		model.NewUserMessage("Rate this."),
	}})
	assert.NotContains(t, attrs, semconv.KeyGenAIInputMessages)
	assert.NotContains(t, attrs, semconv.KeyGenAIOutputMessages)
	assert.Equal(t, "gpt-4o", attrs[semconv.KeyGenAIResponseModel])
}
