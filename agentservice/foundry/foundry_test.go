//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package foundry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/errs"
)

type staticCredential struct {
	calls atomic.Int32
}

func (c *staticCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	c.calls.Add(1)
	return azcore.AccessToken{Token: "test-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fakeProject serves the subset of the Agents API used by the client.
func fakeProject(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []string
	)
	mux := http.NewServeMux()
	check := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "v1", r.URL.Query().Get("api-version"))
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			mu.Lock()
			seen = append(seen, r.Method+" "+r.URL.Path)
			mu.Unlock()
			next(w, r)
		}
	}
	mux.HandleFunc("POST /api/projects/p/assistants", check(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["model"] == "missing-model" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"error": map[string]any{
				"code": "invalid_model", "message": "model not found", "type": "invalid_request_error",
			}})
			return
		}
		tools, _ := body["tools"].([]any)
		writeJSON(w, map[string]any{
			"id": "asst_1", "object": "assistant", "created_at": 1700000000,
			"model": body["model"], "name": body["name"], "instructions": body["instructions"],
			"tools": tools,
		})
	}))
	mux.HandleFunc("DELETE /api/projects/p/assistants/{id}", check(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": r.PathValue("id"), "object": "assistant.deleted", "deleted": true})
	}))
	mux.HandleFunc("POST /api/projects/p/threads", check(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "thread_1", "object": "thread", "created_at": 1700000001})
	}))
	mux.HandleFunc("GET /api/projects/p/threads", check(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			writeJSON(w, map[string]any{"object": "list", "has_more": true, "last_id": "thread_2",
				"data": []any{
					map[string]any{"id": "thread_1", "object": "thread", "created_at": 1},
					map[string]any{"id": "thread_2", "object": "thread", "created_at": 2},
				}})
			return
		}
		writeJSON(w, map[string]any{"object": "list", "has_more": false,
			"data": []any{map[string]any{"id": "thread_3", "object": "thread", "created_at": 3}}})
	}))
	mux.HandleFunc("POST /api/projects/p/threads/{tid}/messages", check(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		content, _ := body["content"].(string)
		writeJSON(w, message("msg_1", "user", content, 10))
	}))
	mux.HandleFunc("GET /api/projects/p/threads/{tid}/messages", check(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "asc", r.URL.Query().Get("order"))
		writeJSON(w, map[string]any{"object": "list", "has_more": false, "first_id": "msg_1", "last_id": "msg_2",
			"data": []any{
				message("msg_1", "user", "Grüezi, wie geht's?", 10),
				message("msg_2", "assistant", "Gut, danke!", 11),
			}})
	}))
	mux.HandleFunc("POST /api/projects/p/threads/{tid}/runs", check(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, run("queued", nil))
	}))
	mux.HandleFunc("GET /api/projects/p/threads/{tid}/runs/{rid}", check(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, run("failed", map[string]any{"code": "rate_limit", "message": "Rate limit is exceeded."}))
	}))
	mux.HandleFunc("GET /api/projects/p/threads/{tid}/runs/{rid}/steps", check(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"object": "list", "has_more": false, "data": []any{
			map[string]any{
				"id": "step_1", "object": "thread.run.step", "run_id": "run_1", "type": "tool_calls",
				"step_details": map[string]any{"type": "tool_calls", "tool_calls": []any{
					map[string]any{"id": "call_1", "type": "function", "function": map[string]any{
						"name": "fetch_weather", "arguments": `{"location":"Seattle"}`, "output": "Rainy, 12C",
					}},
				}},
			},
		}})
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &seen
}

func message(id, role, text string, created int64) map[string]any {
	return map[string]any{
		"id": id, "object": "thread.message", "thread_id": "thread_1", "role": role, "created_at": created,
		"content": []any{map[string]any{"type": "text", "text": map[string]any{"value": text, "annotations": []any{}}}},
	}
}

func run(status string, lastErr map[string]any) map[string]any {
	return map[string]any{
		"id": "run_1", "object": "thread.run", "thread_id": "thread_1", "assistant_id": "asst_1",
		"status": status, "last_error": lastErr, "created_at": 1700000002,
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *staticCredential) {
	t.Helper()
	cred := &staticCredential{}
	c, err := New(srv.URL+"/api/projects/p", WithCredential(cred), WithMaxRetries(0))
	require.NoError(t, err)
	return c, cred
}

func TestClientWorkflow(t *testing.T) {
	ctx := context.Background()
	srv, seen := fakeProject(t)
	c, cred := newTestClient(t, srv)

	a, err := c.CreateAgent(ctx, agentservice.AgentSpec{
		Name: "city-travel-agent", Model: "gpt-4o", Instructions: "You are helpful agent",
		Tools: []agentservice.ToolDefinition{{Name: "fetch_weather", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "asst_1", a.ID)
	assert.Equal(t, "city-travel-agent", a.Name)
	require.Len(t, a.Tools, 1)
	assert.Equal(t, "fetch_weather", a.Tools[0].Name)

	th, err := c.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread_1", th.ID)

	m, err := c.CreateMessage(ctx, th.ID, agentservice.RoleUser, "Tell me about Seattle")
	require.NoError(t, err)
	text, ok := m.LastText()
	require.True(t, ok)
	assert.Equal(t, "Tell me about Seattle", text)

	r, err := c.CreateRun(ctx, th.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, agentservice.RunStatusQueued, r.Status)
	assert.Nil(t, r.LastError)

	r, err = c.GetRun(ctx, th.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, agentservice.RunStatusFailed, r.Status)
	require.NotNil(t, r.LastError)
	assert.Equal(t, "rate_limit", r.LastError.Code)

	msgs, err := c.ListMessages(ctx, th.ID, agentservice.OrderAscending, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	text, _ = msgs[0].LastText()
	assert.Equal(t, "Grüezi, wie geht's?", text)
	assert.Equal(t, agentservice.RoleAssistant, msgs[1].Role)

	steps, err := c.ListRunSteps(ctx, th.ID, r.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Len(t, steps[0].ToolCalls, 1)
	assert.Equal(t, "Rainy, 12C", steps[0].ToolCalls[0].Output)

	threads, err := c.ListThreads(ctx)
	require.NoError(t, err)
	assert.Len(t, threads, 3)

	require.NoError(t, c.DeleteAgent(ctx, a.ID))
	assert.Contains(t, *seen, "DELETE /api/projects/p/assistants/asst_1")
	// The bearer policy caches the token across requests.
	assert.Equal(t, int32(1), cred.calls.Load())
}

func TestClientMapsAPIErrors(t *testing.T) {
	srv, _ := fakeProject(t)
	c, _ := newTestClient(t, srv)

	_, err := c.CreateAgent(context.Background(), agentservice.AgentSpec{Model: "missing-model"})
	require.Error(t, err)
	var rerr *errs.RemoteServiceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusBadRequest, rerr.StatusCode)
	assert.Equal(t, "invalid_model", rerr.Code)
	assert.Equal(t, "create agent", rerr.Op)
	assert.Contains(t, err.Error(), "model not found")
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New("")
	assert.True(t, errs.IsConfiguration(err))
}
