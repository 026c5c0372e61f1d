//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/agentservice/inmemory"
	"trpc.group/trpc-go/trpc-agent-foundry/config"
	"trpc.group/trpc-go/trpc-agent-foundry/errs"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-foundry/userfunctions"
)

func setup(t *testing.T, script inmemory.RunScript) (*inmemory.Service, string, string) {
	t.Helper()
	ctx := context.Background()
	svc := inmemory.New(inmemory.WithRunScript(script))
	agent, err := svc.CreateAgent(ctx, agentservice.AgentSpec{Name: "a", Model: "gpt-4o"})
	require.NoError(t, err)
	th, err := svc.CreateThread(ctx)
	require.NoError(t, err)
	_, err = svc.CreateMessage(ctx, th.ID, agentservice.RoleUser, "Tell me about Seattle")
	require.NoError(t, err)
	return svc, th.ID, agent.ID
}

func statuses(s ...agentservice.RunStatus) inmemory.RunScript {
	script := inmemory.DefaultScript()
	script.Statuses = s
	return script
}

func TestRunPollsUntilCompleted(t *testing.T) {
	svc, threadID, agentID := setup(t, inmemory.DefaultScript())
	var seen []agentservice.RunStatus
	p := New(svc, WithInterval(time.Millisecond), WithObserver(func(r *agentservice.Run) {
		seen = append(seen, r.Status)
	}))

	run, err := p.Run(context.Background(), threadID, agentID)
	require.NoError(t, err)
	assert.Equal(t, agentservice.RunStatusCompleted, run.Status)
	assert.Equal(t, []agentservice.RunStatus{agentservice.RunStatusInProgress, agentservice.RunStatusCompleted}, seen)
	assert.Equal(t, 2, svc.Calls(inmemory.OpGetRun))
}

func TestNoPollAfterTerminal(t *testing.T) {
	svc, threadID, agentID := setup(t, statuses(agentservice.RunStatusCompleted))
	run, err := New(svc, WithInterval(time.Millisecond)).Run(context.Background(), threadID, agentID)
	require.NoError(t, err)
	assert.Equal(t, agentservice.RunStatusCompleted, run.Status)
	assert.Equal(t, 0, svc.Calls(inmemory.OpGetRun))
}

func TestFailedRunIsReported(t *testing.T) {
	script := statuses(agentservice.RunStatusQueued, agentservice.RunStatusFailed)
	script.LastError = &agentservice.RunError{Code: "rate_limit"}
	svc, threadID, agentID := setup(t, script)

	run, err := New(svc, WithInterval(time.Millisecond)).Run(context.Background(), threadID, agentID)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, agentservice.RunStatusFailed, run.Status)
	assert.True(t, errs.IsRunFailed(err))
	var failed *errs.RunFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, `{"code":"rate_limit"}`, failed.Detail())
	assert.Equal(t, 1, svc.Calls(inmemory.OpGetRun))
}

func TestMaxAttemptsTimeout(t *testing.T) {
	svc, threadID, agentID := setup(t, statuses(agentservice.RunStatusQueued, agentservice.RunStatusInProgress))
	run, err := New(svc, WithInterval(time.Millisecond), WithMaxAttempts(3)).Run(context.Background(), threadID, agentID)
	require.Error(t, err)
	assert.True(t, errs.IsTimeout(err))
	var timeout *errs.Timeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, string(agentservice.RunStatusInProgress), timeout.LastStatus)
	assert.Equal(t, run.ID, timeout.RunID)
	assert.Equal(t, 3, svc.Calls(inmemory.OpGetRun))
}

func TestMaxDurationTimeout(t *testing.T) {
	svc, threadID, agentID := setup(t, statuses(agentservice.RunStatusQueued, agentservice.RunStatusInProgress))
	p := New(svc, WithConfig(config.PollConfig{Interval: time.Millisecond, MaxDuration: 5 * time.Second}))
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	_, err := p.Run(context.Background(), threadID, agentID)
	require.Error(t, err)
	var timeout *errs.Timeout
	require.ErrorAs(t, err, &timeout)
	assert.GreaterOrEqual(t, timeout.Elapsed, 5*time.Second)
	assert.Less(t, svc.Calls(inmemory.OpGetRun), 5)
}

func TestWaitHonorsContext(t *testing.T) {
	svc, threadID, agentID := setup(t, inmemory.DefaultScript())
	run, err := svc.CreateRun(context.Background(), threadID, agentID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := New(svc, WithInterval(time.Hour)).Wait(ctx, run)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 0, svc.Calls(inmemory.OpGetRun))
}

func TestGetRunFailureIsReturned(t *testing.T) {
	svc, threadID, agentID := setup(t, inmemory.DefaultScript())
	svc.FailOn(inmemory.OpGetRun, errors.New("throttled"))
	_, err := New(svc, WithInterval(time.Millisecond)).Run(context.Background(), threadID, agentID)
	assert.True(t, errs.IsRemote(err))
}

func TestToolHandlerResolvesRequiredAction(t *testing.T) {
	script := statuses(
		agentservice.RunStatusQueued,
		agentservice.RunStatusRequiresAction,
		agentservice.RunStatusInProgress,
		agentservice.RunStatusCompleted,
	)
	script.ToolCalls = []agentservice.ToolCall{{
		ID: "call_1", Name: userfunctions.NameFetchWeather, Arguments: `{"location":"Seattle"}`,
	}}
	svc, threadID, agentID := setup(t, script)

	run, err := New(svc, WithInterval(time.Millisecond), WithToolHandler(userfunctions.Set())).
		Run(context.Background(), threadID, agentID)
	require.NoError(t, err)
	assert.Equal(t, agentservice.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, svc.Calls(inmemory.OpSubmitToolOutputs))

	steps, err := svc.ListRunSteps(context.Background(), threadID, run.ID)
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.Equal(t, agentservice.RunStepToolCalls, steps[0].Type)
	assert.JSONEq(t, `{"weather":"Drizzle, 14°C"}`, steps[0].ToolCalls[0].Output)
}

func TestRequiresActionWithoutHandlerKeepsPolling(t *testing.T) {
	script := statuses(agentservice.RunStatusQueued, agentservice.RunStatusRequiresAction, agentservice.RunStatusCompleted)
	svc, threadID, agentID := setup(t, script)
	run, err := New(svc, WithInterval(time.Millisecond)).Run(context.Background(), threadID, agentID)
	require.NoError(t, err)
	assert.Equal(t, agentservice.RunStatusCompleted, run.Status)
	assert.Equal(t, 0, svc.Calls(inmemory.OpSubmitToolOutputs))
	assert.Equal(t, 2, svc.Calls(inmemory.OpGetRun))
}

func TestRunCreatedIsNotifiedBeforePolling(t *testing.T) {
	svc, threadID, agentID := setup(t, inmemory.DefaultScript())
	var events []string
	p := New(svc, WithInterval(time.Millisecond),
		WithRunCreated(func(r *agentservice.Run) { events = append(events, "created "+r.ID) }),
		WithObserver(func(r *agentservice.Run) { events = append(events, string(r.Status)) }),
	)
	run, err := p.Run(context.Background(), threadID, agentID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "created "+run.ID, events[0])
	assert.Len(t, events, 3)
}

// cancelAfter cancels the poll context once it has answered n tool calls.
type cancelAfter struct {
	ToolHandler
	n      int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelAfter) HandleToolCalls(ctx context.Context, calls []agentservice.ToolCall) ([]agentservice.ToolOutput, error) {
	out, err := c.ToolHandler.HandleToolCalls(ctx, calls)
	c.calls++
	if c.calls >= c.n {
		c.cancel()
	}
	return out, err
}

func stuckInRequiresAction(t *testing.T) (*inmemory.Service, string, string) {
	t.Helper()
	script := statuses(agentservice.RunStatusRequiresAction)
	script.ToolCalls = []agentservice.ToolCall{{
		ID: "call_1", Name: userfunctions.NameFetchWeather, Arguments: `{"location":"Seattle"}`,
	}}
	return setup(t, script)
}

func TestToolSubmissionsCountAsAttempts(t *testing.T) {
	svc, threadID, agentID := stuckInRequiresAction(t)
	run, err := New(svc, WithInterval(time.Millisecond), WithMaxAttempts(3), WithToolHandler(userfunctions.Set())).
		Run(context.Background(), threadID, agentID)
	require.Error(t, err)
	var timeout *errs.Timeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, string(agentservice.RunStatusRequiresAction), timeout.LastStatus)
	assert.Equal(t, agentservice.RunStatusRequiresAction, run.Status)
	assert.Equal(t, 3, svc.Calls(inmemory.OpSubmitToolOutputs))
	assert.Equal(t, 0, svc.Calls(inmemory.OpGetRun))
}

func TestToolSubmissionsHonorMaxDuration(t *testing.T) {
	svc, threadID, agentID := stuckInRequiresAction(t)
	p := New(svc, WithMaxDuration(5*time.Second), WithToolHandler(userfunctions.Set()))
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	_, err := p.Run(context.Background(), threadID, agentID)
	require.Error(t, err)
	assert.True(t, errs.IsTimeout(err))
	assert.Less(t, svc.Calls(inmemory.OpSubmitToolOutputs), 5)
}

func TestToolSubmissionsHonorContext(t *testing.T) {
	svc, threadID, agentID := stuckInRequiresAction(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := &cancelAfter{ToolHandler: userfunctions.Set(), n: 2, cancel: cancel}

	run, err := New(svc, WithToolHandler(handler)).Run(ctx, threadID, agentID)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	assert.Equal(t, 2, handler.calls)
	assert.Equal(t, 2, svc.Calls(inmemory.OpSubmitToolOutputs))
}

func runSpanAttrs(t *testing.T, content bool) (map[string]string, *inmemory.Service) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	clean, err := atrace.Start(context.Background(), atrace.WithExporter(exp), atrace.WithContentRecording(content))
	require.NoError(t, err)
	defer func() {
		_ = clean()
		atrace.SetContentRecording(false)
	}()

	svc, threadID, agentID := setup(t, inmemory.DefaultScript())
	_, err = New(svc, WithInterval(time.Millisecond)).Run(context.Background(), threadID, agentID)
	require.NoError(t, err)

	for _, s := range exp.GetSpans() {
		if s.Name == "invoke_agent "+agentID {
			attrs := map[string]string{}
			for _, kv := range s.Attributes {
				attrs[string(kv.Key)] = kv.Value.Emit()
			}
			return attrs, svc
		}
	}
	t.Fatal("run span not recorded")
	return nil, nil
}

func TestRunRecordsReplyWhenContentEnabled(t *testing.T) {
	attrs, _ := runSpanAttrs(t, true)
	assert.JSONEq(t,
		`[{"role":"assistant","parts":[{"type":"text","content":"You asked: Tell me about Seattle"}]}]`,
		attrs[semconv.KeyGenAIOutputMessages])
	assert.Equal(t, string(agentservice.RunStatusCompleted), attrs[semconv.KeyRunStatus])
}

func TestRunOmitsReplyWhenContentDisabled(t *testing.T) {
	attrs, svc := runSpanAttrs(t, false)
	assert.NotContains(t, attrs, semconv.KeyGenAIOutputMessages)
	assert.Equal(t, 0, svc.Calls(inmemory.OpListMessages))
}
