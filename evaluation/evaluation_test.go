//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package evaluation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-foundry/errs"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult/inmemory"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator/llm"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

// lengthEvaluator scores a record by the length of its final answer.
type lengthEvaluator struct {
	name  string
	calls atomic.Int32
	fail  bool
}

func (e *lengthEvaluator) Name() string        { return e.name }
func (e *lengthEvaluator) Description() string { return "scores by answer length" }
func (e *lengthEvaluator) Threshold() float64  { return evaluator.DefaultThreshold }

func (e *lengthEvaluator) EvaluateRecord(_ context.Context, rec *transcript.Record) (*evaluator.RecordResult, error) {
	e.calls.Add(1)
	if e.fail {
		return nil, errors.New("judge unavailable")
	}
	score := float64(len(rec.FinalText())%5 + 1)
	return &evaluator.RecordResult{
		Score:     score,
		Status:    status.FromScore(score, evaluator.DefaultThreshold),
		Reason:    "length",
		Threshold: evaluator.DefaultThreshold,
	}, nil
}

func (e *lengthEvaluator) Evaluate(ctx context.Context, records []*transcript.Record) (*evaluator.Result, error) {
	var out []*evaluator.RecordResult
	for _, r := range records {
		res, err := e.EvaluateRecord(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return evaluator.Aggregate(out, evaluator.DefaultThreshold), nil
}

// constantEvaluator only implements evaluator.Evaluator.
type constantEvaluator struct{}

func (constantEvaluator) Name() string        { return "constant" }
func (constantEvaluator) Description() string { return "always 5" }

func (constantEvaluator) Evaluate(_ context.Context, records []*transcript.Record) (*evaluator.Result, error) {
	out := make([]*evaluator.RecordResult, len(records))
	for i := range records {
		out[i] = &evaluator.RecordResult{Score: 5, Status: status.EvalStatusPassed, Threshold: 3}
	}
	return evaluator.Aggregate(out, 3), nil
}

func record(runID, answer string) transcript.Record {
	return transcript.Record{
		ThreadID: "thread_1",
		RunID:    runID,
		Query: []transcript.ChatMessage{
			{Role: "user", Content: []transcript.Item{{Type: transcript.ItemText, Text: "Tell me about Seattle"}}},
		},
		Response: []transcript.ChatMessage{
			{Role: "assistant", Content: []transcript.Item{{Type: transcript.ItemText, Text: answer}}},
		},
	}
}

func writeData(t *testing.T, records ...transcript.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), transcript.DefaultFileName)
	require.NoError(t, transcript.WriteJSONL(path, records))
	return path
}

func newPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(append([]Option{WithPoolSize(4)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestEvaluateScoresEveryRecord(t *testing.T) {
	store := inmemory.New()
	p := newPipeline(t,
		WithProjectEndpoint("https://contoso.services.ai.azure.com/api/projects/travel"),
		WithResultManager("city-travel-agent", store),
	)
	length := &lengthEvaluator{name: "length"}
	data := writeData(t, record("run_1", "abcd"), record("run_2", "ab"))

	report, err := p.Evaluate(context.Background(), data, map[string]evaluator.Evaluator{
		"length":   length,
		"constant": constantEvaluator{},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), length.calls.Load())

	// "abcd" scores 5 and "ab" scores 3.
	require.NotNil(t, report.Metrics["length.length"].Value)
	assert.InDelta(t, 4.0, *report.Metrics["length.length"].Value, 1e-9)
	assert.InDelta(t, 1.0, *report.Metrics["length.binary_aggregate"].Value, 1e-9)
	assert.Equal(t, status.EvalStatusPassed, report.Metrics["length.length"].Status)
	assert.InDelta(t, 5.0, *report.Metrics["constant.constant"].Value, 1e-9)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, "run_1", report.Rows[0].RunID)
	assert.Equal(t, 5.0, report.Rows[0].Outputs["length.length"])
	assert.Equal(t, "pass", report.Rows[0].Outputs["length.length_result"])
	assert.Equal(t, 3.0, report.Rows[1].Outputs["length.length"])
	assert.Equal(t, 5.0, report.Rows[1].Outputs["constant.constant"])

	assert.Equal(t, data, report.DataFile)
	assert.Equal(t, "https://ai.azure.com/build/evaluation?project=travel&resource=contoso", report.StudioURL)

	ids, err := store.List(context.Background(), "city-travel-agent")
	require.NoError(t, err)
	assert.Equal(t, []string{report.ID}, ids)
}

func TestEvaluateWithoutRecords(t *testing.T) {
	p := newPipeline(t)
	length := &lengthEvaluator{name: "tool_call_accuracy"}
	data := writeData(t)
	report, err := p.Evaluate(context.Background(), data, map[string]evaluator.Evaluator{
		"tool_call_accuracy": length,
		"intent_resolution":  &lengthEvaluator{name: "intent_resolution"},
		"task_adherence":     constantEvaluator{},
	})
	require.NoError(t, err)
	assert.Zero(t, length.calls.Load())
	assert.Empty(t, report.Rows)
	for _, name := range []string{"tool_call_accuracy", "intent_resolution", "task_adherence"} {
		for _, key := range []string{MetricKey(name, name), MetricKey(name, BinaryAggregate)} {
			m, ok := report.Metrics[key]
			require.True(t, ok, key)
			assert.Equal(t, status.EvalStatusNotEvaluated, m.Status, key)
			assert.Equal(t, ReasonNoData, m.Reason, key)
			assert.Nil(t, m.Value, key)
		}
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	p := newPipeline(t)
	data := writeData(t, record("run_1", "Seattle is rainy."), record("run_2", "It is 14°C."))
	evaluators := map[string]evaluator.Evaluator{"length": &lengthEvaluator{name: "length"}}

	first, err := p.Evaluate(context.Background(), data, evaluators)
	require.NoError(t, err)
	second, err := p.Evaluate(context.Background(), data, evaluators)
	require.NoError(t, err)
	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.Rows, second.Rows)
}

func TestEvaluateReportsEvaluatorFailure(t *testing.T) {
	p := newPipeline(t)
	recs := []*transcript.Record{ptr(record("run_1", "a"))}
	_, err := p.EvaluateRecords(context.Background(), recs, map[string]evaluator.Evaluator{
		"broken": &lengthEvaluator{name: "broken", fail: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluator broken")
	assert.Contains(t, err.Error(), "judge unavailable")
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	p := newPipeline(t)
	_, err := p.EvaluateRecords(context.Background(), nil, nil)
	assert.Error(t, err)
	_, err = p.Evaluate(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"),
		map[string]evaluator.Evaluator{"constant": constantEvaluator{}})
	assert.Error(t, err)

	_, err = New(WithPoolSize(0))
	assert.Error(t, err)
}

func TestNotEvaluatedReasonIsKept(t *testing.T) {
	rec := ptr(record("run_1", "a"))
	report := buildReport([]string{"tool_call_accuracy"}, []*transcript.Record{rec}, map[string]*evaluator.Result{
		"tool_call_accuracy": evaluator.Aggregate([]*evaluator.RecordResult{
			evaluator.NotEvaluated("no tool calls found", 3),
		}, 3),
	})
	m := report.Metrics["tool_call_accuracy.tool_call_accuracy"]
	assert.Equal(t, status.EvalStatusNotEvaluated, m.Status)
	assert.Equal(t, "no tool calls found", m.Reason)
	assert.Equal(t, "not_evaluated", report.Rows[0].Outputs["tool_call_accuracy.tool_call_accuracy_result"])
}

func TestStudioURL(t *testing.T) {
	assert.Equal(t, "https://ai.azure.com/build/evaluation?project=p1&resource=res",
		StudioURL("https://res.services.ai.azure.com/api/projects/p1"))
	assert.Empty(t, StudioURL(""))
	assert.Empty(t, StudioURL("https://res.services.ai.azure.com/"))
}

func TestDefaultEvaluators(t *testing.T) {
	_, err := DefaultEvaluators(llm.ModelConfig{})
	assert.True(t, errs.IsConfiguration(err))

	evs, err := DefaultEvaluators(llm.ModelConfig{
		Endpoint:   "https://contoso.openai.azure.com",
		APIKey:     "key",
		APIVersion: "2025-01-01-preview",
		Deployment: "gpt-4o",
	})
	require.NoError(t, err)
	assert.Len(t, evs, 3)
	for _, name := range []string{"tool_call_accuracy", "intent_resolution", "task_adherence"} {
		e, ok := evs[name]
		require.True(t, ok, name)
		assert.Equal(t, name, e.Name())
	}
}

func TestSelectEvaluators(t *testing.T) {
	cfg := llm.ModelConfig{
		Endpoint:   "https://contoso.openai.azure.com",
		APIKey:     "key",
		APIVersion: "2025-01-01-preview",
		Deployment: "gpt-4o",
	}
	evs, err := SelectEvaluators(cfg, []string{"intent_resolution"})
	require.NoError(t, err)
	assert.Len(t, evs, 1)
	assert.Contains(t, evs, "intent_resolution")

	_, err = SelectEvaluators(cfg, []string{"fluency"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func ptr(r transcript.Record) *transcript.Record { return &r }
