//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
)

func sampleReport() *evalresult.Report {
	score := 4.5
	return &evalresult.Report{
		DataFile: "evaluation_input_data.jsonl",
		Metrics: map[string]evalresult.Metric{
			"intent_resolution.intent_resolution":   {Value: &score, Status: status.EvalStatusPassed},
			"tool_call_accuracy.tool_call_accuracy": {Status: status.EvalStatusNotEvaluated, Reason: "no data"},
		},
		Rows: []evalresult.Row{{
			ThreadID: "thread_1",
			RunID:    "run_1",
			Outputs:  map[string]any{"intent_resolution.intent_resolution_result": "pass"},
		}},
		StudioURL: "https://ai.azure.com/x",
	}
}

func TestManagerSaveGetList(t *testing.T) {
	ctx := context.Background()
	mgr, err0 := New(WithPath(filepath.Join(t.TempDir(), "reports.db")), WithTablePrefix("t_"))
	require.NoError(t, err0)
	defer mgr.Close()

	_, err := mgr.Save(ctx, "", sampleReport())
	assert.Error(t, err)
	_, err = mgr.Save(ctx, "app", nil)
	assert.Error(t, err)
	_, err = mgr.Get(ctx, "app", "")
	assert.Error(t, err)

	id, err := mgr.Save(ctx, "app", sampleReport())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := mgr.Get(ctx, "app", id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "evaluation_input_data.jsonl", got.DataFile)
	assert.Equal(t, "https://ai.azure.com/x", got.StudioURL)
	require.NotNil(t, got.Metrics["intent_resolution.intent_resolution"].Value)
	assert.Equal(t, 4.5, *got.Metrics["intent_resolution.intent_resolution"].Value)
	assert.Nil(t, got.Metrics["tool_call_accuracy.tool_call_accuracy"].Value)
	assert.Equal(t, status.EvalStatusNotEvaluated, got.Metrics["tool_call_accuracy.tool_call_accuracy"].Status)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "pass", got.Rows[0].Outputs["intent_resolution.intent_resolution_result"])
	assert.False(t, got.CreatedAt.IsZero())

	ids, err := mgr.List(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
	ids, err = mgr.List(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = mgr.Get(ctx, "app", "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManagerSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	mgr, err0 := New(WithPath(filepath.Join(t.TempDir(), "reports.db")), WithTablePrefix("t_"))
	require.NoError(t, err0)
	defer mgr.Close()

	r := sampleReport()
	r.ID = "fixed"
	_, err := mgr.Save(ctx, "app", r)
	require.NoError(t, err)
	r.StudioURL = "https://ai.azure.com/y"
	_, err = mgr.Save(ctx, "app", r)
	require.NoError(t, err)

	got, err := mgr.Get(ctx, "app", "fixed")
	require.NoError(t, err)
	assert.Equal(t, "https://ai.azure.com/y", got.StudioURL)
	ids, err := mgr.List(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed"}, ids)
}

func TestInvalidTablePrefixPanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = New(WithTablePrefix("x; DROP TABLE y")) })
}
