//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/agentservice/inmemory"
	"trpc.group/trpc-go/trpc-agent-foundry/config"
	"trpc.group/trpc-go/trpc-agent-foundry/errs"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult/local"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult/sqlite"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
	"trpc.group/trpc-go/trpc-agent-foundry/poller"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
	"trpc.group/trpc-go/trpc-agent-foundry/workflow"
)

const projectEndpoint = "https://contoso.services.ai.azure.com/api/projects/travel"

type fixedEvaluator struct {
	name  string
	score float64
}

func (e fixedEvaluator) Name() string        { return e.name }
func (e fixedEvaluator) Description() string { return "fixed score" }

func (e fixedEvaluator) Evaluate(_ context.Context, records []*transcript.Record) (*evaluator.Result, error) {
	out := make([]*evaluator.RecordResult, len(records))
	for i := range records {
		out[i] = &evaluator.RecordResult{
			Score:     e.score,
			Status:    status.FromScore(e.score, evaluator.DefaultThreshold),
			Threshold: evaluator.DefaultThreshold,
		}
	}
	return evaluator.Aggregate(out, evaluator.DefaultThreshold), nil
}

// setEnv pins every key the commands read so the host environment cannot
// leak in.
func setEnv(t *testing.T, resultsDir, store string) {
	t.Helper()
	t.Setenv(config.EnvProjectEndpoint, projectEndpoint)
	t.Setenv(config.EnvAgentModel, "gpt-4o")
	t.Setenv(config.EnvResultsDir, resultsDir)
	t.Setenv(config.EnvResultsStore, store)
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "foundry.yaml")
	body := "output_file: " + filepath.Join(dir, "data.jsonl") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testApp(out *bytes.Buffer, svc agentservice.Service) *app {
	a := newApp(out)
	a.newService = func(*config.Config) (agentservice.Service, error) { return svc, nil }
	a.runnerOpts = []workflow.Option{
		workflow.WithPollerOptions(poller.WithInterval(time.Millisecond)),
		workflow.WithEvaluators(map[string]evaluator.Evaluator{
			"intent_resolution": fixedEvaluator{name: "intent_resolution", score: 5},
		}),
	}
	return a
}

func execute(t *testing.T, a *app, args ...string) error {
	t.Helper()
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestEvaluateCommandStoresReport(t *testing.T) {
	dir := t.TempDir()
	resultsDir := filepath.Join(dir, "results")
	setEnv(t, resultsDir, storeLocal)
	cfgFile := writeConfig(t, dir)
	textfile := filepath.Join(dir, "foundry.prom")

	var out bytes.Buffer
	svc := inmemory.New()
	err := execute(t, testApp(&out, svc),
		"evaluate", "--config", cfgFile, "--env-file", filepath.Join(dir, "missing.env"),
		"--metrics-textfile", textfile)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Created agent, ID:")
	assert.Contains(t, out.String(), "Evaluation data saved to "+filepath.Join(dir, "data.jsonl"))
	assert.Contains(t, out.String(), "intent_resolution.intent_resolution: 5")
	assert.Equal(t, 0, svc.AgentCount())

	ids, err := local.New(local.WithBaseDir(resultsDir)).List(context.Background(), workflow.EvaluationAgentName)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `foundry_evaluation_score{evaluator="intent_resolution"} 5`)

	out.Reset()
	require.NoError(t, execute(t, testApp(&out, svc), "report", "list", "--env-file", ""))
	assert.Contains(t, out.String(), "Reports of "+workflow.EvaluationAgentName)
	assert.Contains(t, out.String(), ids[0])

	out.Reset()
	require.NoError(t, execute(t, testApp(&out, svc), "report", "show", ids[0], "--env-file", ""))
	assert.Contains(t, out.String(), "Report "+ids[0])
	assert.Contains(t, out.String(), "intent_resolution.intent_resolution")
	assert.Contains(t, out.String(), "passed")
	assert.Contains(t, out.String(), "Row 1")
}

func TestEvaluateCommandReportsMissingKeys(t *testing.T) {
	t.Setenv(config.EnvProjectEndpoint, "")
	t.Setenv(config.EnvAgentModel, "")

	var out bytes.Buffer
	a := testApp(&out, inmemory.New())
	called := false
	a.newService = func(*config.Config) (agentservice.Service, error) {
		called = true
		return inmemory.New(), nil
	}
	err := execute(t, a, "evaluate", "--env-file", "")
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Contains(t, err.Error(), config.EnvProjectEndpoint)
	assert.Contains(t, err.Error(), config.EnvAgentModel)
	assert.False(t, called)
}

func TestReportListReadsSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, dir, storeSQLite)

	store, err := sqlite.New(sqlite.WithPath(filepath.Join(dir, sqliteFile)))
	require.NoError(t, err)
	score := 4.0
	id, err := store.Save(context.Background(), "other-agent", &evalresult.Report{
		Metrics: map[string]evalresult.Metric{
			"task_adherence.task_adherence": {Value: &score, Status: status.EvalStatusPassed},
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var out bytes.Buffer
	require.NoError(t, execute(t, testApp(&out, inmemory.New()), "report", "list", "--app", "other-agent", "--env-file", ""))
	assert.Contains(t, out.String(), id)

	out.Reset()
	require.NoError(t, execute(t, testApp(&out, inmemory.New()), "report", "list", "--env-file", ""))
	assert.Contains(t, out.String(), "No reports stored.")
}

func TestReportShowMissing(t *testing.T) {
	setEnv(t, t.TempDir(), storeLocal)
	var out bytes.Buffer
	err := execute(t, testApp(&out, inmemory.New()), "report", "show", "nope", "--env-file", "")
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	cfg := config.Default()
	cfg.ResultsDir = t.TempDir()

	cfg.ResultsStore = storeNone
	store, err := openStore(cfg)
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.ResultsStore = "bogus"
	_, err = openStore(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvResultsStore)

	cfg.ResultsStore = storeSQLite
	store, err = openStore(cfg)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.ResultsDir, sqliteFile))
	require.NoError(t, store.Close())
}

func TestReportCommandRejectsDisabledStore(t *testing.T) {
	setEnv(t, t.TempDir(), storeNone)
	var out bytes.Buffer
	err := execute(t, testApp(&out, inmemory.New()), "report", "list", "--env-file", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}
