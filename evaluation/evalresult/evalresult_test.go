//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package evalresult

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareFillsIDAndTime(t *testing.T) {
	assert.Error(t, Prepare("", &Report{}))
	assert.Error(t, Prepare("app", nil))

	r := &Report{}
	require.NoError(t, Prepare("city-travel-agent", r))
	assert.True(t, strings.HasPrefix(r.ID, "city-travel-agent_"))
	assert.False(t, r.CreatedAt.IsZero())

	r = &Report{ID: "fixed"}
	require.NoError(t, Prepare("app", r))
	assert.Equal(t, "fixed", r.ID)
}

func TestMetricNamesSorted(t *testing.T) {
	r := &Report{Metrics: map[string]Metric{"b.b": {}, "a.binary_aggregate": {}, "a.a": {}}}
	assert.Equal(t, []string{"a.a", "a.binary_aggregate", "b.b"}, r.MetricNames())
}

func TestLocatorBuildAndList(t *testing.T) {
	dir := t.TempDir()
	l := NewLocator()
	ids, err := l.List(dir, "app")
	require.NoError(t, err)
	assert.Empty(t, ids)

	path := l.Build(dir, "app", "r2")
	assert.Equal(t, filepath.Join(dir, "app", "r2.evaluation_report.json"), path)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(l.Build(dir, "app", "r1"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "notes.txt"), nil, 0o644))

	ids, err = l.List(dir, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids)
}
