//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package registry

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

type stubEvaluator struct {
	name string
}

func (s *stubEvaluator) Name() string        { return s.name }
func (s *stubEvaluator) Description() string { return "stub" }

func (s *stubEvaluator) Evaluate(_ context.Context, _ []*transcript.Record) (*evaluator.Result, error) {
	return evaluator.Aggregate(nil, evaluator.DefaultThreshold), nil
}

func TestRegistryNewRegistersByName(t *testing.T) {
	reg := New(&stubEvaluator{name: "task_adherence"}, &stubEvaluator{name: "intent_resolution"})
	assert.Equal(t, []string{"intent_resolution", "task_adherence"}, reg.List())
	got, err := reg.Get("task_adherence")
	require.NoError(t, err)
	assert.Equal(t, "task_adherence", got.Name())
}

func TestRegistryOverwrite(t *testing.T) {
	reg := New()
	first := &stubEvaluator{name: "duplicate"}
	second := &stubEvaluator{name: "duplicate"}
	require.NoError(t, reg.Register("duplicate", first))
	require.NoError(t, reg.Register("duplicate", second))
	got, err := reg.Get("duplicate")
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestRegistryRejectsInvalid(t *testing.T) {
	reg := New()
	assert.Error(t, reg.Register("x", nil))
	assert.Error(t, reg.Register("", &stubEvaluator{}))
	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegistrySelect(t *testing.T) {
	reg := New(&stubEvaluator{name: "a"}, &stubEvaluator{name: "b"})
	all, err := reg.Select()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := reg.Select("b")
	require.NoError(t, err)
	assert.Contains(t, one, "b")

	dedup, err := reg.Select(" a", "a", "")
	require.NoError(t, err)
	assert.Len(t, dedup, 1)

	_, err = reg.Select("c", "a", "d")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "get evaluator c")
	assert.Contains(t, err.Error(), "get evaluator d")
	assert.Contains(t, err.Error(), "known: a, b")
}
