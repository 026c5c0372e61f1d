//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agentservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatusIsTerminal(t *testing.T) {
	for _, s := range []RunStatus{RunStatusQueued, RunStatusInProgress, RunStatusRequiresAction, RunStatusCancelling} {
		assert.False(t, s.IsTerminal(), s)
	}
	for _, s := range []RunStatus{RunStatusCompleted, RunStatusFailed, RunStatusCancelled,
		RunStatusExpired, RunStatusIncomplete, RunStatus("vendor_specific")} {
		assert.True(t, s.IsTerminal(), s)
	}
}

func TestMessageLastText(t *testing.T) {
	m := Message{Content: []Content{
		{Type: ContentText, Text: "first"},
		{Type: ContentImage},
		{Type: ContentText, Text: "second"},
	}}
	got, ok := m.LastText()
	assert.True(t, ok)
	assert.Equal(t, "second", got)
	assert.Equal(t, []string{"first", "second"}, m.Texts())

	_, ok = Message{Content: []Content{{Type: ContentImage}}}.LastText()
	assert.False(t, ok)
}
